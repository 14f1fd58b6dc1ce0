// Package config provides application configuration structures and helpers.
//
// Sources are applied in increasing priority: built-in defaults, a JSON or
// YAML config file (-c, -config or CONFIG), command-line flags, environment
// variables.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

func newLogger(logFile string) *zap.SugaredLogger {
	logCfg := zap.NewProductionConfig()
	logCfg.OutputPaths = []string{"stdout"}
	if logFile != "" {
		logCfg.OutputPaths = append(logCfg.OutputPaths, logFile)
	}
	return zap.Must(logCfg.Build()).Sugar()
}

// parseDuration accepts Go duration strings and bare integers in milliseconds.
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return d, nil
}

func envString(name string, dst *string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

func envInt(name string, dst *int) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("invalid %s env var: %v", name, err)
		return
	}
	*dst = i
}

func envBool(name string, dst *bool) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("invalid %s env var: %v", name, err)
		return
	}
	*dst = b
}

func envDuration(name string, dst *time.Duration) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	d, err := parseDuration(v)
	if err != nil {
		log.Printf("invalid %s env var: %v", name, err)
		return
	}
	*dst = d
}

// withScheme prefixes http:// only when addr carries no scheme, so ws and
// wss endpoints pass through unchanged.
func withScheme(addr string) string {
	if addr == "" || strings.Contains(addr, "://") {
		return addr
	}
	return "http://" + addr
}
