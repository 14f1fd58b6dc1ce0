package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type agentFile struct {
	MetricsURL           *string `json:"metrics_url" yaml:"metrics_url"`
	EventsURL            *string `json:"events_url" yaml:"events_url"`
	APIKey               *string `json:"api_key" yaml:"api_key"`
	AuthStyle            *string `json:"auth_style" yaml:"auth_style"`
	MetricsMethod        *string `json:"metrics_method" yaml:"metrics_method"`
	PushEnabled          *bool   `json:"push_enabled" yaml:"push_enabled"`
	PushTransport        *string `json:"push_transport" yaml:"push_transport"`
	PollInterval         *string `json:"poll_interval" yaml:"poll_interval"` // "30s"
	MaxPollInterval      *string `json:"max_poll_interval" yaml:"max_poll_interval"`
	RequestTimeout       *string `json:"request_timeout" yaml:"request_timeout"`
	RetryCount           *int    `json:"retry_count" yaml:"retry_count"`
	RetryDelay           *string `json:"retry_delay" yaml:"retry_delay"`
	PushErrorCeiling     *int    `json:"push_error_ceiling" yaml:"push_error_ceiling"`
	PullFailureThreshold *int    `json:"pull_failure_threshold" yaml:"pull_failure_threshold"`
	ReconnectDelay       *string `json:"reconnect_delay" yaml:"reconnect_delay"`
	FlashDuration        *string `json:"flash_duration" yaml:"flash_duration"`
	Locale               *string `json:"locale" yaml:"locale"`
	CurrencySymbol       *string `json:"currency_symbol" yaml:"currency_symbol"`
	DebugAddr            *string `json:"debug_address" yaml:"debug_address"`
	SnapshotFile         *string `json:"snapshot_file" yaml:"snapshot_file"`
	LogFile              *string `json:"log_file" yaml:"log_file"`
}

type relayFile struct {
	Address           *string `json:"address" yaml:"address"`
	APIKey            *string `json:"api_key" yaml:"api_key"`
	Key               *string `json:"key" yaml:"key"`
	TrustedSubnet     *string `json:"trusted_subnet" yaml:"trusted_subnet"`
	StoreInterval     *string `json:"store_interval" yaml:"store_interval"` // "1s"
	StoreFile         *string `json:"store_file" yaml:"store_file"`
	Restore           *bool   `json:"restore" yaml:"restore"`
	HeartbeatInterval *string `json:"heartbeat_interval" yaml:"heartbeat_interval"`
	LogFile           *string `json:"log_file" yaml:"log_file"`
}

// loadFile decodes a config file into dst, choosing the format by extension.
// Files without a YAML extension are read as JSON.
func loadFile(path string, dst any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, dst)
	default:
		err = json.Unmarshal(b, dst)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

func fileString(src *string, f *strFlag) {
	if src != nil && !f.set {
		f.v = *src
	}
}

func fileInt(src *int, f *intFlag) {
	if src != nil && !f.set {
		f.v = *src
	}
}

func fileBool(src *bool, f *boolFlag) {
	if src != nil && !f.set {
		f.v = *src
	}
}

func fileDuration(src *string, f *durationFlag) {
	if src == nil || f.set {
		return
	}
	if d, err := parseDuration(*src); err == nil {
		f.v = d
	}
}
