package config

import (
	"flag"
	"log"
	"os"
	"time"

	"go.uber.org/zap"
)

// RelayConfig holds the configuration settings for the webhook relay.
type RelayConfig struct {
	Addr              string // Server address
	APIKey            string // Key required from webhook callers and dashboard clients
	Key               string // Key for webhook body signature verification
	TrustedSubnet     string // CIDR, ex. "192.168.1.0/24"
	StoreInterval     time.Duration
	FileStoragePath   string // Path to the snapshot file
	Restore           bool   // Whether to restore the snapshot on startup
	HeartbeatInterval time.Duration
	LogFile           string

	Logger *zap.SugaredLogger
}

// DefaultRelayConfig returns the built-in defaults.
func DefaultRelayConfig() *RelayConfig {
	return &RelayConfig{
		Addr:              "localhost:8080",
		StoreInterval:     300 * time.Second,
		FileStoragePath:   "./tmp/dashboard-snapshot.json",
		Restore:           true,
		HeartbeatInterval: 15 * time.Second,
	}
}

// NewRelayConfig creates and returns a new RelayConfig by parsing the config
// file, flags and environment variables.
func NewRelayConfig() *RelayConfig {
	cfg, err := loadRelayConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("relay config: %v", err)
	}
	cfg.Logger = newLogger(cfg.LogFile)
	return cfg
}

func loadRelayConfig(fs *flag.FlagSet, args []string) (*RelayConfig, error) {
	// 0) defaults
	cfg := DefaultRelayConfig()

	// 1) flags
	fAddr := strFlag{v: cfg.Addr}
	var fAPIKey strFlag
	var fKey strFlag
	var fTrustedSubnet strFlag
	fStoreI := durationFlag{v: cfg.StoreInterval}
	fFile := strFlag{v: cfg.FileStoragePath}
	fRestore := boolFlag{v: cfg.Restore}
	fHeartbeat := durationFlag{v: cfg.HeartbeatInterval}
	var fLog strFlag
	var fConf strFlag // -c / -config

	fs.Var(&fAddr, "a", "HTTP server address")
	fs.Var(&fAPIKey, "api-key", "API key")
	fs.Var(&fKey, "k", "Hash key string")
	fs.Var(&fTrustedSubnet, "t", "trusted subnet")
	fs.Var(&fStoreI, "i", "store interval")
	fs.Var(&fFile, "f", "path to snapshot file")
	fs.Var(&fRestore, "r", "restore from file")
	fs.Var(&fHeartbeat, "heartbeat", "push heartbeat interval")
	fs.Var(&fLog, "log", "log file")
	fs.Var(&fConf, "c", "Path to JSON or YAML config file")
	fs.Var(&fConf, "config", "Path to JSON or YAML config file (alias)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// 2) config file
	if fConf.v == "" {
		fConf.v = os.Getenv("CONFIG")
	}
	if fConf.v != "" {
		var fc relayFile
		if err := loadFile(fConf.v, &fc); err != nil {
			log.Printf("config file ignored: %v", err)
		} else {
			fileString(fc.Address, &fAddr)
			fileString(fc.APIKey, &fAPIKey)
			fileString(fc.Key, &fKey)
			fileString(fc.TrustedSubnet, &fTrustedSubnet)
			fileDuration(fc.StoreInterval, &fStoreI)
			fileString(fc.StoreFile, &fFile)
			fileBool(fc.Restore, &fRestore)
			fileDuration(fc.HeartbeatInterval, &fHeartbeat)
			fileString(fc.LogFile, &fLog)
		}
	}

	cfg.Addr = fAddr.v
	cfg.APIKey = fAPIKey.v
	cfg.Key = fKey.v
	cfg.TrustedSubnet = fTrustedSubnet.v
	cfg.StoreInterval = fStoreI.v
	cfg.FileStoragePath = fFile.v
	cfg.Restore = fRestore.v
	cfg.HeartbeatInterval = fHeartbeat.v
	cfg.LogFile = fLog.v

	// 3) environment
	readRelayEnvironment(cfg)

	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultRelayConfig().HeartbeatInterval
	}
	return cfg, nil
}

func readRelayEnvironment(cfg *RelayConfig) {
	envString("ADDRESS", &cfg.Addr)
	envString("API_KEY", &cfg.APIKey)
	envString("KEY", &cfg.Key)
	envString("TRUSTED_SUBNET", &cfg.TrustedSubnet)
	envDuration("STORE_INTERVAL", &cfg.StoreInterval)
	envString("FILE_STORAGE_PATH", &cfg.FileStoragePath)
	envBool("RESTORE", &cfg.Restore)
	envDuration("HEARTBEAT_INTERVAL", &cfg.HeartbeatInterval)
	envString("LOG_FILE", &cfg.LogFile)
}
