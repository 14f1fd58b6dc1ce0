package config

import (
	"flag"
	"log"
	"os"
	"time"

	"go.uber.org/zap"
)

// Auth styles for the pull endpoint.
const (
	AuthHeader = "header" // X-API-Key header.
	AuthQuery  = "query"  // auth_token query parameter.
)

// Push transports.
const (
	PushSSE       = "sse"
	PushWebSocket = "ws"
)

// AgentConfig holds the configuration of the dashboard sync agent.
type AgentConfig struct {
	MetricsURL    string // Pull endpoint
	EventsURL     string // Push endpoint, SSE or WebSocket
	APIKey        string
	AuthStyle     string // AuthHeader or AuthQuery
	MetricsMethod string // GET or POST
	MetricsQuery  string // JSON body sent with POST

	PushEnabled   bool
	PushTransport string // PushSSE or PushWebSocket

	PollInterval         time.Duration
	MaxPollInterval      time.Duration
	RequestTimeout       time.Duration
	RetryCount           int // Attempts in total, not extra retries
	RetryDelay           time.Duration
	PushErrorCeiling     int
	PullFailureThreshold int
	ReconnectDelay       time.Duration

	FlashDuration  time.Duration
	Locale         string
	CurrencySymbol string

	DebugAddr    string // Debug HTTP surface, disabled when empty
	SnapshotFile string // Last-known values, disabled when empty
	LogFile      string

	Logger *zap.SugaredLogger
}

// DefaultAgentConfig returns the built-in defaults.
func DefaultAgentConfig() *AgentConfig {
	return &AgentConfig{
		MetricsURL:           "http://localhost:8080/api/dashboard/metrics",
		EventsURL:            "http://localhost:8080/api/dashboard/events",
		AuthStyle:            AuthHeader,
		MetricsMethod:        "GET",
		PushEnabled:          true,
		PushTransport:        PushSSE,
		PollInterval:         30 * time.Second,
		MaxPollInterval:      5 * time.Minute,
		RequestTimeout:       10 * time.Second,
		RetryCount:           3,
		RetryDelay:           2 * time.Second,
		PushErrorCeiling:     5,
		PullFailureThreshold: 3,
		ReconnectDelay:       5 * time.Second,
		FlashDuration:        600 * time.Millisecond,
		Locale:               "en-PH",
		CurrencySymbol:       "₱",
	}
}

// NewAgentConfig creates and returns a new AgentConfig by parsing the config
// file, flags and environment variables.
func NewAgentConfig() *AgentConfig {
	cfg, err := loadAgentConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("agent config: %v", err)
	}
	cfg.Logger = newLogger(cfg.LogFile)
	return cfg
}

func loadAgentConfig(fs *flag.FlagSet, args []string) (*AgentConfig, error) {
	// 0) defaults
	cfg := DefaultAgentConfig()

	// 1) flags
	fMetrics := strFlag{v: cfg.MetricsURL}
	fEvents := strFlag{v: cfg.EventsURL}
	var fKey strFlag
	fAuth := strFlag{v: cfg.AuthStyle}
	fMethod := strFlag{v: cfg.MetricsMethod}
	var fQuery strFlag
	fPush := boolFlag{v: cfg.PushEnabled}
	fTransport := strFlag{v: cfg.PushTransport}
	fPoll := durationFlag{v: cfg.PollInterval}
	fMaxPoll := durationFlag{v: cfg.MaxPollInterval}
	fTimeout := durationFlag{v: cfg.RequestTimeout}
	fRetry := intFlag{v: cfg.RetryCount}
	fRetryDelay := durationFlag{v: cfg.RetryDelay}
	fCeiling := intFlag{v: cfg.PushErrorCeiling}
	fThreshold := intFlag{v: cfg.PullFailureThreshold}
	fReconnect := durationFlag{v: cfg.ReconnectDelay}
	fFlash := durationFlag{v: cfg.FlashDuration}
	fLocale := strFlag{v: cfg.Locale}
	fCurrency := strFlag{v: cfg.CurrencySymbol}
	var fDebug strFlag
	var fSnapshot strFlag
	var fLog strFlag
	var fConf strFlag // -c / -config

	fs.Var(&fMetrics, "u", "metrics endpoint URL")
	fs.Var(&fEvents, "e", "events endpoint URL")
	fs.Var(&fKey, "k", "API key")
	fs.Var(&fAuth, "auth", "API key placement: header or query")
	fs.Var(&fMethod, "method", "metrics request method: GET or POST")
	fs.Var(&fQuery, "query", "JSON body for POST metrics requests")
	fs.Var(&fPush, "push", "enable push delivery")
	fs.Var(&fTransport, "transport", "push transport: sse or ws")
	fs.Var(&fPoll, "p", "poll interval")
	fs.Var(&fMaxPoll, "max-poll", "maximum poll interval after backoff")
	fs.Var(&fTimeout, "timeout", "per-request timeout")
	fs.Var(&fRetry, "retry", "fetch attempts in total")
	fs.Var(&fRetryDelay, "retry-delay", "delay between fetch attempts")
	fs.Var(&fCeiling, "push-ceiling", "push failures before falling back to pull")
	fs.Var(&fThreshold, "pull-threshold", "pull failures before the interval doubles")
	fs.Var(&fReconnect, "reconnect", "push reconnect delay")
	fs.Var(&fFlash, "flash", "changed highlight duration")
	fs.Var(&fLocale, "locale", "number formatting locale")
	fs.Var(&fCurrency, "currency", "currency symbol for payout")
	fs.Var(&fDebug, "debug", "debug HTTP address")
	fs.Var(&fSnapshot, "snapshot", "last-known snapshot file")
	fs.Var(&fLog, "log", "log file")
	fs.Var(&fConf, "c", "Path to JSON or YAML config file")
	fs.Var(&fConf, "config", "Path to JSON or YAML config file (alias)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// 2) config file (lowest priority after defaults)
	if fConf.v == "" {
		fConf.v = os.Getenv("CONFIG")
	}
	if fConf.v != "" {
		var fc agentFile
		if err := loadFile(fConf.v, &fc); err != nil {
			log.Printf("config file ignored: %v", err)
		} else {
			fileString(fc.MetricsURL, &fMetrics)
			fileString(fc.EventsURL, &fEvents)
			fileString(fc.APIKey, &fKey)
			fileString(fc.AuthStyle, &fAuth)
			fileString(fc.MetricsMethod, &fMethod)
			fileBool(fc.PushEnabled, &fPush)
			fileString(fc.PushTransport, &fTransport)
			fileDuration(fc.PollInterval, &fPoll)
			fileDuration(fc.MaxPollInterval, &fMaxPoll)
			fileDuration(fc.RequestTimeout, &fTimeout)
			fileInt(fc.RetryCount, &fRetry)
			fileDuration(fc.RetryDelay, &fRetryDelay)
			fileInt(fc.PushErrorCeiling, &fCeiling)
			fileInt(fc.PullFailureThreshold, &fThreshold)
			fileDuration(fc.ReconnectDelay, &fReconnect)
			fileDuration(fc.FlashDuration, &fFlash)
			fileString(fc.Locale, &fLocale)
			fileString(fc.CurrencySymbol, &fCurrency)
			fileString(fc.DebugAddr, &fDebug)
			fileString(fc.SnapshotFile, &fSnapshot)
			fileString(fc.LogFile, &fLog)
		}
	}

	cfg.MetricsURL = fMetrics.v
	cfg.EventsURL = fEvents.v
	cfg.APIKey = fKey.v
	cfg.AuthStyle = fAuth.v
	cfg.MetricsMethod = fMethod.v
	cfg.MetricsQuery = fQuery.v
	cfg.PushEnabled = fPush.v
	cfg.PushTransport = fTransport.v
	cfg.PollInterval = fPoll.v
	cfg.MaxPollInterval = fMaxPoll.v
	cfg.RequestTimeout = fTimeout.v
	cfg.RetryCount = fRetry.v
	cfg.RetryDelay = fRetryDelay.v
	cfg.PushErrorCeiling = fCeiling.v
	cfg.PullFailureThreshold = fThreshold.v
	cfg.ReconnectDelay = fReconnect.v
	cfg.FlashDuration = fFlash.v
	cfg.Locale = fLocale.v
	cfg.CurrencySymbol = fCurrency.v
	cfg.DebugAddr = fDebug.v
	cfg.SnapshotFile = fSnapshot.v
	cfg.LogFile = fLog.v

	// 3) environment (highest priority)
	readAgentEnvironment(cfg)

	cfg.normalize()
	return cfg, nil
}

func readAgentEnvironment(cfg *AgentConfig) {
	envString("METRICS_URL", &cfg.MetricsURL)
	envString("EVENTS_URL", &cfg.EventsURL)
	envString("API_KEY", &cfg.APIKey)
	envString("AUTH_STYLE", &cfg.AuthStyle)
	envString("METRICS_METHOD", &cfg.MetricsMethod)
	envString("METRICS_QUERY", &cfg.MetricsQuery)
	envBool("PUSH_ENABLED", &cfg.PushEnabled)
	envString("PUSH_TRANSPORT", &cfg.PushTransport)
	envDuration("POLL_INTERVAL", &cfg.PollInterval)
	envDuration("MAX_POLL_INTERVAL", &cfg.MaxPollInterval)
	envDuration("REQUEST_TIMEOUT", &cfg.RequestTimeout)
	envInt("RETRY_COUNT", &cfg.RetryCount)
	envDuration("RETRY_DELAY", &cfg.RetryDelay)
	envInt("PUSH_ERROR_CEILING", &cfg.PushErrorCeiling)
	envInt("PULL_FAILURE_THRESHOLD", &cfg.PullFailureThreshold)
	envDuration("RECONNECT_DELAY", &cfg.ReconnectDelay)
	envDuration("FLASH_DURATION", &cfg.FlashDuration)
	envString("LOCALE", &cfg.Locale)
	envString("CURRENCY_SYMBOL", &cfg.CurrencySymbol)
	envString("DEBUG_ADDRESS", &cfg.DebugAddr)
	envString("SNAPSHOT_FILE", &cfg.SnapshotFile)
	envString("LOG_FILE", &cfg.LogFile)
}

// normalize replaces out-of-range values with defaults.
func (cfg *AgentConfig) normalize() {
	def := DefaultAgentConfig()
	cfg.MetricsURL = withScheme(cfg.MetricsURL)
	cfg.EventsURL = withScheme(cfg.EventsURL)
	if cfg.AuthStyle != AuthHeader && cfg.AuthStyle != AuthQuery {
		log.Printf("unknown auth style %q, using %q", cfg.AuthStyle, def.AuthStyle)
		cfg.AuthStyle = def.AuthStyle
	}
	if cfg.MetricsMethod != "GET" && cfg.MetricsMethod != "POST" {
		log.Printf("unsupported metrics method %q, using %q", cfg.MetricsMethod, def.MetricsMethod)
		cfg.MetricsMethod = def.MetricsMethod
	}
	if cfg.PushTransport != PushSSE && cfg.PushTransport != PushWebSocket {
		log.Printf("unknown push transport %q, using %q", cfg.PushTransport, def.PushTransport)
		cfg.PushTransport = def.PushTransport
	}
	if cfg.EventsURL == "" {
		cfg.PushEnabled = false
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.MaxPollInterval < cfg.PollInterval {
		cfg.MaxPollInterval = cfg.PollInterval
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if cfg.RetryCount < 1 {
		cfg.RetryCount = 1
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}
	if cfg.PushErrorCeiling < 1 {
		cfg.PushErrorCeiling = def.PushErrorCeiling
	}
	if cfg.PullFailureThreshold < 1 {
		cfg.PullFailureThreshold = def.PullFailureThreshold
	}
	if cfg.ReconnectDelay < 0 {
		cfg.ReconnectDelay = 0
	}
	if cfg.FlashDuration < 0 {
		cfg.FlashDuration = 0
	}
}
