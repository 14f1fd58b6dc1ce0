// Package controller tracks transport health and decides when the agent
// retries push, falls back to pull or backs off its poll interval.
//
// The controller has no timers of its own. The orchestrator reports events
// and acts on the returned decisions.
package controller

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/portal-dashboard/internal/metrics"
	"github.com/and161185/portal-dashboard/model"
)

// Decision is the controller's answer to a push failure.
type Decision int

const (
	DecisionNone           Decision = iota // controller is stopped
	DecisionRetryPush                      // wait the reconnect delay and dial again
	DecisionFallbackToPull                 // tear push down and start polling
)

func (d Decision) String() string {
	switch d {
	case DecisionRetryPush:
		return "retry_push"
	case DecisionFallbackToPull:
		return "fallback_to_pull"
	default:
		return "none"
	}
}

// Config holds the thresholds of the controller.
type Config struct {
	PushErrorCeiling     int
	PullFailureThreshold int
	PollInterval         time.Duration
	MaxPollInterval      time.Duration
}

// Info is a point-in-time view of the controller.
type Info struct {
	State        model.ConnectionState
	ErrorCount   int
	PushFailures int
	PullFailures int
	PollInterval time.Duration
}

// Controller is safe for concurrent use.
type Controller struct {
	cfg    Config
	logger *zap.SugaredLogger

	mu           sync.Mutex
	state        model.ConnectionState
	errorCount   int
	pushFailures int
	pullFailures int
	interval     time.Duration
}

// New returns a stopped controller.
func New(cfg Config, logger *zap.SugaredLogger) *Controller {
	if cfg.PushErrorCeiling < 1 {
		cfg.PushErrorCeiling = 1
	}
	if cfg.PullFailureThreshold < 1 {
		cfg.PullFailureThreshold = 1
	}
	if cfg.MaxPollInterval < cfg.PollInterval {
		cfg.MaxPollInterval = cfg.PollInterval
	}
	return &Controller{
		cfg:      cfg,
		logger:   logger,
		state:    model.ConnectionState{Status: model.StatusStopped},
		interval: cfg.PollInterval,
	}
}

// Start enters mode with fresh counters. Push starts as reconnecting until
// the first PushOpened.
func (c *Controller) Start(mode model.Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
	c.enterLocked(mode)
	c.publishLocked()
}

// Stop moves the controller to the stopped state. Events are ignored until
// the next Start.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = model.ConnectionState{Status: model.StatusStopped}
}

// PushOpened records a successful subscription.
func (c *Controller) PushOpened() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stoppedLocked() {
		return
	}
	c.errorCount = 0
	c.pushFailures = 0
	c.state = model.ConnectionState{Status: model.StatusConnected, Mode: model.ModePush}
	c.publishLocked()
}

// PushFailed records a failed dial or a dropped push connection.
func (c *Controller) PushFailed() Decision {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stoppedLocked() || c.state.Mode != model.ModePush {
		return DecisionNone
	}

	c.errorCount++
	c.pushFailures++
	defer c.publishLocked()

	if c.pushFailures < c.cfg.PushErrorCeiling {
		c.state = model.ConnectionState{Status: model.StatusReconnecting, Mode: model.ModePush}
		return DecisionRetryPush
	}

	c.logger.Warnw("push retries exhausted, falling back to pull", "failures", c.pushFailures)
	c.pushFailures = 0
	c.pullFailures = 0
	c.interval = c.cfg.PollInterval
	c.enterLocked(model.ModePull)
	metrics.ModeSwitches.WithLabelValues(string(model.ModePull), "fallback").Inc()
	return DecisionFallbackToPull
}

// FetchSucceeded records a successful fetch in any mode.
func (c *Controller) FetchSucceeded() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stoppedLocked() {
		return
	}
	c.errorCount = 0
	if c.state.Mode == model.ModePull {
		if c.interval != c.cfg.PollInterval {
			c.logger.Infow("poll interval reset", "interval", c.cfg.PollInterval)
		}
		c.pullFailures = 0
		c.interval = c.cfg.PollInterval
		c.state.Status = model.StatusConnected
	}
	c.publishLocked()
}

// FetchFailed records a failed fetch. In pull mode every run of
// PullFailureThreshold consecutive failures doubles the poll interval, up to
// MaxPollInterval. It reports whether the interval changed.
func (c *Controller) FetchFailed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stoppedLocked() {
		return false
	}
	defer c.publishLocked()

	c.errorCount++
	if c.state.Mode != model.ModePull {
		return false
	}

	c.state.Status = model.StatusError
	c.pullFailures++
	if c.pullFailures < c.cfg.PullFailureThreshold {
		return false
	}

	c.pullFailures = 0
	next := min(c.interval*2, c.cfg.MaxPollInterval)
	if next == c.interval {
		return false
	}
	c.logger.Warnw("poll interval backed off", "from", c.interval, "to", next)
	c.interval = next
	return true
}

// SwitchTo is the manual mode change. Counters and interval are reset.
func (c *Controller) SwitchTo(mode model.Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stoppedLocked() {
		return
	}
	c.resetLocked()
	c.enterLocked(mode)
	metrics.ModeSwitches.WithLabelValues(string(mode), "manual").Inc()
	c.publishLocked()
}

// ResetErrors clears every counter, leaving mode and interval alone.
func (c *Controller) ResetErrors() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errorCount = 0
	c.pushFailures = 0
	c.pullFailures = 0
	c.publishLocked()
}

// Mode returns the active mode, empty when stopped.
func (c *Controller) Mode() model.Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Mode
}

// Interval returns the current poll interval.
func (c *Controller) Interval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interval
}

// Info returns a snapshot of the controller state.
func (c *Controller) Info() Info {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Info{
		State:        c.state,
		ErrorCount:   c.errorCount,
		PushFailures: c.pushFailures,
		PullFailures: c.pullFailures,
		PollInterval: c.interval,
	}
}

func (c *Controller) stoppedLocked() bool {
	return c.state.Status == model.StatusStopped
}

func (c *Controller) resetLocked() {
	c.errorCount = 0
	c.pushFailures = 0
	c.pullFailures = 0
	c.interval = c.cfg.PollInterval
}

func (c *Controller) enterLocked(mode model.Mode) {
	if mode == model.ModePush {
		c.state = model.ConnectionState{Status: model.StatusReconnecting, Mode: model.ModePush}
		return
	}
	c.state = model.ConnectionState{Status: model.StatusConnected, Mode: model.ModePull}
}

func (c *Controller) publishLocked() {
	metrics.ErrorCount.Set(float64(c.errorCount))
	metrics.PollInterval.Set(c.interval.Seconds())
}
