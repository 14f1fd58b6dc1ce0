// Package dashboard keeps the dashboard widgets in sync with the portal,
// over push when possible and over pull otherwise.
package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/portal-dashboard/internal/config"
	"github.com/and161185/portal-dashboard/internal/controller"
	"github.com/and161185/portal-dashboard/internal/metrics"
	"github.com/and161185/portal-dashboard/internal/push"
	"github.com/and161185/portal-dashboard/model"
	"github.com/and161185/portal-dashboard/storage"
)

// ErrPushUnavailable is returned by SwitchMode when no push dialer is configured.
var ErrPushUnavailable = errors.New("push transport not configured")

// Fetcher performs one pull-style fetch.
type Fetcher interface {
	Fetch(ctx context.Context) (model.MetricSnapshot, error)
}

// Painter renders snapshots.
type Painter interface {
	PaintSnapshot(s model.MetricSnapshot)
	Stop()
}

// Syncer is the dashboard sync orchestrator. Nothing it does returns
// transport errors to the caller: failures are logged and fed to the
// controller.
type Syncer struct {
	cfg     *config.AgentConfig
	fetcher Fetcher
	dialer  push.Dialer // nil disables push
	painter Painter
	store   storage.Storage
	ctrl    *controller.Controller
	logger  *zap.SugaredLogger

	// lifeMu serializes Start, Stop and SwitchMode so that wg.Add never
	// races with wg.Wait.
	lifeMu sync.Mutex
	wg     sync.WaitGroup

	mu              sync.Mutex
	running         bool
	runID           uint64
	runCtx          context.Context
	cancelRun       context.CancelFunc
	cancelTransport context.CancelFunc
}

// New creates a stopped Syncer.
func New(cfg *config.AgentConfig, fetcher Fetcher, dialer push.Dialer, painter Painter, store storage.Storage, logger *zap.SugaredLogger) *Syncer {
	if !cfg.PushEnabled {
		dialer = nil
	}
	return &Syncer{
		cfg:     cfg,
		fetcher: fetcher,
		dialer:  dialer,
		painter: painter,
		store:   store,
		ctrl: controller.New(controller.Config{
			PushErrorCeiling:     cfg.PushErrorCeiling,
			PullFailureThreshold: cfg.PullFailureThreshold,
			PollInterval:         cfg.PollInterval,
			MaxPollInterval:      cfg.MaxPollInterval,
		}, logger),
		logger: logger,
	}
}

// Start begins syncing in the preferred mode and performs one immediate
// sync. Calling Start on a running Syncer does nothing.
func (s *Syncer) Start(ctx context.Context) {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}

	s.running = true
	s.runID++
	s.runCtx, s.cancelRun = context.WithCancel(ctx)

	s.painter.PaintSnapshot(s.store.Get(ctx))

	mode := model.ModePull
	if s.dialer != nil {
		mode = model.ModePush
	}
	s.ctrl.Start(mode)
	s.logger.Infow("dashboard sync started", "mode", mode, "metrics_url", s.cfg.MetricsURL, "events_url", s.cfg.EventsURL)

	s.startTransportLocked(mode)
	if mode == model.ModePush {
		// the poll loop fetches immediately on its own
		s.spawnFetchLocked(s.runCtx, s.runID)
	}
}

// Stop tears down the active transport and waits for every goroutine.
// It is safe to call more than once.
func (s *Syncer) Stop() {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancelRun()
	s.cancelTransport = nil
	s.ctrl.Stop()
	s.mu.Unlock()

	s.wg.Wait()
	s.painter.Stop()
	s.logger.Infow("dashboard sync stopped")
}

// Run starts the Syncer and blocks until ctx is done.
func (s *Syncer) Run(ctx context.Context) error {
	s.Start(ctx)
	<-ctx.Done()
	s.Stop()
	return nil
}

// ManualRefresh resets the error counters and performs one fetch before
// returning. The active mode is kept.
func (s *Syncer) ManualRefresh(ctx context.Context) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	id := s.runID
	runCtx := s.runCtx
	s.ctrl.ResetErrors()
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(runCtx, cancel)
	defer stop()

	s.logger.Infow("manual refresh")
	s.fetchAndApply(ctx, id)
}

// SwitchMode tears the active transport down and starts the other one with
// fresh counters.
func (s *Syncer) SwitchMode(mode model.Mode) error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	if mode == model.ModePush && s.dialer == nil {
		return ErrPushUnavailable
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.logger.Infow("switching transport", "from", s.ctrl.Mode(), "to", mode)
	s.ctrl.SwitchTo(mode)
	s.startTransportLocked(mode)
	return nil
}

// CurrentMetrics returns the last applied snapshot.
func (s *Syncer) CurrentMetrics() model.MetricSnapshot {
	return s.store.Get(context.Background())
}

// ConnectionInfo returns the connection state and the active configuration.
func (s *Syncer) ConnectionInfo() model.ConnectionInfo {
	info := s.ctrl.Info()
	return model.ConnectionInfo{
		State:        info.State,
		ErrorCount:   info.ErrorCount,
		PushFailures: info.PushFailures,
		PullFailures: info.PullFailures,
		PollInterval: info.PollInterval,
		MetricsURL:   s.cfg.MetricsURL,
		EventsURL:    s.cfg.EventsURL,
		PushEnabled:  s.dialer != nil,
	}
}

func (s *Syncer) startTransportLocked(mode model.Mode) {
	if s.cancelTransport != nil {
		s.cancelTransport()
	}
	ctx, cancel := context.WithCancel(s.runCtx)
	s.cancelTransport = cancel

	id := s.runID
	s.wg.Add(1)
	if mode == model.ModePush {
		go s.pushLoop(ctx, id)
		return
	}
	go s.pollLoop(ctx, id)
}

func (s *Syncer) spawnFetchLocked(ctx context.Context, id uint64) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.fetchAndApply(ctx, id)
	}()
}

// spawnFetch is only called from goroutines tracked by wg.
func (s *Syncer) spawnFetch(ctx context.Context, id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.activeLocked(id) {
		return
	}
	s.spawnFetchLocked(ctx, id)
}

func (s *Syncer) activeLocked(id uint64) bool {
	return s.running && s.runID == id
}

func (s *Syncer) pollLoop(ctx context.Context, id uint64) {
	defer s.wg.Done()
	for {
		s.fetchAndApply(ctx, id)

		t := time.NewTimer(s.ctrl.Interval())
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// fetchAndApply applies results in completion order. Results of a stopped
// run are dropped.
func (s *Syncer) fetchAndApply(ctx context.Context, id uint64) {
	snap, err := s.fetcher.Fetch(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.activeLocked(id) {
		metrics.FetchTotal.WithLabelValues("discarded").Inc()
		return
	}
	if err != nil {
		if ctx.Err() != nil {
			// transport replaced by a mode switch
			return
		}
		s.logger.Warnw("fetch failed", "error", err)
		if s.ctrl.FetchFailed() {
			s.logger.Warnw("poll interval increased", "interval", s.ctrl.Interval())
		}
		return
	}
	s.applyLocked(snap)
	s.ctrl.FetchSucceeded()
}

func (s *Syncer) applyLocked(snap model.MetricSnapshot) {
	snap = snap.Sanitize()
	s.store.Set(context.Background(), snap)
	s.painter.PaintSnapshot(snap)
	for _, name := range model.MetricNames {
		metrics.SnapshotValue.WithLabelValues(string(name)).Set(snap.Value(name))
	}
}
