package dashboard

import (
	"context"
	"time"

	"github.com/and161185/portal-dashboard/internal/controller"
	"github.com/and161185/portal-dashboard/internal/metrics"
	"github.com/and161185/portal-dashboard/internal/push"
	"github.com/and161185/portal-dashboard/model"
)

func (s *Syncer) pushLoop(ctx context.Context, id uint64) {
	defer s.wg.Done()
	for {
		stream, err := s.dialer.Dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			metrics.PushConnects.WithLabelValues("error").Inc()
			s.logger.Warnw("push connect failed", "error", err)
			if !s.pushFailed(ctx, id) {
				return
			}
			continue
		}
		metrics.PushConnects.WithLabelValues("ok").Inc()

		if !s.pushOpened(ctx, id) {
			_ = stream.Close()
			return
		}

		err = s.consume(ctx, id, stream)
		_ = stream.Close()
		if ctx.Err() != nil {
			return
		}
		s.logger.Warnw("push connection lost", "error", err)
		if !s.pushFailed(ctx, id) {
			return
		}
	}
}

// pushOpened reports the open to the controller and starts the baseline fetch.
func (s *Syncer) pushOpened(ctx context.Context, id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.activeLocked(id) || ctx.Err() != nil {
		return false
	}
	s.ctrl.PushOpened()
	s.logger.Infow("push connected", "url", s.cfg.EventsURL)
	s.spawnFetchLocked(ctx, id)
	return true
}

// pushFailed reports whether the loop should dial again.
func (s *Syncer) pushFailed(ctx context.Context, id uint64) bool {
	s.mu.Lock()
	if !s.activeLocked(id) || ctx.Err() != nil {
		s.mu.Unlock()
		return false
	}
	decision := s.ctrl.PushFailed()
	if decision == controller.DecisionFallbackToPull {
		// cancels ctx of this loop
		s.startTransportLocked(model.ModePull)
	}
	s.mu.Unlock()

	switch decision {
	case controller.DecisionRetryPush:
		s.logger.Infow("push reconnect scheduled", "delay", s.cfg.ReconnectDelay)
		t := time.NewTimer(s.cfg.ReconnectDelay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return false
		case <-t.C:
			return true
		}
	case controller.DecisionFallbackToPull:
		s.logger.Warnw("push transport stopped, polling instead", "interval", s.ctrl.Interval())
	}
	return false
}

func (s *Syncer) consume(ctx context.Context, id uint64, stream push.Stream) error {
	stop := context.AfterFunc(ctx, func() { _ = stream.Close() })
	defer stop()

	for {
		raw, err := stream.Next()
		if err != nil {
			return err
		}

		msg := push.Classify(raw)
		metrics.PushMessages.WithLabelValues(msg.Action.String()).Inc()
		switch msg.Action {
		case push.ActionSnapshot:
			s.applyPushed(id, msg.Snapshot)
		case push.ActionRefresh:
			s.spawnFetch(ctx, id)
		case push.ActionHeartbeat:
		default:
			s.logger.Debugw("push message ignored", "type", msg.Type)
		}
	}
}

func (s *Syncer) applyPushed(id uint64, snap model.MetricSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.activeLocked(id) {
		return
	}
	s.applyLocked(snap)
	s.ctrl.FetchSucceeded()
}
