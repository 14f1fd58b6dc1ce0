package client

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/and161185/portal-dashboard/internal/metrics"
	"github.com/and161185/portal-dashboard/internal/payload"
	"github.com/and161185/portal-dashboard/model"
)

// newBreaker opens after a failure rate of 60% over at least 10 fetches,
// well beyond the controller's own thresholds.
func newBreaker(name string, logger *zap.SugaredLogger) *gobreaker.CircuitBreaker[model.MetricSnapshot] {
	return gobreaker.NewCircuitBreaker[model.MetricSnapshot](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			if ratio >= 0.6 {
				logger.Warnw("opening circuit", "name", name, "failures", counts.TotalFailures, "failure_rate", ratio)
				return true
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Infow("circuit breaker state transition", "name", name, "from", from.String(), "to", to.String())
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
		// Caller cancellation and bad bodies say nothing about endpoint health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, payload.ErrMalformed)
		},
	})
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
