// Package metrics holds the Prometheus instrumentation of the agent and relay.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pull transport
	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dashboard_fetch_duration_seconds",
			Help:    "Duration of metrics fetches including retries",
			Buckets: prometheus.DefBuckets,
		},
	)

	FetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_fetch_total",
			Help: "Metrics fetches by result",
		},
		[]string{"result"}, // "ok", "error", "malformed", "discarded"
	)

	FetchAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dashboard_fetch_attempts_total",
			Help: "HTTP attempts made by the pull transport",
		},
	)

	// Push transport
	PushMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_push_messages_total",
			Help: "Push messages received by action",
		},
		[]string{"action"}, // "snapshot", "refresh", "heartbeat", "ignore"
	)

	PushConnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_push_connects_total",
			Help: "Push connection attempts by result",
		},
		[]string{"result"},
	)

	// Controller
	ModeSwitches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_mode_switches_total",
			Help: "Transport mode changes by target mode and reason",
		},
		[]string{"mode", "reason"}, // reason: "fallback", "manual"
	)

	ErrorCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dashboard_error_count",
			Help: "Current transport error counter",
		},
	)

	PollInterval = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dashboard_poll_interval_seconds",
			Help: "Current pull interval",
		},
	)

	// Presentation
	WidgetChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_widget_changes_total",
			Help: "Widget value changes by metric",
		},
		[]string{"metric"},
	)

	SnapshotValue = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dashboard_snapshot_value",
			Help: "Last applied value per metric",
		},
		[]string{"metric"},
	)

	// Circuit breaker
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Relay
	WebhookRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_webhook_requests_total",
			Help: "Webhook requests by result",
		},
		[]string{"result"}, // "ok", "bad_request", "unknown_shape"
	)

	RelaySubscribers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "relay_subscribers",
			Help: "Connected push subscribers by transport",
		},
		[]string{"transport"},
	)

	RelayBroadcasts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_broadcasts_total",
			Help: "Snapshot broadcasts sent to subscribers",
		},
	)

	RelayDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_dropped_messages_total",
			Help: "Messages dropped for slow subscribers",
		},
	)
)

// ObserveFetch records a completed fetch.
func ObserveFetch(start time.Time, result string) {
	FetchDuration.Observe(time.Since(start).Seconds())
	FetchTotal.WithLabelValues(result).Inc()
}
