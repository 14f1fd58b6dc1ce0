// Package model contains core data types for the project.
package model

import (
	"fmt"
	"math"
	"time"
)

// MetricName identifies one dashboard indicator.
type MetricName string

const (
	Pending  MetricName = "pending"  // Requests awaiting a decision.
	Approved MetricName = "approved" // Approved requests.
	Denied   MetricName = "denied"   // Denied requests.
	Payout   MetricName = "payout"   // Monetary total, fractional.
)

// MetricNames lists every indicator in widget order.
var MetricNames = []MetricName{Pending, Approved, Denied, Payout}

// WidgetID returns the DOM id of the widget container for the metric.
func (n MetricName) WidgetID() string {
	return "admin-" + string(n)
}

// MetricSnapshot is one complete set of indicator values.
type MetricSnapshot struct {
	Pending  float64 `json:"pending"`  // Pending count.
	Approved float64 `json:"approved"` // Approved count.
	Denied   float64 `json:"denied"`   // Denied count.
	Payout   float64 `json:"payout"`   // Payout total.
}

// Value returns the value of the named metric, zero for unknown names.
func (s MetricSnapshot) Value(name MetricName) float64 {
	switch name {
	case Pending:
		return s.Pending
	case Approved:
		return s.Approved
	case Denied:
		return s.Denied
	case Payout:
		return s.Payout
	default:
		return 0
	}
}

// Sanitize coerces negative, NaN and infinite values to zero.
func (s MetricSnapshot) Sanitize() MetricSnapshot {
	return MetricSnapshot{
		Pending:  nonNegative(s.Pending),
		Approved: nonNegative(s.Approved),
		Denied:   nonNegative(s.Denied),
		Payout:   nonNegative(s.Payout),
	}
}

func nonNegative(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// Mode is the active delivery mechanism.
type Mode string

const (
	ModePush Mode = "push" // Server-push subscription.
	ModePull Mode = "pull" // Interval polling.
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModePush, ModePull:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown mode %q", s)
	}
}

// Status is the coarse connection status shown by the status indicator.
type Status string

const (
	StatusStopped      Status = "stopped"
	StatusConnected    Status = "connected"
	StatusReconnecting Status = "reconnecting"
	StatusError        Status = "error"
)

// ConnectionState pairs a status with the mode it applies to.
type ConnectionState struct {
	Status Status `json:"status"`
	Mode   Mode   `json:"mode,omitempty"`
}

func (s ConnectionState) String() string {
	if s.Mode == "" {
		return string(s.Status)
	}
	return fmt.Sprintf("%s(%s)", s.Status, s.Mode)
}

// ConnectionInfo is the introspection view of a running syncer.
type ConnectionInfo struct {
	State        ConnectionState `json:"state"`
	ErrorCount   int             `json:"error_count"`
	PushFailures int             `json:"push_failures"`
	PullFailures int             `json:"pull_failures"`
	PollInterval time.Duration   `json:"poll_interval"`
	MetricsURL   string          `json:"metrics_url"`
	EventsURL    string          `json:"events_url"`
	PushEnabled  bool            `json:"push_enabled"`
}
