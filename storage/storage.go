// Package storage defines the metric store contract shared by the agent and the relay.
package storage

import (
	"context"

	"github.com/and161185/portal-dashboard/model"
)

// Storage keeps the last applied snapshot. Set replaces it unconditionally.
type Storage interface {
	Get(ctx context.Context) model.MetricSnapshot
	Set(ctx context.Context, s model.MetricSnapshot)
}
