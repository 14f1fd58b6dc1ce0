package relay

import (
	"github.com/goccy/go-json"

	"github.com/and161185/portal-dashboard/internal/push"
	"github.com/and161185/portal-dashboard/model"
)

type updateFrame struct {
	Type    string               `json:"type"`
	Metrics model.MetricSnapshot `json:"metrics"`
}

type heartbeatFrame struct {
	Type string `json:"type"`
}

func encodeUpdate(s model.MetricSnapshot) ([]byte, error) {
	return json.Marshal(updateFrame{Type: push.TypeDashboardUpdate, Metrics: s})
}

var heartbeat, _ = json.Marshal(heartbeatFrame{Type: push.TypeHeartbeat})
