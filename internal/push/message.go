package push

import (
	"github.com/goccy/go-json"

	"github.com/and161185/portal-dashboard/internal/payload"
	"github.com/and161185/portal-dashboard/model"
)

// Message types understood by the agent.
const (
	TypeDashboardUpdate = "dashboard_update"
	TypeUpdate          = "update"
	TypeChange          = "change"
	TypeHeartbeat       = "heartbeat"
)

// Action tells the caller what to do with a message.
type Action int

const (
	ActionIgnore    Action = iota // unknown type or undecodable frame
	ActionSnapshot                // apply Message.Snapshot
	ActionRefresh                 // perform a one-off fetch
	ActionHeartbeat               // keep-alive, nothing to do
)

func (a Action) String() string {
	switch a {
	case ActionSnapshot:
		return "snapshot"
	case ActionRefresh:
		return "refresh"
	case ActionHeartbeat:
		return "heartbeat"
	default:
		return "ignore"
	}
}

// Message is a classified push frame.
type Message struct {
	Type     string
	Action   Action
	Snapshot model.MetricSnapshot
}

type frame struct {
	Type    string          `json:"type"`
	Metrics json.RawMessage `json:"metrics"`
	Data    json.RawMessage `json:"data"`
	Payload json.RawMessage `json:"payload"`
}

// Classify decodes raw and dispatches it by its type field. Embedded metrics
// are looked up in metrics, data and payload; a dashboard_update may also
// carry metric keys on the message itself.
func Classify(raw []byte) Message {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Message{Action: ActionIgnore}
	}

	msg := Message{Type: f.Type}
	switch f.Type {
	case TypeDashboardUpdate, TypeUpdate, TypeChange:
		if snap, ok := embedded(f); ok {
			msg.Action, msg.Snapshot = ActionSnapshot, snap
			return msg
		}
		if f.Type == TypeDashboardUpdate {
			if p, err := payload.Decode(raw); err == nil && p.Known() {
				msg.Action, msg.Snapshot = ActionSnapshot, p.Snapshot
				return msg
			}
		}
		msg.Action = ActionRefresh
	case TypeHeartbeat:
		msg.Action = ActionHeartbeat
	default:
		msg.Action = ActionIgnore
	}
	return msg
}

func embedded(f frame) (model.MetricSnapshot, bool) {
	// metrics holds the bare snapshot, data and payload may wrap it again
	if len(f.Metrics) > 0 {
		if p, err := payload.Decode(f.Metrics); err == nil && p.Known() {
			return p.Snapshot, true
		}
	}
	for _, raw := range []json.RawMessage{f.Data, f.Payload} {
		if len(raw) == 0 {
			continue
		}
		if p, err := payload.Decode(raw); err == nil && p.Known() {
			return p.Snapshot, true
		}
	}
	return model.MetricSnapshot{}, false
}
