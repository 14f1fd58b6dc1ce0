package relay

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/and161185/portal-dashboard/internal/metrics"
	"github.com/and161185/portal-dashboard/internal/payload"
)

const (
	maxWebhookBody = 1 << 20
	writeWait      = 10 * time.Second
	maxClientFrame = 4 << 10
)

// WebhookHandler accepts an analytics snapshot in any supported shape,
// stores it and pushes it to every subscriber.
func (srv *Server) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		metrics.WebhookRequests.WithLabelValues("bad_request").Inc()
		http.Error(w, "bad body", http.StatusBadRequest)
		return
	}

	p, err := payload.Decode(body)
	if err != nil {
		metrics.WebhookRequests.WithLabelValues("bad_request").Inc()
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if !p.Known() {
		metrics.WebhookRequests.WithLabelValues("unknown_shape").Inc()
		http.Error(w, "unrecognized metrics payload", http.StatusUnprocessableEntity)
		return
	}

	snap := p.Snapshot.Sanitize()
	srv.Store.Set(r.Context(), snap)
	if srv.Config.StoreInterval <= 0 {
		srv.save(r.Context())
	}

	frame, err := encodeUpdate(snap)
	if err != nil {
		srv.logger.Errorw("failed to encode update frame", "error", err)
	} else {
		srv.hub.Broadcast(frame)
	}

	metrics.WebhookRequests.WithLabelValues("ok").Inc()
	srv.logger.Infow("snapshot received", "shape", p.Shape, "subscribers", srv.hub.Len())
	srv.writeJSON(w, snap)
}

// MetricsHandler is the pull endpoint.
func (srv *Server) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	srv.writeJSON(w, srv.Store.Get(r.Context()))
}

// EventsHandler streams update frames as server-sent events until the
// client leaves or the relay shuts down.
func (srv *Server) EventsHandler(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sub := srv.hub.Subscribe("sse")
	defer sub.Close()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(w, ": connected\n\n"); err != nil {
		return
	}
	flusher.Flush()

	ticker := time.NewTicker(srv.heartbeatInterval())
	defer ticker.Stop()

	for {
		var frame []byte
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-sub.C:
			if !ok {
				return
			}
			frame = msg
		case <-ticker.C:
			frame = heartbeat
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", frame); err != nil {
			srv.logger.Debugw("event stream write failed", "id", sub.ID, "error", err)
			return
		}
		flusher.Flush()
	}
}

// WSHandler streams update frames over a WebSocket.
func (srv *Server) WSHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := srv.upgrader.Upgrade(w, r, nil)
	if err != nil {
		srv.logger.Warnw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sub := srv.hub.Subscribe("ws")
	defer sub.Close()

	// Client frames are discarded; the read loop only notices the close.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(maxClientFrame)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(srv.heartbeatInterval())
	defer ticker.Stop()

	for {
		var frame []byte
		select {
		case <-gone:
			return
		case msg, ok := <-sub.C:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "relay shutting down"),
					time.Now().Add(writeWait))
				return
			}
			frame = msg
		case <-ticker.C:
			frame = heartbeat
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			if !errors.Is(err, websocket.ErrCloseSent) {
				srv.logger.Debugw("websocket write failed", "id", sub.ID, "error", err)
			}
			return
		}
	}
}

func (srv *Server) heartbeatInterval() time.Duration {
	if srv.Config.HeartbeatInterval <= 0 {
		return 15 * time.Second
	}
	return srv.Config.HeartbeatInterval
}

func (srv *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		srv.logger.Errorw("failed to write response JSON", "error", err)
	}
}
