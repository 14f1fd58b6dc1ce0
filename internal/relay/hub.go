package relay

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/and161185/portal-dashboard/internal/metrics"
)

const subscriberBuffer = 16

// Hub fans broadcast frames out to push subscribers. A subscriber whose
// buffer is full misses the frame; it will catch up with the next one.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]*Subscription
	closed bool
	logger *zap.SugaredLogger
}

// Subscription is one connected push client.
type Subscription struct {
	ID        string
	C         <-chan []byte
	ch        chan []byte
	transport string
	hub       *Hub
	once      sync.Once
}

func NewHub(logger *zap.SugaredLogger) *Hub {
	return &Hub{
		subs:   make(map[string]*Subscription),
		logger: logger,
	}
}

// Subscribe registers a subscriber. After Close the returned subscription's
// channel is already closed.
func (h *Hub) Subscribe(transport string) *Subscription {
	ch := make(chan []byte, subscriberBuffer)
	sub := &Subscription{
		ID:        uuid.NewString(),
		C:         ch,
		ch:        ch,
		transport: transport,
		hub:       h,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		sub.once.Do(func() {})
		return sub
	}
	h.subs[sub.ID] = sub
	metrics.RelaySubscribers.WithLabelValues(transport).Inc()
	h.logger.Debugw("subscriber connected", "id", sub.ID, "transport", transport)
	return sub
}

// Close unregisters the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		h := s.hub
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[s.ID]; !ok {
			return
		}
		delete(h.subs, s.ID)
		close(s.ch)
		metrics.RelaySubscribers.WithLabelValues(s.transport).Dec()
		h.logger.Debugw("subscriber disconnected", "id", s.ID, "transport", s.transport)
	})
}

// Broadcast queues msg for every subscriber without blocking.
func (h *Hub) Broadcast(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	metrics.RelayBroadcasts.Inc()
	for id, sub := range h.subs {
		select {
		case sub.ch <- msg:
		default:
			metrics.RelayDropped.Inc()
			h.logger.Warnw("subscriber too slow, frame dropped", "id", id)
		}
	}
}

// Len returns the number of connected subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close disconnects every subscriber and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		close(sub.ch)
		metrics.RelaySubscribers.WithLabelValues(sub.transport).Dec()
		delete(h.subs, id)
	}
}
