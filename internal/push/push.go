// Package push implements the server-push transport of the dashboard agent:
// an SSE or WebSocket subscription delivering JSON messages.
package push

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/and161185/portal-dashboard/internal/config"
)

// ErrStreamClosed is returned by Stream.Next once the connection has ended.
var ErrStreamClosed = errors.New("push stream closed")

// Stream is one open push connection.
type Stream interface {
	// Next blocks until the next message arrives.
	Next() ([]byte, error)
	Close() error
}

// Dialer opens push connections.
type Dialer interface {
	Dial(ctx context.Context) (Stream, error)
}

func withAPIKey(rawURL, key string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if key != "" {
		q := u.Query()
		q.Set("api_key", key)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// NewDialer returns the dialer selected by cfg.PushTransport.
func NewDialer(cfg *config.AgentConfig) Dialer {
	if cfg.PushTransport == config.PushWebSocket {
		return &WSDialer{URL: cfg.EventsURL, APIKey: cfg.APIKey, HandshakeTimeout: cfg.RequestTimeout}
	}
	return &SSEDialer{URL: cfg.EventsURL, APIKey: cfg.APIKey, Client: &http.Client{}}
}
