package push

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WSDialer subscribes to a WebSocket endpoint. http and https URLs are
// rewritten to ws and wss.
type WSDialer struct {
	URL              string
	APIKey           string
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration // zero disables the read deadline
}

// Dial implements Dialer.
func (d *WSDialer) Dial(ctx context.Context) (Stream, error) {
	target, err := withAPIKey(wsURL(d.URL), d.APIKey)
	if err != nil {
		return nil, fmt.Errorf("invalid events url: %w", err)
	}

	timeout := d.HandshakeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	dialer := websocket.Dialer{
		HandshakeTimeout:  timeout,
		EnableCompression: true,
	}

	conn, resp, err := dialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return &wsStream{conn: conn, readTimeout: d.ReadTimeout}, nil
}

func wsURL(u string) string {
	switch {
	case strings.HasPrefix(u, "https://"):
		return "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		return "ws://" + strings.TrimPrefix(u, "http://")
	default:
		return u
	}
}

type wsStream struct {
	conn        *websocket.Conn
	readTimeout time.Duration
	once        sync.Once
}

// Next returns the next text or binary frame.
func (s *wsStream) Next() ([]byte, error) {
	if s.readTimeout > 0 {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.readTimeout)); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStreamClosed, err)
		}
	}
	_, message, err := s.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStreamClosed, err)
	}
	return message, nil
}

func (s *wsStream) Close() error {
	var err error
	s.once.Do(func() {
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = s.conn.Close()
	})
	return err
}
