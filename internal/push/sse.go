package push

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

const maxEventSize = 1 << 20

// SSEDialer subscribes to a text/event-stream endpoint.
type SSEDialer struct {
	URL    string
	APIKey string
	Client *http.Client // must not carry a Timeout; defaults to http.DefaultClient
}

// Dial implements Dialer. The stream stays bound to ctx.
func (d *SSEDialer) Dial(ctx context.Context) (Stream, error) {
	target, err := withAPIKey(d.URL, d.APIKey)
	if err != nil {
		return nil, fmt.Errorf("invalid events url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	hc := d.Client
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SSE endpoint: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 4096), maxEventSize)
	return &sseStream{body: resp.Body, scanner: scanner}, nil
}

type sseStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	once    sync.Once
}

// Next returns the data of the next event. Multi-line data is joined with
// newlines; comments and events without data are skipped.
func (s *sseStream) Next() ([]byte, error) {
	var data bytes.Buffer
	hasData := false

	for s.scanner.Scan() {
		line := s.scanner.Text()
		if line == "" {
			if hasData {
				return data.Bytes(), nil
			}
			continue
		}

		switch {
		case strings.HasPrefix(line, ":"):
			// comment
		case strings.HasPrefix(line, "data:"):
			if hasData {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
			hasData = true
		}
	}

	if hasData {
		return data.Bytes(), nil
	}
	if err := s.scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStreamClosed, err)
	}
	return nil, ErrStreamClosed
}

func (s *sseStream) Close() error {
	var err error
	s.once.Do(func() { err = s.body.Close() })
	return err
}
