package utils

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"time"
)

// Retriable is implemented by errors that know whether a repeat may succeed.
type Retriable interface {
	Retriable() bool
}

// WithRetry runs fn up to attempts times with a fixed delay between attempts.
// It stops early on success, on a non-retriable error and when ctx is done.
func WithRetry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		err = fn()
		if err == nil || !isRetriable(err) {
			return err
		}
		if i == attempts-1 {
			break
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return errors.Join(err, ctx.Err())
		case <-t.C:
		}
	}
	return err
}

func isRetriable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	var r Retriable
	if errors.As(err, &r) {
		return r.Retriable()
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}

	if os.IsTimeout(err) {
		return true
	}

	return false
}
