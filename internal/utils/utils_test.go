package utils

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCalculateHash_Deterministic(t *testing.T) {
	b := []byte("payload")
	k := "key"
	got := CalculateHash(b, k)
	require.Equal(t, got, CalculateHash(b, k))

	h := hmac.New(sha256.New, []byte(k))
	_, _ = h.Write(b)
	require.Equal(t, hex.EncodeToString(h.Sum(nil)), got)
	require.NotEqual(t, CalculateHash(b, "other"), got)
}

func TestVerifyHash(t *testing.T) {
	body := []byte(`{"pending":1}`)
	sig := CalculateHash(body, "secret")

	require.True(t, VerifyHash(body, "secret", sig))
	require.False(t, VerifyHash(body, "secret", "deadbeef"))
	require.False(t, VerifyHash([]byte(`{"pending":2}`), "secret", sig))
}

type tempErr struct{}

func (tempErr) Error() string   { return "temp" }
func (tempErr) Timeout() bool   { return true } // net.Error
func (tempErr) Temporary() bool { return true }

type verdictErr bool

func (v verdictErr) Error() string   { return "verdict" }
func (v verdictErr) Retriable() bool { return bool(v) }

func TestWithRetry_RetriesAndSucceeds(t *testing.T) {
	var n int
	err := WithRetry(context.Background(), 3, time.Millisecond, func() error {
		n++
		if n < 2 {
			return tempErr{}
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestWithRetry_ExhaustsAttempts(t *testing.T) {
	var n int
	start := time.Now()
	err := WithRetry(context.Background(), 3, 10*time.Millisecond, func() error {
		n++
		return tempErr{}
	})
	require.Error(t, err)
	require.Equal(t, 3, n)
	// two pauses between three attempts
	require.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestWithRetry_StopsOnPermanentError(t *testing.T) {
	var n int
	err := WithRetry(context.Background(), 3, time.Millisecond, func() error {
		n++
		return verdictErr(false)
	})
	require.Error(t, err)
	require.Equal(t, 1, n)
}

func TestWithRetry_StopsOnContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	var n int
	err := WithRetry(ctx, 100, 20*time.Millisecond, func() error {
		n++
		return tempErr{}
	})
	require.Error(t, err)
	require.True(t, errors.Is(err, context.DeadlineExceeded))
	require.Less(t, n, 100)
}

func TestWithRetry_ZeroAttemptsRunsOnce(t *testing.T) {
	var n int
	_ = WithRetry(context.Background(), 0, time.Millisecond, func() error {
		n++
		return tempErr{}
	})
	require.Equal(t, 1, n)
}

func TestIsRetriable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"plain", errors.New("boom"), false},
		{"verdict-yes", verdictErr(true), true},
		{"verdict-no", verdictErr(false), false},
		{"net-error", &net.DNSError{Err: "x"}, true},
		{"os-deadline", os.ErrDeadlineExceeded, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, isRetriable(tc.err))
		})
	}
}
