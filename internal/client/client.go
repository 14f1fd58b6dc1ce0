// Package client implements the pull transport of the dashboard agent.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/and161185/portal-dashboard/internal/client/transport"
	"github.com/and161185/portal-dashboard/internal/config"
	"github.com/and161185/portal-dashboard/internal/metrics"
	"github.com/and161185/portal-dashboard/internal/payload"
	"github.com/and161185/portal-dashboard/internal/utils"
	"github.com/and161185/portal-dashboard/model"
)

const maxBodySize = 1 << 20

// ErrUnexpectedStatus matches any StatusError.
var ErrUnexpectedStatus = errors.New("unexpected status")

// StatusError reports a non-2xx answer of the metrics endpoint.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d", e.Code)
}

func (e *StatusError) Is(target error) bool { return target == ErrUnexpectedStatus }

// Retriable reports true: any non-success status is worth another attempt.
func (e *StatusError) Retriable() bool { return true }

// Fetcher fetches metric snapshots from the pull endpoint.
type Fetcher struct {
	config     *config.AgentConfig
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker[model.MetricSnapshot]
	logger     *zap.SugaredLogger
}

// NewFetcher creates a Fetcher with an HTTP client built from cfg.
func NewFetcher(cfg *config.AgentConfig, logger *zap.SugaredLogger) *Fetcher {
	return NewFetcherWithHTTP(cfg, NewHTTPClient(cfg), logger)
}

// NewFetcherWithHTTP creates a Fetcher around a ready http.Client.
func NewFetcherWithHTTP(cfg *config.AgentConfig, hc *http.Client, logger *zap.SugaredLogger) *Fetcher {
	return &Fetcher{
		config:     cfg,
		httpClient: hc,
		cb:         newBreaker("dashboard-pull", logger),
		logger:     logger,
	}
}

// NewHTTPClient returns a client with the request timeout and API key
// placement from cfg.
func NewHTTPClient(cfg *config.AgentConfig) *http.Client {
	return &http.Client{
		Timeout: cfg.RequestTimeout,
		Transport: &transport.APIKeyRoundTripper{
			Base:  http.DefaultTransport,
			Key:   cfg.APIKey,
			Query: cfg.AuthStyle == config.AuthQuery,
		},
	}
}

// Fetch performs one logical fetch: up to RetryCount attempts separated by
// RetryDelay. The returned snapshot is sanitized.
func (f *Fetcher) Fetch(ctx context.Context) (model.MetricSnapshot, error) {
	start := time.Now()
	snap, err := f.cb.Execute(func() (model.MetricSnapshot, error) {
		var snap model.MetricSnapshot
		err := utils.WithRetry(ctx, f.config.RetryCount, f.config.RetryDelay, func() error {
			var e error
			snap, e = f.fetchOnce(ctx)
			return e
		})
		return snap, err
	})
	switch {
	case err == nil:
		metrics.ObserveFetch(start, "ok")
		return snap, nil
	case errors.Is(err, payload.ErrMalformed):
		metrics.ObserveFetch(start, "malformed")
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.ObserveFetch(start, "error")
		return model.MetricSnapshot{}, fmt.Errorf("metrics endpoint unavailable: %w", err)
	default:
		metrics.ObserveFetch(start, "error")
	}
	return model.MetricSnapshot{}, fmt.Errorf("fetch metrics: %w", err)
}

func (f *Fetcher) fetchOnce(ctx context.Context) (model.MetricSnapshot, error) {
	metrics.FetchAttempts.Inc()

	req, err := f.newRequest(ctx)
	if err != nil {
		return model.MetricSnapshot{}, err
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return model.MetricSnapshot{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return model.MetricSnapshot{}, &StatusError{Code: resp.StatusCode}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return model.MetricSnapshot{}, fmt.Errorf("read body: %w", err)
	}

	p, err := payload.Decode(raw)
	if err != nil {
		return model.MetricSnapshot{}, err
	}
	if !p.Known() {
		f.logger.Warnw("metrics payload matched no known shape, using zeros", "url", f.config.MetricsURL)
	}
	return p.Snapshot.Sanitize(), nil
}

func (f *Fetcher) newRequest(ctx context.Context) (*http.Request, error) {
	if f.config.MetricsMethod != http.MethodPost {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.config.MetricsURL, nil)
		if err != nil {
			return nil, fmt.Errorf("new request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	body := strings.TrimSpace(f.config.MetricsQuery)
	if body == "" {
		body = "{}"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.config.MetricsURL, bytes.NewReader([]byte(body)))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return req, nil
}
