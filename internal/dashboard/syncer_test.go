package dashboard

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/and161185/portal-dashboard/internal/render"
	"github.com/and161185/portal-dashboard/model"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func TestSyncer_StopIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	stream := newFakeStream()
	fx := newFixture(testConfig(true), returning(model.MetricSnapshot{Approved: 3}), streamDialer(stream))

	fx.syncer.Stop() // never started

	fx.syncer.Start(context.Background())
	require.Eventually(t, func() bool {
		return fx.syncer.ConnectionInfo().State.String() == "connected(push)"
	}, waitFor, tick)

	fx.syncer.Stop()
	fx.syncer.Stop()

	require.Equal(t, model.StatusStopped, fx.syncer.ConnectionInfo().State.Status)
	select {
	case <-stream.closed:
	default:
		t.Fatal("push stream left open")
	}
	for _, v := range fx.board.Views() {
		require.NotContains(t, v.Classes, render.ChangedClass, v.ID)
	}
}

func TestSyncer_PullStartPaintsPayout(t *testing.T) {
	fx := newFixture(testConfig(false), returning(model.MetricSnapshot{Payout: 1234.5}), nil)
	fx.syncer.Start(context.Background())
	defer fx.syncer.Stop()

	require.Eventually(t, func() bool {
		return fx.widget("admin-payout").Text == "₱1,234.50"
	}, waitFor, tick)
	require.Equal(t, 1234.5, fx.syncer.CurrentMetrics().Payout)
	require.Equal(t, "connected(pull)", fx.syncer.ConnectionInfo().State.String())

	require.Eventually(t, func() bool {
		return len(fx.widget("admin-payout").Classes) == 0
	}, waitFor, tick)
}

func TestSyncer_PushDisabledFallsToPull(t *testing.T) {
	d := failingDialer()
	fx := newFixture(testConfig(false), returning(model.MetricSnapshot{}), d)
	fx.syncer.Start(context.Background())
	defer fx.syncer.Stop()

	require.Eventually(t, func() bool { return fx.syncer.ConnectionInfo().ErrorCount == 0 && d.Dials() == 0 }, waitFor, tick)
	require.False(t, fx.syncer.ConnectionInfo().PushEnabled)
	require.ErrorIs(t, fx.syncer.SwitchMode(model.ModePush), ErrPushUnavailable)
}

func TestSyncer_PushFallbackAfterCeiling(t *testing.T) {
	d := failingDialer()
	f := returning(model.MetricSnapshot{Denied: 2})
	fx := newFixture(testConfig(true), f, d)

	fx.syncer.Start(context.Background())
	defer fx.syncer.Stop()

	require.Eventually(t, func() bool {
		return fx.syncer.ConnectionInfo().State.String() == "connected(pull)"
	}, waitFor, tick)
	require.Equal(t, 5, d.Dials())

	// the poll loop fetched right after the fallback
	require.Eventually(t, func() bool { return f.Calls() >= 2 }, waitFor, tick)

	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 5, d.Dials())
}

func TestSyncer_PushMessages(t *testing.T) {
	stream := newFakeStream()
	f := returning(model.MetricSnapshot{Pending: 1})
	fx := newFixture(testConfig(true), f, streamDialer(stream))

	fx.syncer.Start(context.Background())
	defer fx.syncer.Stop()

	require.Eventually(t, func() bool {
		return fx.syncer.ConnectionInfo().State.String() == "connected(push)"
	}, waitFor, tick)
	// immediate sync on start plus the baseline fetch on open
	require.Eventually(t, func() bool { return f.Calls() == 2 }, waitFor, tick)
	time.Sleep(20 * time.Millisecond) // let both fetches apply

	stream.send(`{"type":"dashboard_update","metrics":{"pending":4,"approved":5,"denied":6,"payout":7.25}}`)
	require.Eventually(t, func() bool {
		return fx.syncer.CurrentMetrics() == model.MetricSnapshot{Pending: 4, Approved: 5, Denied: 6, Payout: 7.25}
	}, waitFor, tick)
	require.Equal(t, "₱7.25", fx.widget("admin-payout").Text)

	stream.send(`{"type":"heartbeat"}`)
	stream.send(`{"type":"presence"}`)
	stream.send(`{"type":"change"}`)
	require.Eventually(t, func() bool { return f.Calls() == 3 }, waitFor, tick)
	require.Eventually(t, func() bool {
		return fx.syncer.CurrentMetrics() == model.MetricSnapshot{Pending: 1}
	}, waitFor, tick)
}

func TestSyncer_PushReconnectsAfterDrop(t *testing.T) {
	first, second := newFakeStream(), newFakeStream()
	d := streamDialer(first, second)
	fx := newFixture(testConfig(true), returning(model.MetricSnapshot{}), d)

	fx.syncer.Start(context.Background())
	defer fx.syncer.Stop()

	require.Eventually(t, func() bool {
		return fx.syncer.ConnectionInfo().State.String() == "connected(push)"
	}, waitFor, tick)

	close(first.msgs)
	require.Eventually(t, func() bool { return d.Dials() == 2 }, waitFor, tick)
	require.Eventually(t, func() bool {
		info := fx.syncer.ConnectionInfo()
		return info.State.String() == "connected(push)" && info.ErrorCount == 0
	}, waitFor, tick)
}

func TestSyncer_PullBackoffAndReset(t *testing.T) {
	cfg := testConfig(false)
	cfg.PollInterval = 10 * time.Millisecond
	cfg.MaxPollInterval = time.Hour

	gate := make(chan struct{})
	f := &fakeFetcher{fn: func(ctx context.Context, call int) (model.MetricSnapshot, error) {
		if call <= 3 {
			return model.MetricSnapshot{}, errUnavailable
		}
		select {
		case <-gate:
			return model.MetricSnapshot{Approved: 1}, nil
		case <-ctx.Done():
			return model.MetricSnapshot{}, ctx.Err()
		}
	}}
	fx := newFixture(cfg, f, nil)
	fx.syncer.Start(context.Background())
	defer fx.syncer.Stop()

	// the fourth fetch holds until the gate opens
	require.Eventually(t, func() bool { return f.Calls() == 4 }, waitFor, tick)
	info := fx.syncer.ConnectionInfo()
	require.Equal(t, 2*cfg.PollInterval, info.PollInterval)
	require.Equal(t, 3, info.ErrorCount)
	require.Equal(t, "error(pull)", info.State.String())

	close(gate)
	require.Eventually(t, func() bool {
		info := fx.syncer.ConnectionInfo()
		return info.PollInterval == cfg.PollInterval && info.ErrorCount == 0
	}, waitFor, tick)
	require.Equal(t, "connected(pull)", fx.syncer.ConnectionInfo().State.String())
}

func TestSyncer_ManualRefreshResetsErrors(t *testing.T) {
	cfg := testConfig(true)
	cfg.ReconnectDelay = time.Hour

	f := &fakeFetcher{fn: func(_ context.Context, call int) (model.MetricSnapshot, error) {
		if call == 1 {
			return model.MetricSnapshot{}, errUnavailable
		}
		return model.MetricSnapshot{Approved: 9}, nil
	}}
	fx := newFixture(cfg, f, failingDialer())
	fx.syncer.Start(context.Background())
	defer fx.syncer.Stop()

	require.Eventually(t, func() bool { return fx.syncer.ConnectionInfo().ErrorCount == 2 }, waitFor, tick)

	fx.syncer.ManualRefresh(context.Background())

	info := fx.syncer.ConnectionInfo()
	require.Zero(t, info.ErrorCount)
	require.Equal(t, model.ModePush, info.State.Mode)
	require.Equal(t, float64(9), fx.syncer.CurrentMetrics().Approved)
}

// A response issued first but completed last overwrites the newer one.
func TestSyncer_LastWriterWins(t *testing.T) {
	release := make(chan struct{})
	a := model.MetricSnapshot{Pending: 1}
	b := model.MetricSnapshot{Pending: 2}

	f := &fakeFetcher{fn: func(ctx context.Context, call int) (model.MetricSnapshot, error) {
		if call == 1 {
			select {
			case <-release:
			case <-ctx.Done():
				return model.MetricSnapshot{}, ctx.Err()
			}
			return a, nil
		}
		return b, nil
	}}
	fx := newFixture(testConfig(false), f, nil)
	fx.syncer.Start(context.Background())
	defer fx.syncer.Stop()

	require.Eventually(t, func() bool { return f.Calls() == 1 }, waitFor, tick)

	fx.syncer.ManualRefresh(context.Background())
	require.Equal(t, b, fx.syncer.CurrentMetrics())

	close(release)
	require.Eventually(t, func() bool { return fx.syncer.CurrentMetrics() == a }, waitFor, tick)
}

func TestSyncer_DiscardsResultsAfterStop(t *testing.T) {
	release := make(chan struct{})
	a := model.MetricSnapshot{Approved: 1}

	f := &fakeFetcher{fn: func(_ context.Context, call int) (model.MetricSnapshot, error) {
		if call == 2 {
			<-release
			return model.MetricSnapshot{Approved: 99}, nil
		}
		return a, nil
	}}
	fx := newFixture(testConfig(false), f, nil)
	fx.syncer.Start(context.Background())
	require.Eventually(t, func() bool { return fx.syncer.CurrentMetrics() == a }, waitFor, tick)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		fx.syncer.ManualRefresh(context.Background())
	}()
	require.Eventually(t, func() bool { return f.Calls() == 2 }, waitFor, tick)

	fx.syncer.Stop()
	close(release)
	wg.Wait()

	require.Equal(t, a, fx.syncer.CurrentMetrics())
	require.Equal(t, "1", fx.widget("admin-approved").Text)
}

func TestSyncer_SwitchMode(t *testing.T) {
	stream := newFakeStream()
	d := streamDialer(stream)
	fx := newFixture(testConfig(true), returning(model.MetricSnapshot{}), d)

	require.NoError(t, fx.syncer.SwitchMode(model.ModePull)) // stopped: no-op

	fx.syncer.Start(context.Background())
	defer fx.syncer.Stop()
	require.Eventually(t, func() bool {
		return fx.syncer.ConnectionInfo().State.String() == "connected(push)"
	}, waitFor, tick)

	require.NoError(t, fx.syncer.SwitchMode(model.ModePull))
	require.Equal(t, "connected(pull)", fx.syncer.ConnectionInfo().State.String())
	select {
	case <-stream.closed:
	case <-time.After(waitFor):
		t.Fatal("push stream not closed after switching to pull")
	}

	// the only stream is gone, so promotion goes through reconnect attempts
	require.NoError(t, fx.syncer.SwitchMode(model.ModePush))
	require.Eventually(t, func() bool { return d.Dials() >= 2 }, waitFor, tick)
}

func TestSyncer_RestartAfterStop(t *testing.T) {
	f := returning(model.MetricSnapshot{Denied: 4})
	fx := newFixture(testConfig(false), f, nil)

	fx.syncer.Start(context.Background())
	require.Eventually(t, func() bool { return f.Calls() == 1 }, waitFor, tick)
	fx.syncer.Stop()

	fx.syncer.Start(context.Background())
	defer fx.syncer.Stop()
	require.Eventually(t, func() bool { return f.Calls() == 2 }, waitFor, tick)
	require.Equal(t, "connected(pull)", fx.syncer.ConnectionInfo().State.String())
}

func TestSyncer_RunReturnsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	fx := newFixture(testConfig(false), returning(model.MetricSnapshot{}), nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- fx.syncer.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("Run did not return")
	}
	require.Equal(t, model.StatusStopped, fx.syncer.ConnectionInfo().State.Status)
}
