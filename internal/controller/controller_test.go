package controller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/and161185/portal-dashboard/model"
)

func newTestController() *Controller {
	return New(Config{
		PushErrorCeiling:     5,
		PullFailureThreshold: 3,
		PollInterval:         30 * time.Second,
		MaxPollInterval:      5 * time.Minute,
	}, zap.NewNop().Sugar())
}

func TestController_StoppedIgnoresEvents(t *testing.T) {
	c := newTestController()
	require.Equal(t, model.StatusStopped, c.Info().State.Status)

	require.Equal(t, DecisionNone, c.PushFailed())
	require.False(t, c.FetchFailed())
	c.PushOpened()
	require.Equal(t, model.ConnectionState{Status: model.StatusStopped}, c.Info().State)
	require.Zero(t, c.Info().ErrorCount)
}

func TestController_PushOpenedResetsErrors(t *testing.T) {
	c := newTestController()
	c.Start(model.ModePush)
	require.Equal(t, "reconnecting(push)", c.Info().State.String())

	require.Equal(t, DecisionRetryPush, c.PushFailed())
	require.Equal(t, DecisionRetryPush, c.PushFailed())
	require.Equal(t, 2, c.Info().ErrorCount)

	c.PushOpened()
	info := c.Info()
	require.Equal(t, "connected(push)", info.State.String())
	require.Zero(t, info.ErrorCount)
	require.Zero(t, info.PushFailures)
}

func TestController_FallbackAfterCeiling(t *testing.T) {
	c := newTestController()
	c.Start(model.ModePush)
	c.PushOpened()

	for i := 1; i < 5; i++ {
		require.Equal(t, DecisionRetryPush, c.PushFailed(), "failure %d", i)
		require.Equal(t, model.StatusReconnecting, c.Info().State.Status)
	}
	require.Equal(t, DecisionFallbackToPull, c.PushFailed())

	info := c.Info()
	require.Equal(t, model.ConnectionState{Status: model.StatusConnected, Mode: model.ModePull}, info.State)
	require.Equal(t, 5, info.ErrorCount)
	require.Equal(t, 30*time.Second, info.PollInterval)

	// late push failures after the fallback change nothing
	require.Equal(t, DecisionNone, c.PushFailed())
	require.Equal(t, model.ModePull, c.Mode())
}

func TestController_PullBackoffDoublesAndResets(t *testing.T) {
	c := newTestController()
	c.Start(model.ModePull)

	require.False(t, c.FetchFailed())
	require.False(t, c.FetchFailed())
	require.Equal(t, 30*time.Second, c.Interval())
	require.Equal(t, model.StatusError, c.Info().State.Status)

	require.True(t, c.FetchFailed())
	require.Equal(t, 60*time.Second, c.Interval())
	require.Equal(t, 3, c.Info().ErrorCount)
	require.Zero(t, c.Info().PullFailures)

	c.FetchSucceeded()
	info := c.Info()
	require.Equal(t, 30*time.Second, info.PollInterval)
	require.Equal(t, model.ConnectionState{Status: model.StatusConnected, Mode: model.ModePull}, info.State)
	require.Zero(t, info.ErrorCount)
}

func TestController_PullBackoffCapped(t *testing.T) {
	c := newTestController()
	c.Start(model.ModePull)

	var intervals []time.Duration
	for i := 0; i < 5; i++ {
		for j := 0; j < 3; j++ {
			c.FetchFailed()
		}
		intervals = append(intervals, c.Interval())
	}
	require.Equal(t, []time.Duration{
		time.Minute, 2 * time.Minute, 4 * time.Minute, 5 * time.Minute, 5 * time.Minute,
	}, intervals)
}

func TestController_PushModeFetchFailure(t *testing.T) {
	c := newTestController()
	c.Start(model.ModePush)
	c.PushOpened()

	for i := 0; i < 4; i++ {
		require.False(t, c.FetchFailed())
	}
	info := c.Info()
	require.Equal(t, "connected(push)", info.State.String())
	require.Equal(t, 4, info.ErrorCount)
	require.Equal(t, 30*time.Second, info.PollInterval)
}

func TestController_ResetErrors(t *testing.T) {
	c := newTestController()
	c.Start(model.ModePull)
	c.FetchFailed()
	c.FetchFailed()
	require.Equal(t, 2, c.Info().ErrorCount)

	c.ResetErrors()
	require.Zero(t, c.Info().ErrorCount)
	require.Zero(t, c.Info().PullFailures)
	require.Equal(t, model.ModePull, c.Mode())

	c.FetchSucceeded()
	require.Zero(t, c.Info().ErrorCount)
}

func TestController_SwitchTo(t *testing.T) {
	c := newTestController()
	c.Start(model.ModePull)
	for i := 0; i < 3; i++ {
		c.FetchFailed()
	}
	require.Equal(t, time.Minute, c.Interval())

	c.SwitchTo(model.ModePush)
	info := c.Info()
	require.Equal(t, "reconnecting(push)", info.State.String())
	require.Zero(t, info.ErrorCount)
	require.Equal(t, 30*time.Second, info.PollInterval)

	c.SwitchTo(model.ModePull)
	require.Equal(t, "connected(pull)", c.Info().State.String())

	c.Stop()
	c.SwitchTo(model.ModePush)
	require.Equal(t, model.StatusStopped, c.Info().State.Status)
}

func TestDecisionString(t *testing.T) {
	require.Equal(t, "retry_push", DecisionRetryPush.String())
	require.Equal(t, "fallback_to_pull", DecisionFallbackToPull.String())
	require.Equal(t, "none", DecisionNone.String())
}
