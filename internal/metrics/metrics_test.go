package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveFetch(t *testing.T) {
	before := testutil.ToFloat64(FetchTotal.WithLabelValues("ok"))
	ObserveFetch(time.Now().Add(-time.Second), "ok")
	require.Equal(t, before+1, testutil.ToFloat64(FetchTotal.WithLabelValues("ok")))
}

func TestCircuitBreakerMetrics(t *testing.T) {
	CircuitBreakerState.WithLabelValues("test").Set(2)
	require.Equal(t, float64(2), testutil.ToFloat64(CircuitBreakerState.WithLabelValues("test")))

	CircuitBreakerTransitions.WithLabelValues("test", "closed", "open").Inc()
	require.Equal(t, float64(1), testutil.ToFloat64(CircuitBreakerTransitions.WithLabelValues("test", "closed", "open")))
}
