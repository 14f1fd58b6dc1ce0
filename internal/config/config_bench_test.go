package config

import (
	"testing"
)

func BenchmarkReadAgentEnvironment(b *testing.B) {
	b.Setenv("METRICS_URL", "http://srv/api/dashboard/metrics")
	b.Setenv("POLL_INTERVAL", "30s")
	b.Setenv("RETRY_COUNT", "3")
	b.ReportAllocs()

	cfg := DefaultAgentConfig()
	for i := 0; i < b.N; i++ {
		readAgentEnvironment(cfg)
	}
}

func BenchmarkReadRelayEnvironment(b *testing.B) {
	b.Setenv("ADDRESS", "localhost:8080")
	b.Setenv("STORE_INTERVAL", "10s")
	b.ReportAllocs()

	cfg := DefaultRelayConfig()
	for i := 0; i < b.N; i++ {
		readRelayEnvironment(cfg)
	}
}
