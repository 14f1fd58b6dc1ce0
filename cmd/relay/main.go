// Command relay accepts analytics snapshots on a webhook and serves them to
// dashboard agents over pull, SSE and WebSocket endpoints.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/and161185/portal-dashboard/internal/buildinfo"
	"github.com/and161185/portal-dashboard/internal/config"
	"github.com/and161185/portal-dashboard/internal/relay"
	"github.com/and161185/portal-dashboard/storage/inmemory"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	cfg := config.NewRelayConfig()
	defer func() { _ = cfg.Logger.Sync() }()
	buildinfo.New(buildVersion, buildDate, buildCommit).Log(cfg.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg.Logger.Infof("Relay config: Addr=%s, StoreInterval=%s, FileStoragePath=%q, Restore=%t, TrustedSubnet=%q, signed=%t",
		cfg.Addr,
		cfg.StoreInterval,
		cfg.FileStoragePath,
		cfg.Restore,
		cfg.TrustedSubnet,
		cfg.Key != "",
	)

	srv := relay.NewServer(inmemory.NewMemStorage(), cfg)
	if err := srv.Run(ctx); err != nil {
		cfg.Logger.Fatal(err)
	}
}
