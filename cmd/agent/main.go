// Command agent keeps a set of dashboard widgets in sync with the portal's
// metrics endpoint, preferring server push and falling back to polling.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/and161185/portal-dashboard/internal/buildinfo"
	"github.com/and161185/portal-dashboard/internal/client"
	"github.com/and161185/portal-dashboard/internal/config"
	"github.com/and161185/portal-dashboard/internal/dashboard"
	"github.com/and161185/portal-dashboard/internal/push"
	"github.com/and161185/portal-dashboard/internal/render"
	"github.com/and161185/portal-dashboard/internal/server"
	"github.com/and161185/portal-dashboard/storage/inmemory"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	cfg := config.NewAgentConfig()
	defer func() { _ = cfg.Logger.Sync() }()
	buildinfo.New(buildVersion, buildDate, buildCommit).Log(cfg.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg.Logger.Infof("Agent config: MetricsURL=%s, EventsURL=%s, Push=%t(%s), PollInterval=%s, DebugAddr=%q",
		cfg.MetricsURL,
		cfg.EventsURL,
		cfg.PushEnabled,
		cfg.PushTransport,
		cfg.PollInterval,
		cfg.DebugAddr,
	)

	if err := run(ctx, cfg); err != nil {
		cfg.Logger.Fatal(err)
	}
}

func run(ctx context.Context, cfg *config.AgentConfig) error {
	store := inmemory.NewMemStorage()
	if cfg.SnapshotFile != "" {
		if err := store.LoadFromFile(ctx, cfg.SnapshotFile); err != nil {
			cfg.Logger.Warnw("failed to restore last snapshot", "path", cfg.SnapshotFile, "error", err)
		}
	}

	board := render.NewBoard()
	painter := render.NewPainter(board, render.NewFormatter(cfg.Locale, cfg.CurrencySymbol), cfg.FlashDuration, cfg.Logger)

	var dialer push.Dialer
	if cfg.PushEnabled {
		dialer = push.NewDialer(cfg)
	}
	syncer := dashboard.New(cfg, client.NewFetcher(cfg, cfg.Logger), dialer, painter, store, cfg.Logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return syncer.Run(gctx) })
	if cfg.DebugAddr != "" {
		srv := server.NewServer(syncer, board, cfg.DebugAddr, cfg.Logger)
		g.Go(func() error { return srv.Run(gctx) })
	}
	err := g.Wait()

	if cfg.SnapshotFile != "" {
		if saveErr := store.SaveToFile(context.Background(), cfg.SnapshotFile); saveErr != nil {
			cfg.Logger.Errorw("failed to save snapshot", "path", cfg.SnapshotFile, "error", saveErr)
		}
	}
	return err
}
