// Package relay receives analytics snapshots over a signed webhook and
// serves them to dashboard agents through pull and push endpoints.
package relay

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/and161185/portal-dashboard/internal/config"
	"github.com/and161185/portal-dashboard/internal/server/middleware"
	"github.com/and161185/portal-dashboard/storage"
	"github.com/and161185/portal-dashboard/storage/inmemory"
)

const shutdownTimeout = 5 * time.Second

// FileStore persists the snapshot between restarts.
type FileStore interface {
	SaveToFile(ctx context.Context, path string) error
	LoadFromFile(ctx context.Context, path string) error
}

type Server struct {
	Store     storage.Storage
	FileStore FileStore
	Config    *config.RelayConfig

	hub      *Hub
	upgrader websocket.Upgrader
	logger   *zap.SugaredLogger
}

func NewServer(store *inmemory.MemStorage, cfg *config.RelayConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Server{
		Store:     store,
		FileStore: store,
		Config:    cfg,
		hub:       NewHub(logger),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Agents authenticate with the API key, not with an origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Router builds the relay routes. It fails only on an invalid trusted subnet.
func (srv *Server) Router() (http.Handler, error) {
	trusted, err := middleware.TrustedCIDR(srv.Config.TrustedSubnet)
	if err != nil {
		return nil, err
	}

	router := chi.NewRouter()
	router.Use(chiMiddleware.StripSlashes)
	router.Use(middleware.LogMiddleware(srv.logger))
	router.Use(middleware.CompressMiddleware)

	router.With(
		trusted,
		middleware.RequireAPIKey(srv.Config.APIKey),
		middleware.VerifyHashMiddleware(srv.Config.Key, false),
		middleware.DecompressMiddleware,
	).Post("/webhook", srv.WebhookHandler)

	router.Route("/api/dashboard", func(r chi.Router) {
		r.With(middleware.RequireAPIKey(srv.Config.APIKey, "auth_token")).Get("/metrics", srv.MetricsHandler)
		r.With(middleware.RequireAPIKey(srv.Config.APIKey, "api_key")).Get("/events", srv.EventsHandler)
		r.With(middleware.RequireAPIKey(srv.Config.APIKey, "api_key")).Get("/ws", srv.WSHandler)
	})
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return router, nil
}

// Run restores the snapshot, serves until ctx is cancelled and writes the
// snapshot one last time on the way out.
func (srv *Server) Run(ctx context.Context) error {
	handler, err := srv.Router()
	if err != nil {
		return err
	}

	if srv.Config.Restore {
		if err := srv.FileStore.LoadFromFile(ctx, srv.Config.FileStoragePath); err != nil {
			srv.logger.Errorw("failed to restore snapshot", "path", srv.Config.FileStoragePath, "error", err)
		}
	}

	httpSrv := &http.Server{
		Addr:              srv.Config.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		srv.logger.Infow("relay listening", "addr", srv.Config.Addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	flushCtx, stopFlush := context.WithCancel(ctx)
	flushDone := make(chan struct{})
	go func() {
		defer close(flushDone)
		srv.flushLoop(flushCtx)
	}()

	var runErr error
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = err
		}
	case <-ctx.Done():
		srv.hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			runErr = err
		}
		cancel()
	}

	stopFlush()
	<-flushDone
	srv.save(context.Background())
	return runErr
}

func (srv *Server) flushLoop(ctx context.Context) {
	if srv.Config.StoreInterval <= 0 {
		return
	}
	ticker := time.NewTicker(srv.Config.StoreInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			srv.save(ctx)
		}
	}
}

func (srv *Server) save(ctx context.Context) {
	if srv.Config.FileStoragePath == "" {
		return
	}
	if err := srv.FileStore.SaveToFile(ctx, srv.Config.FileStoragePath); err != nil {
		srv.logger.Errorw("failed to save snapshot", "path", srv.Config.FileStoragePath, "error", err)
	}
}
