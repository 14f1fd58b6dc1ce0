// Package server exposes the agent's debug HTTP surface: current values,
// connection state, rendered widgets and manual controls.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/and161185/portal-dashboard/internal/render"
	"github.com/and161185/portal-dashboard/internal/server/middleware"
	"github.com/and161185/portal-dashboard/model"
)

const shutdownTimeout = 5 * time.Second

// Syncer is the part of the sync orchestrator the debug surface drives.
type Syncer interface {
	CurrentMetrics() model.MetricSnapshot
	ConnectionInfo() model.ConnectionInfo
	ManualRefresh(ctx context.Context)
	SwitchMode(mode model.Mode) error
}

// WidgetSource lists rendered widgets.
type WidgetSource interface {
	Views() []render.WidgetView
}

type Server struct {
	Syncer  Syncer
	Widgets WidgetSource
	Addr    string
	Logger  *zap.SugaredLogger
}

func NewServer(syncer Syncer, widgets WidgetSource, addr string, logger *zap.SugaredLogger) *Server {
	return &Server{
		Syncer:  syncer,
		Widgets: widgets,
		Addr:    addr,
		Logger:  logger,
	}
}

// Router builds the chi router with all debug routes.
func (srv *Server) Router() http.Handler {
	router := chi.NewRouter()
	router.Use(chiMiddleware.StripSlashes)
	router.Use(middleware.LogMiddleware(srv.Logger))
	router.Use(middleware.CompressMiddleware)

	router.Get("/api/metrics", srv.MetricsHandler)
	router.Get("/api/connection", srv.ConnectionHandler)
	router.Get("/api/widgets", srv.WidgetsHandler)
	router.Post("/api/refresh", srv.RefreshHandler)
	router.Post("/api/mode/{mode}", srv.SwitchModeHandler)
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return router
}

// Run serves until ctx is cancelled, then shuts the listener down.
func (srv *Server) Run(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:              srv.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		srv.Logger.Infow("debug server listening", "addr", srv.Addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (srv *Server) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	srv.writeJSON(w, http.StatusOK, srv.Syncer.CurrentMetrics())
}

func (srv *Server) ConnectionHandler(w http.ResponseWriter, r *http.Request) {
	srv.writeJSON(w, http.StatusOK, srv.Syncer.ConnectionInfo())
}

func (srv *Server) WidgetsHandler(w http.ResponseWriter, r *http.Request) {
	srv.writeJSON(w, http.StatusOK, srv.Widgets.Views())
}

// RefreshHandler runs one synchronous fetch and returns the resulting values.
func (srv *Server) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	srv.Syncer.ManualRefresh(r.Context())
	srv.writeJSON(w, http.StatusOK, srv.Syncer.CurrentMetrics())
}

func (srv *Server) SwitchModeHandler(w http.ResponseWriter, r *http.Request) {
	mode, err := model.ParseMode(chi.URLParam(r, "mode"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := srv.Syncer.SwitchMode(mode); err != nil {
		srv.Logger.Warnw("mode switch rejected", "mode", mode, "error", err)
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	srv.writeJSON(w, http.StatusOK, srv.Syncer.ConnectionInfo())
}

func (srv *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		srv.Logger.Errorw("failed to write response JSON", "error", err)
	}
}
