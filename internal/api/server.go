// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package api serves the read-only status surface: health, the current
// session and Prometheus metrics.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/ManuGH/empytrone/internal/api/middleware"
	"github.com/ManuGH/empytrone/internal/catalog"
	"github.com/ManuGH/empytrone/internal/config"
	"github.com/ManuGH/empytrone/internal/domain/session/manager"
	"github.com/ManuGH/empytrone/internal/eventlog"
	xglog "github.com/ManuGH/empytrone/internal/log"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 5 * time.Second

// SessionSource reports the current session. *manager.Manager implements it.
type SessionSource interface {
	Status() manager.Status
}

// LogStats reports event log counters. *eventlog.Log implements it.
type LogStats interface {
	Stats() eventlog.Stats
}

// SessionIndex lists indexed sessions. *catalog.Store implements it.
type SessionIndex interface {
	List(ctx context.Context, limit int) ([]catalog.Entry, error)
}

// Deps are the collaborators the server reads from.
type Deps struct {
	Sessions SessionSource
	Log      LogStats
	// Catalog is optional.
	Catalog SessionIndex
	// Config returns the live configuration.
	Config  func() config.AppConfig
	Version string
}

// Server is the status HTTP server.
type Server struct {
	deps    Deps
	router  chi.Router
	logger  zerolog.Logger
	started time.Time
}

// New builds the router. rateLimit is requests per client per minute; 0
// disables limiting.
func New(deps Deps, rateLimit int) (*Server, error) {
	if deps.Sessions == nil || deps.Log == nil || deps.Config == nil {
		return nil, errors.New("api: sessions, log and config are required")
	}
	s := &Server{
		deps:    deps,
		logger:  xglog.WithComponent("api"),
		started: time.Now(),
	}
	r := middleware.NewRouter(middleware.StackConfig{
		EnableSecurityHeaders: true,
		EnableMetrics:         true,
		EnableLogging:         true,
	})
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/api/v1", func(r chi.Router) {
		if rateLimit > 0 {
			r.Use(middleware.StatusRateLimit(rateLimit))
		}
		r.Get("/session", s.handleSession)
		r.Get("/sessions", s.handleSessions)
	})
	s.router = r
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Serve serves on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	s.logger.Info().
		Str(xglog.FieldEvent, "api.listening").
		Str("addr", ln.Addr().String()).
		Msg("status API listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api: serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api: shutdown: %w", err)
	}
	<-errCh
	s.logger.Info().Str(xglog.FieldEvent, "api.stopped").Msg("status API stopped")
	return nil
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("api: listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}
