// Package server provides HTTP server wiring and lifecycle management.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gloriousnetworker/dcarbon-portal/internal/platform/config"
	"github.com/gloriousnetworker/dcarbon-portal/internal/platform/http/auth"
	tlspkg "github.com/gloriousnetworker/dcarbon-portal/internal/platform/http/tls"
	"github.com/gloriousnetworker/dcarbon-portal/internal/platform/logutil"
)

var ErrMissingSessions = errors.New("server: a session source is required")

// Service is a mountable group of handlers.
type Service interface {
	// Prefix is the mount point under the route group, without slashes ("api").
	Prefix() string
	Handler() http.Handler
	// Unprotected lists paths, relative to the prefix, that need no session.
	Unprotected() []string
	Close() error
}

// Options carries what the server mounts.
type Options struct {
	// Sessions resolves session IDs for the auth gate.
	Sessions auth.SessionSource

	// Health serves /healthz. Nil mounts a static "ok" handler.
	Health http.Handler

	// Services are mounted in order and closed in reverse order.
	Services []Service
}

// Server wraps the HTTP server and its mounted services.
type Server struct {
	cfg        *config.Config
	httpServer *http.Server
	logger     *slog.Logger
	opts       Options

	// mountedServices holds services in mount order for shutdown.
	mountedServices []Service
}

// New creates a Server with the given configuration.
func New(cfg *config.Config, logger *slog.Logger, opts Options) (*Server, error) {
	logger = logutil.NoopIfNil(logger)
	if opts.Sessions == nil {
		return nil, ErrMissingSessions
	}

	s := &Server{
		cfg:    cfg,
		logger: logger,
		opts:   opts,
	}

	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.setupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second, // document uploads
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return s, nil
}

// Handler returns the root handler with the full middleware chain.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server. It blocks until the server is shut down.
func (s *Server) Start() error {
	s.logger.Info("starting server", "addr", s.cfg.ListenAddr, "tls_mode", s.cfg.TLS.Mode)

	tlsConfig, err := tlspkg.ServerConfig(s.cfg.TLS, s.logger)
	if err != nil {
		return fmt.Errorf("failed to configure TLS: %w", err)
	}
	if tlsConfig == nil {
		return s.httpServer.ListenAndServe()
	}

	s.httpServer.TLSConfig = tlsConfig
	// certificates are in TLSConfig
	return s.httpServer.ListenAndServeTLS("", "")
}

// Shutdown gracefully shuts down the server and all mounted services.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	httpErr := s.httpServer.Shutdown(ctx)

	for i := len(s.mountedServices) - 1; i >= 0; i-- {
		svc := s.mountedServices[i]
		if err := svc.Close(); err != nil {
			s.logger.Warn("service close error", "service", svc.Prefix(), "error", err)
			continue
		}
		s.logger.Debug("service closed", "service", svc.Prefix())
	}

	return httpErr
}
