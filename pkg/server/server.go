// Package server provides the HTTP front door for the router: the
// public completion endpoint, the channel administration API, and the
// health and metrics endpoints.
package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"conduit-hq/conduit/pkg/config"
	"conduit-hq/conduit/pkg/health"
	"conduit-hq/conduit/pkg/proxy"
	"conduit-hq/conduit/pkg/proxy/handlers"
	"conduit-hq/conduit/pkg/proxy/middleware"
	"conduit-hq/conduit/pkg/registry"
	"conduit-hq/conduit/pkg/telemetry/metrics"
	"conduit-hq/conduit/pkg/tenant"
)

// Dependencies are the wired components the server routes traffic to.
type Dependencies struct {
	Dispatcher *proxy.Dispatcher
	Registry   *registry.Registry
	Book       *health.Book
	Resolver   tenant.Resolver
	Collector  *metrics.Collector
}

// Server is the HTTP server for router traffic.
type Server struct {
	config       *config.ServerConfig
	metricsCfg   *config.MetricsConfig
	deps         Dependencies
	httpServer   *http.Server
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// NewServer creates the server. It does not listen until Start.
func NewServer(cfg *config.ServerConfig, metricsCfg *config.MetricsConfig, deps Dependencies) *Server {
	return &Server{
		config:     cfg,
		metricsCfg: metricsCfg,
		deps:       deps,
	}
}

// Start starts the HTTP server and blocks until the context is
// cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Addr:              s.config.ListenAddress,
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
		IdleTimeout:       s.config.IdleTimeout,
		MaxHeaderBytes:    s.config.MaxHeaderBytes,
	}

	if s.config.TLS.Enabled {
		tlsConfig, err := s.configureTLS()
		if err != nil {
			return fmt.Errorf("failed to configure TLS: %w", err)
		}
		s.httpServer.TLSConfig = tlsConfig
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("starting server",
			"address", s.config.ListenAddress,
			"tls_enabled", s.config.TLS.Enabled,
		)

		var err error
		if s.config.TLS.Enabled {
			err = s.httpServer.ListenAndServeTLS(s.config.TLS.CertFile, s.config.TLS.KeyFile)
		} else {
			err = s.httpServer.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Shutdown gracefully drains in-flight requests, bounded by the
// configured shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		slog.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		slog.Info("server stopped")
	})

	return shutdownErr
}

// Handler builds the route table and middleware chain.
//
// The completion endpoint is NOT wrapped in a timeout middleware:
// streaming responses outlive any sane request deadline, so the chat
// handler applies the request timeout itself to non-streaming calls
// only.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	authRequired := middleware.Auth(s.deps.Resolver)

	chat := handlers.NewChatHandler(s.deps.Dispatcher, s.config.RequestTimeout)
	mux.Handle("/v1/chat/completions", authRequired(chat))

	// Channel administration lives on its own mux so the whole subtree
	// shares one auth chain. Admin operations never stream, so the
	// request deadline applies to all of them.
	adminMux := http.NewServeMux()
	handlers.NewChannelHandler(s.deps.Registry, s.deps.Book).Register(adminMux)
	var admin http.Handler = middleware.RequireAdmin(adminMux)
	if s.config.RequestTimeout > 0 {
		admin = middleware.Timeout(s.config.RequestTimeout)(admin)
	}
	mux.Handle("/admin/", authRequired(admin))

	mux.Handle("/health", handlers.NewHealthHandler())
	mux.Handle("/ready", handlers.NewReadyHandler(s.deps.Registry, s.deps.Book))

	if s.metricsCfg != nil && s.metricsCfg.Enabled != nil && *s.metricsCfg.Enabled && s.deps.Collector != nil {
		mux.Handle(s.metricsCfg.Path, s.deps.Collector.Handler())
	}

	var handler http.Handler = mux
	handler = middleware.CORS(s.convertCORSConfig())(handler)
	handler = middleware.RequestID(handler)
	handler = middleware.Logging(handler)
	handler = middleware.Recovery(handler)
	return handler
}

func (s *Server) configureTLS() (*tls.Config, error) {
	if s.config.TLS.CertFile == "" {
		return nil, fmt.Errorf("TLS cert file not specified")
	}
	if s.config.TLS.KeyFile == "" {
		return nil, fmt.Errorf("TLS key file not specified")
	}
	if _, err := os.Stat(s.config.TLS.CertFile); os.IsNotExist(err) {
		return nil, fmt.Errorf("TLS cert file not found: %s", s.config.TLS.CertFile)
	}
	if _, err := os.Stat(s.config.TLS.KeyFile); os.IsNotExist(err) {
		return nil, fmt.Errorf("TLS key file not found: %s", s.config.TLS.KeyFile)
	}

	return &tls.Config{
		MinVersion: tls.VersionTLS13,
	}, nil
}

// IsRunning reports whether the server is accepting connections.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

func (s *Server) convertCORSConfig() *middleware.CORSConfig {
	enabled := s.config.CORS.Enabled == nil || *s.config.CORS.Enabled
	return &middleware.CORSConfig{
		Enabled:        enabled,
		AllowedOrigins: s.config.CORS.AllowedOrigins,
		AllowedMethods: s.config.CORS.AllowedMethods,
		AllowedHeaders: s.config.CORS.AllowedHeaders,
		MaxAge:         s.config.CORS.MaxAge,
	}
}
