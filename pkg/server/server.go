package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"materna360/quotagate/pkg/config"
	"materna360/quotagate/pkg/server/middleware"
	"materna360/quotagate/pkg/telemetry/health"
)

// Routes holds the handlers mounted by the server. Nil handlers are skipped.
type Routes struct {
	Suggestion http.Handler
	Quota      http.Handler
	Health     *health.Checker
	Version    http.Handler

	// Metrics is mounted at MetricsPath (default "/metrics").
	Metrics     http.Handler
	MetricsPath string
}

// Server is the quotagate HTTP server.
type Server struct {
	config   *config.ServerConfig
	routes   Routes
	recorder middleware.Recorder
	logger   *slog.Logger

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
	running    bool
}

// New creates a server. rec may be nil.
func New(cfg *config.ServerConfig, routes Routes, rec middleware.Recorder, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if routes.MetricsPath == "" {
		routes.MetricsPath = config.DefaultMetricsPath
	}
	return &Server{
		config:   cfg,
		routes:   routes,
		recorder: rec,
		logger:   logger.With("component", "server"),
	}
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	if s.routes.Suggestion != nil {
		mux.Handle("POST /api/ai/suggestion", s.routes.Suggestion)
	}
	if s.routes.Quota != nil {
		mux.Handle("GET /api/ai/quota", s.routes.Quota)
	}
	if s.routes.Health != nil {
		mux.Handle("/health", s.routes.Health.LivenessHandler())
		mux.Handle("/ready", s.routes.Health.ReadinessHandler())
	}
	if s.routes.Version != nil {
		mux.Handle("/version", s.routes.Version)
	}
	if s.routes.Metrics != nil {
		mux.Handle("GET "+s.routes.MetricsPath, s.routes.Metrics)
	}

	return middleware.Chain(mux,
		middleware.Recovery(s.logger),
		middleware.RequestID,
		middleware.Tracing,
		middleware.Logging(s.logger, s.recorder),
		middleware.CORS(s.config.CORS),
		middleware.BodyLimit(s.config.MaxBodyBytes),
	)
}

// Start listens on the configured address and serves until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server is already running")
	}

	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}

	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       s.config.ReadTimeout,
		ReadHeaderTimeout: s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
		IdleTimeout:       s.config.IdleTimeout,
		MaxHeaderBytes:    s.config.MaxHeaderBytes,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	s.running = true
	srv := s.httpServer
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "address", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown(context.WithoutCancel(ctx))
	case err, ok := <-errCh:
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		if ok {
			return err
		}
		return nil
	}
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown drains in-flight requests within the configured shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	srv := s.httpServer
	s.mu.Unlock()

	s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}
