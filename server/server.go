// Package server exposes the style transfer runtime over HTTP: image
// transfer, slot status, history, Prometheus metrics and a live event feed.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"go_styletransfer/db"
	"go_styletransfer/metrics"
	"go_styletransfer/pixel"
	"go_styletransfer/styletransfer"
)

// Config configures the Server.
type Config struct {
	// Addr to listen on (default ":8080")
	Addr string

	// MaxUploadBytes caps the request body of /api/transfer
	MaxUploadBytes int64

	// MaxPixels caps the declared width*height of an uploaded image
	MaxPixels int64

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// LogSkipPaths are not request-logged
	LogSkipPaths []string

	// Version reported by /api/status
	Version string

	// DefaultLimit and MaxLimit bound the history endpoints
	DefaultLimit int
	MaxLimit     int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		MaxUploadBytes: 32 << 20,
		MaxPixels:      pixel.DefaultMaxPixels,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   60 * time.Second,
		IdleTimeout:    120 * time.Second,
		LogSkipPaths:   []string{"/health", "/metrics"},
		Version:        "dev",
		DefaultLimit:   20,
		MaxLimit:       100,
	}
}

// History is the read side of the transfer history database.
type History interface {
	RecentTransfers(ctx context.Context, limit int) ([]db.HistoryEntry, error)
	SummaryByStyle(ctx context.Context) ([]db.StyleSummary, error)
}

// Operations tracks in-flight transfers for graceful shutdown.
// shutdown.Manager implements it.
type Operations interface {
	WrapOperation(ctx context.Context, name string, fn func(context.Context) error) error
}

// Options are the optional collaborators of a Server. Nil fields disable
// the endpoints that need them.
type Options struct {
	Store      metrics.Collector
	Exporter   *metrics.Exporter
	GPU        *metrics.GPUSampler
	History    History
	Events     *Events
	Operations Operations
	Auth       *APIKeyAuth
}

// Server serves the HTTP API for one Runtime.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	config     Config
	runtime    *styletransfer.Runtime
	opts       Options
	logger     *zap.Logger
}

// New wires the routes and middleware. The runtime may be initialized later;
// until then transfers fail with 503.
func New(config Config, rt *styletransfer.Runtime, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultConfig()
	if config.Addr == "" {
		config.Addr = defaults.Addr
	}
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = defaults.MaxUploadBytes
	}
	if config.MaxPixels <= 0 {
		config.MaxPixels = defaults.MaxPixels
	}
	if config.DefaultLimit < 1 {
		config.DefaultLimit = defaults.DefaultLimit
	}
	if config.MaxLimit < config.DefaultLimit {
		config.MaxLimit = max(defaults.MaxLimit, config.DefaultLimit)
	}

	s := &Server{
		mux:     http.NewServeMux(),
		config:  config,
		runtime: rt,
		opts:    opts,
		logger:  logger.Named("http"),
	}
	s.setupRoutes()
	s.httpServer = &http.Server{
		Addr:         config.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/transfer", s.protect(s.handleTransfer))
	s.mux.HandleFunc("/api/styles", s.handleStyles)
	s.mux.HandleFunc("/api/status", s.handleStatus)
	s.mux.HandleFunc("/api/history", s.protect(s.handleHistory))
	s.mux.HandleFunc("/api/history/summary", s.protect(s.handleHistorySummary))

	if s.opts.Exporter != nil {
		s.mux.Handle("/metrics", s.opts.Exporter.Handler())
	}
	if s.opts.Events != nil {
		s.mux.HandleFunc("/ws", s.protect(s.opts.Events.HandleConnection))
	}
}

// Handler returns the routes wrapped in the request middleware.
func (s *Server) Handler() http.Handler {
	return requestMiddleware(s.logger, s.config.LogSkipPaths)(s.mux)
}

// HTTPServer exposes the underlying server for shutdown registration.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// ListenAndServe listens on Addr and serves until Shutdown.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln and runs the event feed until ctx is cancelled. It
// returns nil after a graceful Shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.opts.Events != nil {
		go s.opts.Events.Start(ctx)
	}
	s.logger.Info("HTTP API listening", zap.String("addr", ln.Addr().String()))

	err := s.httpServer.Serve(ln)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
