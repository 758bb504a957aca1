// Package transport runs the HTTP serving mode: the MCP handler plus
// health and metrics endpoints behind a chi router.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kadirpekel/agentbridge/pkg/metrics"
)

type Config struct {
	// Address to bind, e.g. "0.0.0.0:8080".
	Address string

	ShutdownTimeout time.Duration
}

// Server manages the lifecycle of the HTTP serving mode.
type Server struct {
	httpServer *http.Server
	config     Config
}

// NewServer wires the router: mcpHandler at /mcp, health at /health,
// Prometheus exposition at /metrics, request metrics on everything.
func NewServer(mcpHandler http.Handler, m *metrics.Metrics, cfg Config) (*Server, error) {
	if mcpHandler == nil {
		return nil, fmt.Errorf("mcp handler is required")
	}
	if m == nil {
		m = metrics.New(nil)
	}
	if cfg.Address == "" {
		cfg.Address = ":8080"
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/health", handleHealth)
	r.Method(http.MethodGet, "/metrics", m.Handler())
	r.Handle("/mcp", mcpHandler)
	r.Handle("/mcp/*", mcpHandler)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Address,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
		config: cfg,
	}, nil
}

// Start serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "address", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	slog.Info("Shutting down HTTP server")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return <-errCh
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
