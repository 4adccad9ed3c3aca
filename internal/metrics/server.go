package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes the Prometheus scrape endpoint.
type Server struct {
	port   int
	path   string
	logger *slog.Logger
	srv    *http.Server
	extra  map[string]http.Handler
}

// NewServer creates a metrics server listening on the given port.
func NewServer(port int, path string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		port:   port,
		path:   path,
		logger: logger,
	}
}

// Handle mounts an extra handler, such as a health check, next to the
// scrape endpoint. Must be called before Start.
func (s *Server) Handle(pattern string, handler http.Handler) {
	if s.extra == nil {
		s.extra = make(map[string]http.Handler)
	}
	s.extra[pattern] = handler
}

// Start begins serving the scrape endpoint in the background.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle(s.path, promhttp.Handler())
	for pattern, handler := range s.extra {
		mux.Handle(pattern, handler)
	}

	s.srv = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: mux,
	}

	go func() {
		s.logger.Info("metrics server started", "port", s.port, "path", s.path)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("metrics server failed", "error", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the scrape endpoint.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	s.logger.Info("stopping metrics server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}
