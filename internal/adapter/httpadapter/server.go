package httpadapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zschroder/pred-casualties/internal/pipeline"
)

// StatusReporter is the slice of the pipeline the operational surface needs:
// readiness for /readyz and a progress snapshot for /statusz.
type StatusReporter interface {
	sharedobs.ReadinessChecker
	Status() pipeline.Status
}

// Server exposes health, readiness, pipeline status, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	reporter   StatusReporter
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /statusz, and
// /metrics routes.
func NewServer(addr string, reporter StatusReporter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		reporter: reporter,
		logger:   logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(reporter))
	mux.HandleFunc("GET /statusz", s.statusHandler)
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// statusHandler serves a JSON snapshot of pipeline progress: catalog fill,
// completed runs, clusters published, and the time of the last run.
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.reporter.Status()); err != nil {
		s.logger.Error("encode status failed", "error", err)
	}
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}
