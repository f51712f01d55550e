// Package http exposes the coordinator's operational endpoints: health,
// readiness, metrics, the latest cycle result, and checkpointed sessions.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/disaster-response-coordinator/internal/orchestrator"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// ResultSource provides the most recent cycle result, if any.
type ResultSource interface {
	Latest() (orchestrator.Result, bool)
}

// SessionLister enumerates checkpointed session IDs.
type SessionLister interface {
	Sessions() ([]string, error)
}

// Server exposes health, readiness, metrics, and run-result HTTP endpoints.
type Server struct {
	httpServer *http.Server
	results    ResultSource
	sessions   SessionLister
	logger     *slog.Logger
}

// NewServer wires the route table. results and sessions may be nil; their
// routes then report that the feature is not configured.
func NewServer(addr string, ready ReadinessChecker, results ResultSource, sessions SessionLister, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		results:  results,
		sessions: sessions,
		logger:   logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.HandleFunc("GET /result", s.handleResult)
	mux.HandleFunc("GET /sessions", s.handleSessions)
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
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

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func (s *Server) handleResult(w http.ResponseWriter, _ *http.Request) {
	if s.results == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "result reporting not configured"})
		return
	}
	res, ok := s.results.Latest()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no completed cycle yet"})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSessions(w http.ResponseWriter, _ *http.Request) {
	if s.sessions == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "checkpointing not configured"})
		return
	}
	ids, err := s.sessions.Sessions()
	if err != nil {
		s.logger.Error("session listing failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"sessions": ids})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort operational response
}
