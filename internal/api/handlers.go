package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"quadsync/internal/service"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes the operator-facing endpoints: the replication audit and
// the per-store connectivity probe
type Server struct {
	verifier *service.Verifier
	health   *service.HealthChecker
	logger   *slog.Logger
}

func NewServer(verifier *service.Verifier, health *service.HealthChecker, logger *slog.Logger) *Server {
	return &Server{
		verifier: verifier,
		health:   health,
		logger:   logger,
	}
}

// Routes builds the HTTP mux
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /replication/verify/{id}", s.handleVerify)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing incident id"})
		return
	}

	report := s.verifier.Verify(r.Context(), id)
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if !report.AllConnected() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
