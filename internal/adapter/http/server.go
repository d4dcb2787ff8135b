// Package http exposes the coordinator's call surface over HTTP/JSON,
// alongside the operational health, readiness, and metrics endpoints.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zackehh/corba-flood-warning-system/internal/domain"
)

// Coordinator is the call surface served by this adapter.
type Coordinator interface {
	TestConnection(name string) bool
	Name() string
	CheckReadiness(ctx context.Context) error
	RegisterStationConnection(ctx context.Context, station string) bool
	RemoveStationConnection(ctx context.Context, station string) bool
	ReceiveAlert(ctx context.Context, alert domain.Alert)
	CancelAlert(ctx context.Context, key domain.AlertKey)
	GetAlerts() []domain.Alert
	GetDistrictState(ctx context.Context, station string) ([]domain.Alert, bool)
	GetKnownStations(ctx context.Context) []string
}

// Server routes inbound station and operator calls to the coordinator.
type Server struct {
	httpServer  *http.Server
	coordinator Coordinator
	logger      *slog.Logger
}

// NewServer creates the coordinator's HTTP server.
func NewServer(addr string, c Coordinator, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		coordinator: c,
		logger:      logger,
	}

	mux.HandleFunc("GET /v1/ping", s.handlePing)
	mux.HandleFunc("GET /v1/name", s.handleName)
	mux.HandleFunc("PUT /v1/stations/{name}", s.handleStationConnect)
	mux.HandleFunc("DELETE /v1/stations/{name}", s.handleStationDisconnect)
	mux.HandleFunc("GET /v1/stations", s.handleKnownStations)
	mux.HandleFunc("POST /v1/alerts", s.handleReceiveAlert)
	mux.HandleFunc("DELETE /v1/alerts", s.handleCancelAlert)
	mux.HandleFunc("GET /v1/alerts", s.handleGetAlerts)
	mux.HandleFunc("GET /v1/districts/{name}", s.handleDistrictState)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
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

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	ok := s.coordinator.TestConnection(r.URL.Query().Get("name"))
	writeJSON(w, http.StatusOK, map[string]bool{"ok": ok})
}

func (s *Server) handleName(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"name": s.coordinator.Name()})
}

func (s *Server) handleStationConnect(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "station name is required")
		return
	}
	ok := s.coordinator.RegisterStationConnection(r.Context(), name)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": ok})
}

func (s *Server) handleStationDisconnect(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "station name is required")
		return
	}
	ok := s.coordinator.RemoveStationConnection(r.Context(), name)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": ok})
}

func (s *Server) handleKnownStations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{
		"stations": s.coordinator.GetKnownStations(r.Context()),
	})
}

func (s *Server) handleReceiveAlert(w http.ResponseWriter, r *http.Request) {
	var alert domain.Alert
	if err := json.NewDecoder(r.Body).Decode(&alert); err != nil {
		writeError(w, http.StatusBadRequest, "invalid alert payload")
		return
	}
	if err := alert.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.coordinator.ReceiveAlert(r.Context(), alert)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleCancelAlert(w http.ResponseWriter, r *http.Request) {
	var key domain.AlertKey
	if err := json.NewDecoder(r.Body).Decode(&key); err != nil {
		writeError(w, http.StatusBadRequest, "invalid alert key payload")
		return
	}
	if err := key.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.coordinator.CancelAlert(r.Context(), key)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleGetAlerts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]domain.Alert{
		"alerts": s.coordinator.GetAlerts(),
	})
}

func (s *Server) handleDistrictState(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	alerts, ok := s.coordinator.GetDistrictState(r.Context(), name)
	if !ok {
		writeError(w, http.StatusNotFound, "station unknown or unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string][]domain.Alert{"alerts": alerts})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.coordinator.CheckReadiness(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
