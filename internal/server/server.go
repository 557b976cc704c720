package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"healthmonitor/internal/metrics"
	"healthmonitor/internal/models"
	"healthmonitor/internal/store"
)

const defaultHistoryLimit = 200

// Server exposes the read-only status API over HTTP.
type Server struct {
	httpServer   *http.Server
	store        store.Store
	historyLimit int
}

// New creates a configured HTTP server for the monitor.
func New(addr string, st store.Store) *Server {
	mux := http.NewServeMux()
	s := &Server{
		httpServer:   &http.Server{Addr: addr, Handler: mux},
		store:        st,
		historyLimit: defaultHistoryLimit,
	}
	s.registerRoutes(mux)
	return s
}

// Run blocks and serves HTTP traffic.
func (s *Server) Run() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts the server down.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the HTTP handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/uptime", s.handleUptime)
	mux.HandleFunc("/api/alerts", s.handleAlerts)
	mux.HandleFunc("/api/live", s.handleLive)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	record, ok := s.store.Latest()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{
			"timestamp": nil,
			"probes":    []models.ProbeResult{},
		})
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	since, err := parseSince(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	records, err := s.store.QuerySince(since)
	if err != nil {
		http.Error(w, "query history failed", http.StatusInternalServerError)
		return
	}
	limit := parseLimit(r, s.historyLimit)
	if len(records) > limit {
		records = records[len(records)-limit:]
	}
	if records == nil {
		records = []models.HealthRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleUptime(w http.ResponseWriter, r *http.Request) {
	since, err := parseSince(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	records, err := s.store.QuerySince(since)
	if err != nil {
		http.Error(w, "query history failed", http.StatusInternalServerError)
		return
	}
	summary := metrics.ComputeProbeUptime(records)
	if summary == nil {
		summary = []metrics.ProbeUptime{}
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	since, err := parseSince(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	events, err := s.store.AlertsSince(since)
	if err != nil {
		http.Error(w, "query alerts failed", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []models.AlertEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

func parseSince(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("since")
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func parseLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	if value > fallback {
		return fallback
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}
