package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/roller/pkg/events"
	"github.com/cuemby/roller/pkg/journal"
	"github.com/cuemby/roller/pkg/log"
	"github.com/cuemby/roller/pkg/metrics"
)

// maxNotificationBytes bounds inbound webhook payloads
const maxNotificationBytes = 1 << 20

// defaultPassLimit is how many journal records /v1/passes returns when the
// request does not say
const defaultPassLimit = 20

// Server exposes the controller's HTTP surface: health probes, metrics,
// the notification webhook, and the pass history. It never exposes any
// mutation of group state; the only way in is a notification, which is a
// hint.
type Server struct {
	broker  *events.Broker
	journal *journal.Journal
	version string
	mux     *http.ServeMux
	server  *http.Server
}

// NewServer creates the HTTP server. journal may be nil, which disables
// the pass history endpoint.
func NewServer(broker *events.Broker, jrnl *journal.Journal, version string) *Server {
	mux := http.NewServeMux()
	s := &Server{
		broker:  broker,
		journal: jrnl,
		version: version,
		mux:     mux,
	}

	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/ready", s.readyHandler)
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/v1/events", s.eventsHandler)
	mux.HandleFunc("/v1/passes", s.passesHandler)

	return s
}

// Start starts the HTTP server and blocks until it shuts down
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	apiLog := log.WithComponent("api")
	apiLog.Info().Str("addr", addr).Msg("starting HTTP server")
	return s.server.ListenAndServe()
}

// Stop shuts the server down gracefully
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for embedding in other servers
func (s *Server) Handler() http.Handler {
	return s.mux
}

// HealthResponse is the /health response body
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
}

// ReadyResponse is the /ready response body
type ReadyResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// healthHandler is the liveness probe: 200 whenever the process is up
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   s.version,
	})
}

// readyHandler is the readiness probe: checks the journal and the event
// broker are usable
func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	checks := make(map[string]string)
	ready := true

	if s.broker != nil {
		checks["events"] = "ok"
	} else {
		checks["events"] = "not initialized"
		ready = false
	}

	if s.journal == nil {
		checks["journal"] = "disabled"
	} else if _, err := s.journal.Recent(1); err != nil {
		checks["journal"] = fmt.Sprintf("error: %v", err)
		ready = false
	} else {
		checks["journal"] = "ok"
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not ready", http.StatusServiceUnavailable
	}

	writeJSON(w, code, ReadyResponse{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Checks:    checks,
	})
}

// eventsHandler is the notification webhook. The raw payload is handed to
// the broker untouched; the trigger layer owns parsing, so a bad payload
// is accepted here and discarded there.
func (s *Server) eventsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxNotificationBytes))
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}
	if len(payload) == 0 {
		http.Error(w, "Empty payload", http.StatusBadRequest)
		return
	}

	event := &events.Event{
		ID:        uuid.New().String(),
		Type:      events.EventNotification,
		Timestamp: time.Now().UTC(),
		Message:   string(payload),
	}
	s.broker.Publish(event)

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":   "accepted",
		"event_id": event.ID,
	})
}

// passesHandler serves recent pass records from the journal
func (s *Server) passesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.journal == nil {
		http.Error(w, "Journal disabled", http.StatusNotFound)
		return
	}

	limit := defaultPassLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	records, err := s.journal.Recent(limit)
	if err != nil {
		apiLog := log.WithComponent("api")
		apiLog.Error().Err(err).Msg("failed to read journal")
		http.Error(w, "Failed to read journal", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, records)
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
