package monitor

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pinc-sim/mgtune/pkg/logger"
)

// HTTPServer serves read-only status of the current tuning session
type HTTPServer struct {
	router  chi.Router
	store   *SessionStore
	metrics *Metrics
}

// NewHTTPServer wires the routes. metrics may be nil, which disables /metrics.
func NewHTTPServer(store *SessionStore, metrics *Metrics) *HTTPServer {
	s := &HTTPServer{
		router:  chi.NewRouter(),
		store:   store,
		metrics: metrics,
	}

	s.router.Use(middleware.Recoverer)
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Route("/v1", func(r chi.Router) {
		r.Get("/session", s.handleSession)
		r.Get("/trials", s.handleTrials)
		r.Get("/best", s.handleBest)
	})
	if metrics != nil {
		s.router.Handle("/metrics", metrics.Handler())
	}
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, http.StatusNotFound, "not found")
	})

	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"session":   s.store.ID(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *HTTPServer) handleSession(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.store.Snapshot())
}

// handleTrials handles /v1/trials?offset=N&limit=M
func (s *HTTPServer) handleTrials(w http.ResponseWriter, r *http.Request) {
	offset, err := queryInt(r, "offset")
	if err != nil || offset < 0 {
		s.writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil || limit < 0 {
		s.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}

	trials := s.store.Trials(offset, limit)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"session": s.store.ID(),
		"offset":  offset,
		"count":   len(trials),
		"trials":  trials,
	})
}

func (s *HTTPServer) handleBest(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Snapshot()
	if snap.Best == nil {
		s.writeError(w, http.StatusNotFound, "no trial has been measured yet")
		return
	}
	s.writeJSON(w, http.StatusOK, snap.Best)
}

func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

// writeJSON encodes body before touching w so an encoding failure can still
// be reported as a 500.
func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, body any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		logger.Error("failed to encode response", "error", err)
		buf.Reset()
		buf.WriteString(`{"error":"failed to encode response"}` + "\n")
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		logger.Warn("failed to write response", "error", err)
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
