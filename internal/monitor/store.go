// Package monitor exposes a running tuning session over HTTP, gRPC and
// Prometheus.
package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pinc-sim/mgtune/internal/tuner"
)

// SessionStatus is the lifecycle state of a tuning session
type SessionStatus string

const (
	SessionPending   SessionStatus = "pending"
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
)

// BestTrial is the fastest trial observed in the session
type BestTrial struct {
	RunIndex    int               `json:"run_index"`
	Settings    tuner.Settings    `json:"settings"`
	Measurement tuner.Measurement `json:"measurement"`
}

// SessionRecord is a point-in-time view of the session
type SessionRecord struct {
	ID        string             `json:"id"`
	Status    SessionStatus      `json:"status"`
	Error     string             `json:"error,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	StartedAt time.Time          `json:"started_at,omitzero"`
	EndedAt   time.Time          `json:"ended_at,omitzero"`
	Initial   tuner.Settings     `json:"initial"`
	TrialRuns int                `json:"trial_runs"`
	Best      *BestTrial         `json:"best,omitempty"`
	Trials    []tuner.TrialEvent `json:"-"`
}

// SessionStore holds the state of the running search for the status
// endpoints. It implements tuner.Observer.
type SessionStore struct {
	mu        sync.RWMutex
	session   SessionRecord
	metrics   *Metrics
	listeners []func(SessionStatus)
}

// NewSessionStore creates a pending session with a fresh id. metrics may be nil.
func NewSessionStore(initial tuner.Settings, metrics *Metrics) *SessionStore {
	return &SessionStore{
		session: SessionRecord{
			ID:        uuid.NewString(),
			Status:    SessionPending,
			CreatedAt: time.Now().UTC(),
			Initial:   initial,
		},
		metrics: metrics,
	}
}

// ID returns the session id
func (s *SessionStore) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.ID
}

// OnStatus registers a callback invoked after every status change
func (s *SessionStore) OnStatus(fn func(SessionStatus)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Start marks the session running
func (s *SessionStore) Start() {
	s.setStatus(SessionRunning, nil)
}

// Finish marks the session completed, or failed when err is set
func (s *SessionStore) Finish(err error) {
	if err != nil {
		if s.metrics != nil {
			var rf *tuner.RunnerFailure
			var ru *tuner.ResultsUnavailable
			switch {
			case errors.As(err, &rf):
				s.metrics.failures.WithLabelValues("runner").Inc()
			case errors.As(err, &ru):
				s.metrics.failures.WithLabelValues("results").Inc()
			case errors.Is(err, context.Canceled):
				s.metrics.failures.WithLabelValues("cancelled").Inc()
			default:
				s.metrics.failures.WithLabelValues("other").Inc()
			}
		}
		s.setStatus(SessionFailed, err)
		return
	}
	s.setStatus(SessionCompleted, nil)
}

func (s *SessionStore) setStatus(status SessionStatus, err error) {
	s.mu.Lock()
	s.session.Status = status
	now := time.Now().UTC()
	switch status {
	case SessionRunning:
		if s.session.StartedAt.IsZero() {
			s.session.StartedAt = now
		}
	case SessionCompleted, SessionFailed:
		s.session.EndedAt = now
	}
	if err != nil {
		s.session.Error = err.Error()
	}
	listeners := append([]func(SessionStatus){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(status)
	}
}

// ObserveTrial implements tuner.Observer
func (s *SessionStore) ObserveTrial(e tuner.TrialEvent) {
	s.mu.Lock()
	s.session.Trials = append(s.session.Trials, e)
	s.session.TrialRuns++
	if e.ImprovedBest {
		s.session.Best = &BestTrial{RunIndex: e.RunIndex, Settings: e.Settings, Measurement: e.Measurement}
	}
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.observe(e)
	}
}

// Snapshot returns a copy of the session without its trial list
func (s *SessionStore) Snapshot() SessionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec := s.session
	rec.Trials = nil
	if s.session.Best != nil {
		best := *s.session.Best
		rec.Best = &best
	}
	return rec
}

// Trials returns up to limit trials starting at offset, in run order.
// A non-positive limit returns everything from offset on.
func (s *SessionStore) Trials(offset, limit int) []tuner.TrialEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if offset < 0 {
		offset = 0
	}
	if offset >= len(s.session.Trials) {
		return []tuner.TrialEvent{}
	}
	end := len(s.session.Trials)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]tuner.TrialEvent, end-offset)
	copy(out, s.session.Trials[offset:end])
	return out
}
