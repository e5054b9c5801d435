// Package journal persists tuning sessions and their trials in SQLite so
// finished sweeps can be compared later.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pinc-sim/mgtune/internal/tuner"
	"github.com/pinc-sim/mgtune/pkg/logger"
)

//go:embed schema.sql
var schemaSQL string

// ErrSessionNotFound is returned when a session id is unknown
var ErrSessionNotFound = errors.New("journal: session not found")

// Session is one recorded search
type Session struct {
	ID        string
	StartedAt time.Time
	EndedAt   time.Time
	Status    string
	Error     string
	Initial   tuner.Settings
}

// Journal is a SQLite-backed trial log
type Journal struct {
	db *sql.DB
}

// Open opens (creating if needed) the journal at path. ":memory:" is accepted.
func Open(path string) (*Journal, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create journal directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	// one writer; also keeps a ":memory:" database on a single connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply journal schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the database
func (j *Journal) Close() error {
	return j.db.Close()
}

// StartSession records a new running session
func (j *Journal) StartSession(ctx context.Context, id string, initial tuner.Settings) error {
	initialJSON, err := json.Marshal(initial)
	if err != nil {
		return fmt.Errorf("failed to encode initial settings: %w", err)
	}
	_, err = j.db.ExecContext(ctx,
		`INSERT INTO sessions (id, started_at, status, initial_json) VALUES (?, ?, ?, ?)`,
		id, time.Now().UTC().UnixMilli(), "running", string(initialJSON))
	if err != nil {
		return fmt.Errorf("failed to insert session %s: %w", id, err)
	}
	return nil
}

// FinishSession marks a session completed, or failed when searchErr is set
func (j *Journal) FinishSession(ctx context.Context, id string, searchErr error) error {
	status, msg := "completed", ""
	if searchErr != nil {
		status, msg = "failed", searchErr.Error()
	}
	res, err := j.db.ExecContext(ctx,
		`UPDATE sessions SET ended_at = ?, status = ?, error = ? WHERE id = ?`,
		time.Now().UTC().UnixMilli(), status, msg, id)
	if err != nil {
		return fmt.Errorf("failed to finish session %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

// Record stores one trial. A NaN or infinite time is stored as NULL.
func (j *Journal) Record(ctx context.Context, sessionID string, e tuner.TrialEvent) error {
	var timeNs sql.NullFloat64
	if t := e.Measurement.Time; !math.IsNaN(t) && !math.IsInf(t, 0) {
		timeNs = sql.NullFloat64{Float64: t, Valid: true}
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO trials (session_id, run_index, outer_iter, levels, pre_smooth, post_smooth, coarse_solve,
			time_ns, cycles, direction, next_direction, improved_best, stopped, elapsed_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, e.RunIndex, e.Outer, e.Settings.Levels, e.Settings.PreSmooth, e.Settings.PostSmooth,
		e.Settings.CoarseSolve, timeNs, e.Measurement.Cycles, string(e.Direction), string(e.Next),
		e.ImprovedBest, e.Stopped, e.Elapsed.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to record run %d: %w", e.RunIndex, err)
	}
	return nil
}

// Observer returns a tuner.Observer writing into sessionID. Write failures
// are logged and do not stop the search.
func (j *Journal) Observer(sessionID string) tuner.Observer {
	return tuner.ObserverFunc(func(e tuner.TrialEvent) {
		if err := j.Record(context.Background(), sessionID, e); err != nil {
			logger.Warn("journal write failed", "session", sessionID, "run_index", e.RunIndex, "error", err)
		}
	})
}

const sessionColumns = `id, started_at, ended_at, status, error, initial_json`

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	var (
		s          Session
		started    int64
		ended      sql.NullInt64
		errMsg     sql.NullString
		initialRaw string
	)
	if err := row.Scan(&s.ID, &started, &ended, &s.Status, &errMsg, &initialRaw); err != nil {
		return nil, err
	}
	s.StartedAt = time.UnixMilli(started).UTC()
	if ended.Valid {
		s.EndedAt = time.UnixMilli(ended.Int64).UTC()
	}
	s.Error = errMsg.String
	if err := json.Unmarshal([]byte(initialRaw), &s.Initial); err != nil {
		return nil, fmt.Errorf("failed to decode initial settings: %w", err)
	}
	return &s, nil
}

// Session loads one session
func (j *Journal) Session(ctx context.Context, id string) (*Session, error) {
	s, err := scanSession(j.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	return s, nil
}

// Sessions lists every recorded session, oldest first
func (j *Journal) Sessions(ctx context.Context) ([]Session, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions ORDER BY started_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// Trials lists a session's trials in run order
func (j *Journal) Trials(ctx context.Context, sessionID string) ([]tuner.TrialEvent, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT run_index, outer_iter, levels, pre_smooth, post_smooth, coarse_solve, time_ns, cycles,
			direction, next_direction, improved_best, stopped, elapsed_ms
		 FROM trials WHERE session_id = ? ORDER BY run_index`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trials: %w", err)
	}
	defer rows.Close()

	var out []tuner.TrialEvent
	for rows.Next() {
		var (
			e         tuner.TrialEvent
			timeNs    sql.NullFloat64
			dir, next string
			elapsedMs int64
		)
		if err := rows.Scan(&e.RunIndex, &e.Outer, &e.Settings.Levels, &e.Settings.PreSmooth, &e.Settings.PostSmooth,
			&e.Settings.CoarseSolve, &timeNs, &e.Measurement.Cycles, &dir, &next,
			&e.ImprovedBest, &e.Stopped, &elapsedMs); err != nil {
			return nil, fmt.Errorf("failed to scan trial: %w", err)
		}
		e.Measurement.Time = math.NaN()
		if timeNs.Valid {
			e.Measurement.Time = timeNs.Float64
		}
		e.Direction = tuner.Direction(dir)
		e.Next = tuner.Direction(next)
		e.Elapsed = time.Duration(elapsedMs) * time.Millisecond
		out = append(out, e)
	}
	return out, rows.Err()
}

// Best returns the fastest trial of a session, preferring the earliest on ties.
// Trials without a usable time are skipped.
func (j *Journal) Best(ctx context.Context, sessionID string) (*tuner.TrialEvent, error) {
	trials, err := j.Trials(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	var best *tuner.TrialEvent
	for i := range trials {
		if math.IsNaN(trials[i].Measurement.Time) {
			continue
		}
		if best == nil || trials[i].Measurement.Time < best.Measurement.Time {
			best = &trials[i]
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: %s has no measured trials", ErrSessionNotFound, sessionID)
	}
	return best, nil
}
