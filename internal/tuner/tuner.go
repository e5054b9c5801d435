package tuner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pinc-sim/mgtune/pkg/logger"
)

// Runner launches one PINC trial and blocks until it has written its results.
type Runner interface {
	Run(ctx context.Context, runIndex int, settings Settings) error
}

// ResultsReader reads back the measurement a trial wrote for runIndex.
type ResultsReader interface {
	Read(ctx context.Context, runIndex int) (Measurement, error)
}

// Observer is notified after every completed trial
type Observer interface {
	ObserveTrial(event TrialEvent)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(event TrialEvent)

func (f ObserverFunc) ObserveTrial(event TrialEvent) { f(event) }

// TrialEvent describes one finished trial
type TrialEvent struct {
	RunIndex     int           `json:"run_index"`
	Outer        int           `json:"outer"` // outer iteration, 0-based
	Settings     Settings      `json:"settings"`
	Measurement  Measurement   `json:"measurement"`
	Direction    Direction     `json:"direction"`      // state the trial was evaluated in
	Next         Direction     `json:"next_direction"` // state after the trial
	ImprovedBest bool          `json:"improved_best"`
	Stopped      bool          `json:"stopped"` // the trial ended its inner loop
	Elapsed      time.Duration `json:"elapsed"`
}

// StopReason explains why an inner loop ended
type StopReason string

const (
	StopNoImprovement StopReason = "no improvement while contracting"
	StopMaxTries      StopReason = "max tries reached"
)

// OuterSummary records the inner loop of one level count
type OuterSummary struct {
	Levels int        `json:"levels"`
	Trials int        `json:"trials"`
	Reason StopReason `json:"reason"`
}

// Tuner runs the coordinate-wise hill-climb over coarse solve steps and levels.
// It is sequential: each trial blocks on the runner before the next starts.
type Tuner struct {
	runner          Runner
	reader          ResultsReader
	maxTries        int
	outerIterations int
	observers       []Observer

	mu   sync.RWMutex
	best Best
	runs int
}

// NewTuner creates a tuner. Non-positive bounds fall back to 100 tries and 2
// outer iterations.
func NewTuner(runner Runner, reader ResultsReader, maxTries, outerIterations int) *Tuner {
	if maxTries <= 0 {
		maxTries = 100
	}
	if outerIterations <= 0 {
		outerIterations = 2
	}
	return &Tuner{
		runner:          runner,
		reader:          reader,
		maxTries:        maxTries,
		outerIterations: outerIterations,
	}
}

// WithObserver registers an observer for trial events
func (t *Tuner) WithObserver(obs Observer) *Tuner {
	if obs != nil {
		t.observers = append(t.observers, obs)
	}
	return t
}

// Best returns the best configuration found so far
func (t *Tuner) Best() Best {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.best
}

// Runs returns the number of trials executed so far
func (t *Tuner) Runs() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.runs
}

// Search runs the full search from initial. On failure or cancellation it
// returns the partial report alongside the error, so the best configuration
// found before the abort is still available.
func (t *Tuner) Search(ctx context.Context, initial Settings) (*Report, error) {
	if t.runner == nil || t.reader == nil {
		return nil, fmt.Errorf("runner and results reader are required")
	}
	if err := initial.Validate(); err != nil {
		return nil, fmt.Errorf("invalid initial settings: %w", err)
	}

	t.mu.Lock()
	t.best = Best{}
	t.runs = 0
	t.mu.Unlock()

	report := &Report{Initial: initial}
	current := initial
	runIndex := 0

	for outer := 0; outer < t.outerIterations; outer++ {
		ls := newLineSearch()
		summary := OuterSummary{Levels: current.Levels, Reason: StopMaxTries}
		logger.Info("line search started", "outer", outer, "levels", current.Levels, "coarse", current.CoarseSolve)

		for try := 0; try < t.maxTries; try++ {
			if err := ctx.Err(); err != nil {
				return t.finish(report), fmt.Errorf("search cancelled before run %d: %w", runIndex, err)
			}

			started := time.Now()
			if err := t.runner.Run(ctx, runIndex, current); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return t.finish(report), fmt.Errorf("search cancelled during run %d: %w", runIndex, ctxErr)
				}
				return t.finish(report), asRunnerFailure(runIndex, current, err)
			}
			m, err := t.reader.Read(ctx, runIndex)
			if err != nil {
				return t.finish(report), asResultsUnavailable(runIndex, err)
			}

			t.mu.Lock()
			improvedBest := t.best.offer(runIndex, current, m)
			t.runs++
			t.mu.Unlock()

			before := ls.direction
			factor, done := ls.advance(m.Time)

			event := TrialEvent{
				RunIndex:     runIndex,
				Outer:        outer,
				Settings:     current,
				Measurement:  m,
				Direction:    before,
				Next:         ls.direction,
				ImprovedBest: improvedBest,
				Stopped:      done,
				Elapsed:      time.Since(started),
			}
			report.Trials = append(report.Trials, event)
			summary.Trials++
			t.notify(event)

			logger.Debug("trial finished",
				"run_index", runIndex,
				"levels", current.Levels,
				"coarse", current.CoarseSolve,
				"time_ns", m.Time,
				"cycles", m.Cycles,
				"direction", before,
				"improved_best", improvedBest)

			runIndex++
			if done {
				summary.Reason = StopNoImprovement
				break
			}
			current = current.WithCoarseSolve(current.CoarseSolve * factor)
		}

		report.Outer = append(report.Outer, summary)
		logger.Info("line search finished", "levels", summary.Levels, "trials", summary.Trials, "reason", summary.Reason)
		current = current.WithLevels(current.Levels + 1)
	}

	return t.finish(report), nil
}

func (t *Tuner) finish(report *Report) *Report {
	report.Best = t.Best()
	return report
}

func (t *Tuner) notify(event TrialEvent) {
	for _, obs := range t.observers {
		obs.ObserveTrial(event)
	}
}
