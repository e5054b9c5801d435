package tuner

import (
	"errors"
	"fmt"
)

// RunnerFailure reports that the external simulation could not complete a trial.
// It aborts the search.
type RunnerFailure struct {
	RunIndex int
	Settings Settings
	Err      error
}

func (e *RunnerFailure) Error() string {
	return fmt.Sprintf("runner failed for run %d (%s): %v", e.RunIndex, e.Settings, e.Err)
}

func (e *RunnerFailure) Unwrap() error {
	return e.Err
}

// ResultsUnavailable reports that a trial's measurement could not be read back.
// It aborts the search.
type ResultsUnavailable struct {
	RunIndex int
	Path     string
	Err      error
}

func (e *ResultsUnavailable) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("results unavailable for run %d: %v", e.RunIndex, e.Err)
	}
	return fmt.Sprintf("results unavailable for run %d in %s: %v", e.RunIndex, e.Path, e.Err)
}

func (e *ResultsUnavailable) Unwrap() error {
	return e.Err
}

// asRunnerFailure keeps an existing RunnerFailure intact and wraps anything else
func asRunnerFailure(runIndex int, s Settings, err error) error {
	var rf *RunnerFailure
	if errors.As(err, &rf) {
		return err
	}
	return &RunnerFailure{RunIndex: runIndex, Settings: s, Err: err}
}

func asResultsUnavailable(runIndex int, err error) error {
	var ru *ResultsUnavailable
	if errors.As(err, &ru) {
		return err
	}
	return &ResultsUnavailable{RunIndex: runIndex, Err: err}
}
