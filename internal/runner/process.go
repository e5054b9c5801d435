// Package runner drives the external PINC binary, one blocking process per trial.
package runner

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pinc-sim/mgtune/internal/tuner"
	"github.com/pinc-sim/mgtune/pkg/config"
	"github.com/pinc-sim/mgtune/pkg/logger"
)

const outputTailBytes = 4096

// ProcessRunner launches PINC with the trial's multigrid settings passed as
// "section:key=value" overrides on top of the ini file.
type ProcessRunner struct {
	command     []string
	iniPath     string
	workDir     string
	routine     string
	mgCycles    int
	roundCoarse bool
	timeout     time.Duration
	keys        config.RunnerKeys
	cleanGlobs  []string
	resultsPath string
}

// NewProcessRunner builds a runner from config. resultsPath, when set, must
// exist after every successful run.
func NewProcessRunner(cfg config.Runner, resultsPath string) (*ProcessRunner, error) {
	if len(cfg.Command) == 0 {
		return nil, fmt.Errorf("runner command is required")
	}
	timeout, err := cfg.GetTimeout()
	if err != nil {
		return nil, fmt.Errorf("invalid runner timeout: %w", err)
	}
	return &ProcessRunner{
		command:     append([]string(nil), cfg.Command...),
		iniPath:     cfg.IniPath,
		workDir:     cfg.WorkDir,
		routine:     cfg.Routine,
		mgCycles:    cfg.MGCycles,
		roundCoarse: cfg.RoundCoarse,
		timeout:     timeout,
		keys:        cfg.Keys,
		cleanGlobs:  append([]string(nil), cfg.CleanGlobs...),
		resultsPath: resultsPath,
	}, nil
}

// Args returns the argv (without the executable) for one trial
func (r *ProcessRunner) Args(runIndex int, s tuner.Settings) []string {
	args := append([]string(nil), r.command[1:]...)
	if r.iniPath != "" {
		args = append(args, r.iniPath)
	}
	overrides := []struct {
		key   string
		value string
	}{
		{r.keys.Routine, r.routine},
		{r.keys.MGCycles, strconv.Itoa(r.mgCycles)},
		{r.keys.StartTime, strconv.Itoa(runIndex)},
		{r.keys.Levels, strconv.Itoa(s.Levels)},
		{r.keys.PreSmooth, strconv.Itoa(s.PreSmooth)},
		{r.keys.PostSmooth, strconv.Itoa(s.PostSmooth)},
		{r.keys.CoarseSolve, r.FormatCoarse(s.CoarseSolve)},
	}
	for _, o := range overrides {
		if o.key == "" || o.value == "" {
			continue
		}
		args = append(args, o.key+"="+o.value)
	}
	return args
}

// FormatCoarse renders the coarse solve step count. Fractional counts are
// passed through unless rounding is enabled, in which case they round half
// up with a floor of one step.
func (r *ProcessRunner) FormatCoarse(steps float64) string {
	if !r.roundCoarse {
		return strconv.FormatFloat(steps, 'g', -1, 64)
	}
	n := int(math.Floor(steps + 0.5))
	if n < 1 {
		n = 1
	}
	return strconv.Itoa(n)
}

// Run executes one trial and blocks until the process exits
func (r *ProcessRunner) Run(ctx context.Context, runIndex int, s tuner.Settings) error {
	runCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	args := r.Args(runIndex, s)
	cmd := exec.CommandContext(runCtx, r.command[0], args...)
	cmd.Dir = r.workDir
	cmd.WaitDelay = time.Second
	out := newTailBuffer(outputTailBytes)
	cmd.Stdout = out
	cmd.Stderr = out

	logger.Debug("starting PINC", "run_index", runIndex, "argv", strings.Join(append([]string{r.command[0]}, args...), " "))
	started := time.Now()
	err := cmd.Run()
	elapsed := time.Since(started)

	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s", r.timeout)
		}
		return &tuner.RunnerFailure{
			RunIndex: runIndex,
			Settings: s,
			Err:      withOutput(err, out.String()),
		}
	}

	if r.resultsPath != "" {
		if _, statErr := os.Stat(r.resultsPath); statErr != nil {
			return &tuner.RunnerFailure{
				RunIndex: runIndex,
				Settings: s,
				Err:      fmt.Errorf("results file not written: %w", statErr),
			}
		}
	}

	logger.Debug("PINC finished", "run_index", runIndex, "wall", elapsed)
	return nil
}

// Clean removes output left by earlier sessions so run indices start at zero
func (r *ProcessRunner) Clean() error {
	var removed int
	for _, pattern := range r.cleanGlobs {
		matches, err := filepath.Glob(filepath.Join(r.workDir, pattern))
		if err != nil {
			return fmt.Errorf("invalid clean pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			if err := os.Remove(m); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("failed to remove %s: %w", m, err)
			}
			removed++
		}
	}
	logger.Info("cleaned previous output", "work_dir", r.workDir, "removed", removed)
	return nil
}

func withOutput(err error, output string) error {
	output = strings.TrimSpace(output)
	if output == "" {
		return err
	}
	return fmt.Errorf("%w\n--- output tail ---\n%s", err, output)
}

// tailBuffer keeps only the last limit bytes written to it
type tailBuffer struct {
	limit int
	buf   []byte
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	return string(t.buf)
}
