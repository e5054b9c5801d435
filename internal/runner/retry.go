package runner

import (
	"context"

	"github.com/pinc-sim/mgtune/internal/tuner"
	"github.com/pinc-sim/mgtune/pkg/config"
	"github.com/pinc-sim/mgtune/pkg/logger"
	"github.com/pinc-sim/mgtune/pkg/utils"
)

// RetryRunner re-invokes a failed trial up to maxRetries times with backoff.
// With zero retries it behaves exactly like the wrapped runner.
type RetryRunner struct {
	next       tuner.Runner
	maxRetries int
	backoff    utils.BackoffStrategy
}

// NewRetryRunner wraps next with a bounded retry loop
func NewRetryRunner(next tuner.Runner, maxRetries int, backoff utils.BackoffStrategy) *RetryRunner {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if backoff == nil {
		backoff = &utils.ConstantBackoff{}
	}
	return &RetryRunner{next: next, maxRetries: maxRetries, backoff: backoff}
}

// NewRetryRunnerFromConfig wraps next using the retry section; nil means no retries
func NewRetryRunnerFromConfig(next tuner.Runner, cfg *config.Retry) *RetryRunner {
	if cfg == nil {
		return NewRetryRunner(next, 0, nil)
	}
	return NewRetryRunner(next, cfg.MaxRetries, utils.BackoffFromConfig(cfg.Backoff, cfg.BaseMs, cfg.MaxMs, cfg.Jitter))
}

// Run implements tuner.Runner
func (r *RetryRunner) Run(ctx context.Context, runIndex int, s tuner.Settings) error {
	for attempt := 0; ; attempt++ {
		err := r.next.Run(ctx, runIndex, s)
		if err == nil || ctx.Err() != nil || attempt >= r.maxRetries {
			return err
		}

		delay := r.backoff.NextDelay(attempt)
		logger.Warn("trial failed, retrying",
			"run_index", runIndex,
			"attempt", attempt+1,
			"max_retries", r.maxRetries,
			"delay", delay,
			"error", err)
		if sleepErr := utils.Sleep(ctx, delay); sleepErr != nil {
			return err
		}
	}
}
