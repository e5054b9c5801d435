package utils

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// BackoffStrategy computes the wait before a retry
type BackoffStrategy interface {
	// NextDelay returns the delay for the given attempt number (0-indexed)
	NextDelay(attempt int) time.Duration
}

// ConstantBackoff waits the same delay before every attempt
type ConstantBackoff struct {
	Delay time.Duration
}

// NextDelay returns the constant delay
func (cb *ConstantBackoff) NextDelay(int) time.Duration {
	return cb.Delay
}

// LinearBackoff grows the delay by BaseDelay per attempt, capped at MaxDelay
type LinearBackoff struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// NextDelay returns the linearly increasing delay
func (lb *LinearBackoff) NextDelay(attempt int) time.Duration {
	delay := lb.BaseDelay * time.Duration(attempt+1)
	if delay > lb.MaxDelay {
		return lb.MaxDelay
	}
	return delay
}

// ExponentialBackoff multiplies the delay per attempt, capped at MaxDelay.
// With Jitter the delay is scaled by a random factor in [0.5, 1.5).
type ExponentialBackoff struct {
	BaseDelay  time.Duration
	Multiplier float64
	MaxDelay   time.Duration
	Jitter     bool
}

// NextDelay returns the exponentially increasing delay
func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	mult := eb.Multiplier
	if mult <= 0 {
		mult = 2.0
	}
	delay := float64(eb.BaseDelay) * math.Pow(mult, float64(attempt))
	if delay > float64(eb.MaxDelay) {
		delay = float64(eb.MaxDelay)
	}
	if eb.Jitter {
		delay *= 0.5 + rand.Float64()
	}
	return time.Duration(delay)
}

// BackoffFromConfig creates a backoff strategy from config parameters.
// A zero maxMs caps delays at 30s. jitter only affects exponential backoff.
func BackoffFromConfig(backoffType string, baseMs, maxMs int, jitter bool) BackoffStrategy {
	baseDelay := time.Duration(baseMs) * time.Millisecond
	maxDelay := time.Duration(maxMs) * time.Millisecond
	if maxDelay == 0 {
		maxDelay = 30 * time.Second
	}

	switch backoffType {
	case "constant":
		return &ConstantBackoff{Delay: baseDelay}
	case "linear":
		return &LinearBackoff{BaseDelay: baseDelay, MaxDelay: maxDelay}
	default:
		return &ExponentialBackoff{BaseDelay: baseDelay, Multiplier: 2.0, MaxDelay: maxDelay, Jitter: jitter}
	}
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
