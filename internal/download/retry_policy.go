package download

import (
	"context"
	"errors"
	"time"
)

// FixedRetryPolicy retries any failure up to a bounded number of attempts,
// waiting the same delay before each retry.
type FixedRetryPolicy struct {
	maxAttempts int
	delay       time.Duration
}

// NewFixedRetryPolicy builds a policy. Non-positive attempts fall back to one.
func NewFixedRetryPolicy(maxAttempts int, delay time.Duration) *FixedRetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	if delay < 0 {
		delay = 0
	}
	return &FixedRetryPolicy{maxAttempts: maxAttempts, delay: delay}
}

// MaxAttempts returns the attempt bound.
func (p *FixedRetryPolicy) MaxAttempts() int { return p.maxAttempts }

// ShouldRetry decides whether another attempt follows the given one (1-based).
// Cancellation of the caller's context is never retried.
func (p *FixedRetryPolicy) ShouldRetry(ctx context.Context, err error, attempt int) bool {
	if err == nil {
		return false
	}
	if attempt >= p.maxAttempts {
		return false
	}
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return false
	}
	return true
}

// Backoff returns the wait before the next attempt.
func (p *FixedRetryPolicy) Backoff(int) time.Duration {
	return p.delay
}
