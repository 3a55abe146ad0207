// Package retry waits for backing services (PostgreSQL, Redis) that may
// still be booting when the server starts.
package retry

import (
	"context"
	"errors"
	"time"

	goretry "github.com/sethvargo/go-retry"
)

// Policy controls how many times and how far apart attempts are made.
type Policy struct {
	Attempts      int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	JitterPercent uint64 // 0 disables jitter
}

// OnRetry is called after a failed attempt, before sleeping.
type OnRetry func(attempt int, err error, delay time.Duration)

// Retrier runs an operation until it succeeds, the attempts run out or the
// context ends.
type Retrier struct {
	policy  Policy
	onRetry OnRetry
}

// StartupRetrier doubles the delay from 500ms up to 8s. Every error except
// context cancellation is retried. attempts <= 0 means 5.
func StartupRetrier(attempts int, onRetry OnRetry) *Retrier {
	if attempts <= 0 {
		attempts = 5
	}
	return &Retrier{
		policy: Policy{
			Attempts:      attempts,
			BaseDelay:     500 * time.Millisecond,
			MaxDelay:      8 * time.Second,
			JitterPercent: 20,
		},
		onRetry: onRetry,
	}
}

// Do returns nil on the first successful attempt, otherwise the last error.
// A context that ends while waiting returns its error.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var (
		attempt int
		lastErr error
	)

	b := r.backoff()
	notify := goretry.BackoffFunc(func() (time.Duration, bool) {
		d, stop := b.Next()
		if !stop && r.onRetry != nil {
			r.onRetry(attempt, lastErr, d)
		}
		return d, stop
	})

	return goretry.Do(ctx, notify, func(ctx context.Context) error {
		attempt++
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return goretry.RetryableError(err)
	})
}

// backoff is exponential from BaseDelay, capped at MaxDelay, and stops after
// Attempts-1 retries.
func (r *Retrier) backoff() goretry.Backoff {
	b := goretry.NewExponential(r.policy.BaseDelay)
	b = goretry.WithCappedDuration(r.policy.MaxDelay, b)
	if r.policy.JitterPercent > 0 {
		b = goretry.WithJitterPercent(r.policy.JitterPercent, b)
	}
	return goretry.WithMaxRetries(uint64(max(r.policy.Attempts-1, 0)), b)
}
