package binance

import (
	"context"
	"time"
)

// RetryPolicy describes how many times a call is attempted and how long to
// wait between attempts. Policies are plain values; copy and adjust freely.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	// Retryable decides whether a failed attempt is worth repeating.
	// nil means RetryTransient.
	Retryable func(status int, err error) bool
}

var (
	// BulkPolicy is used for listing calls that cover a whole silo.
	BulkPolicy = RetryPolicy{MaxAttempts: 3, Delay: time.Second, Retryable: RetryTransient}
	// TargetedPolicy is used for per-asset lookups.
	TargetedPolicy = RetryPolicy{MaxAttempts: 2, Delay: 500 * time.Millisecond, Retryable: RetryTransient}
	// SinglePolicy never retries.
	SinglePolicy = RetryPolicy{MaxAttempts: 1}
)

// RetryTransient retries network failures and any non-200 status.
func RetryTransient(status int, err error) bool {
	return err != nil
}

// Do runs call until it returns a nil error, the attempts are exhausted, the
// policy declines to retry, or ctx is done. It returns the number of calls made
// and the last error. Cancellation of ctx is never retried.
func (p RetryPolicy) Do(ctx context.Context, call func(ctx context.Context) (int, error)) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = RetryTransient
	}

	for attempt := 1; ; attempt++ {
		status, err := call(ctx)
		if err == nil {
			return attempt, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return attempt, ctxErr
		}
		if attempt >= maxAttempts || !retryable(status, err) {
			return attempt, err
		}

		if p.Delay > 0 {
			timer := time.NewTimer(p.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return attempt, ctx.Err()
			case <-timer.C:
			}
		}
	}
}
