package dispatch

import (
	"context"
	"time"
)

// RetryPolicy is a fixed-backoff policy. MaxAttempts counts the first try.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultRetryPolicy makes three attempts one second apart.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 3,
	Backoff:     time.Second,
}

// RetryResult reports how a retried call ended.
type RetryResult struct {
	Err      error
	Attempts int
	// Cancelled is set when ctx ended before the attempts were exhausted.
	Cancelled bool
}

// Retry calls fn until it succeeds or the policy is exhausted. onFailure, if
// set, is told about every failed attempt.
func Retry(ctx context.Context, p RetryPolicy, fn func(context.Context) error, onFailure func(attempt int, err error)) RetryResult {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return RetryResult{Err: err, Attempts: attempt - 1, Cancelled: true}
		}

		err := fn(ctx)
		if err == nil {
			return RetryResult{Attempts: attempt}
		}
		lastErr = err
		if onFailure != nil {
			onFailure(attempt, err)
		}

		if attempt < attempts && p.Backoff > 0 {
			timer := time.NewTimer(p.Backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return RetryResult{Err: lastErr, Attempts: attempt, Cancelled: true}
			case <-timer.C:
			}
		}
	}

	return RetryResult{Err: lastErr, Attempts: attempts}
}
