package provision

import (
	"context"
	"time"
)

// RetryPolicy bounds how often a busy device is retried. MaxAttempts counts
// the first attempt, so MaxAttempts=3 means at most two retries, each
// preceded by Delay.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultRetryPolicy matches the device vendor's guidance for the busy
// state: three attempts five seconds apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Delay: 5 * time.Second}
}

// wait sleeps for the retry delay, returning early with the context error
// if the batch is cancelled mid-wait.
func (p RetryPolicy) wait(ctx context.Context) error {
	timer := time.NewTimer(p.Delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
