package nlu

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy bounds retries for rate-limited calls. Only ErrRateLimited is
// retried; every other failure surfaces immediately. The wait grows by
// BaseWait on each attempt (5s, 10s, 15s with the defaults).
type RetryPolicy struct {
	MaxAttempts int
	BaseWait    time.Duration
}

// DefaultRetryPolicy matches the service's historical backoff behavior.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseWait: 5 * time.Second}
}

// Do runs fn under the policy. It returns the last error once attempts are
// exhausted, so callers still observe ErrRateLimited and can fall back.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			wait := time.Duration(attempt) * p.BaseWait
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		err = fn(ctx)
		if err == nil || !errors.Is(err, ErrRateLimited) {
			return err
		}
	}
	return err
}
