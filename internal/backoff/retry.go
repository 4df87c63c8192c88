package backoff

import (
	"context"
	"time"
)

// Policy controls retry behavior for start-up connections
type Policy struct {
	MaxRetries  int           // max retry attempts
	BaseBackoff time.Duration // initial backoff duration
	MaxBackoff  time.Duration // upper bound on backoff
	JitterFn    func(time.Duration) time.Duration
}

// DefaultPolicy retries a handful of times with 50% jitter.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:  4,
		BaseBackoff: 200 * time.Millisecond,
		MaxBackoff:  3 * time.Second,
		JitterFn:    func(d time.Duration) time.Duration { return d / 2 },
	}
}

// Retry executes fn with retries, backoff, and cancellation support.
//
// fn must return nil on success.
// Any non-nil error is treated as retryable.
func Retry(
	ctx context.Context,
	policy Policy,
	fn func() error,
) error {
	var attempt int
	var backoff = policy.BaseBackoff

	for {
		err := fn()
		if err == nil {
			return nil
		}

		attempt++
		if attempt > policy.MaxRetries {
			return err
		}

		delay := backoff
		if policy.JitterFn != nil {
			delay += policy.JitterFn(backoff)
		}
		if delay > policy.MaxBackoff {
			delay = policy.MaxBackoff
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
			backoff *= 2
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}
