// Package retry provides a bounded fixed-delay retry policy for message
// delivery to a freshly injected page scanner, whose listener registration
// lags injection by an unspecified amount.
package retry

import (
	"context"
	"time"
)

const (
	DefaultMaxAttempts = 5
	DefaultDelay       = 100 * time.Millisecond
)

// Policy retries an operation a fixed number of times with a fixed delay
// between attempts. Retryable decides which errors are worth another
// attempt; a nil predicate retries everything.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
	Retryable   func(error) bool
}

// Default returns the policy matching the observed defaults of the original
// delivery loop: 5 attempts, 100ms apart.
func Default() Policy {
	return Policy{MaxAttempts: DefaultMaxAttempts, Delay: DefaultDelay}
}

// Do runs op until it succeeds, the attempt limit is exhausted, a
// non-retryable error occurs, or the context is cancelled. The last error
// seen is returned.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}

	var err error
	for i := 0; i < attempts; i++ {
		if err = op(ctx); err == nil {
			return nil
		}

		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}

		if i == attempts-1 {
			break
		}

		if waitErr := waitFor(ctx, p.Delay); waitErr != nil {
			return waitErr
		}
	}

	return err
}

func waitFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
