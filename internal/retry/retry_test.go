package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("transient")

func TestDoExactAttemptBound(t *testing.T) {
	p := Policy{MaxAttempts: 5, Delay: time.Millisecond}

	attempts := 0
	err := p.Do(context.Background(), func(context.Context) error {
		attempts++
		return errTransient
	})

	if !errors.Is(err, errTransient) {
		t.Fatalf("expected last error, got %v", err)
	}

	if attempts != 5 {
		t.Fatalf("expected exactly 5 attempts, got %d", attempts)
	}
}

func TestDoStopsOnSuccess(t *testing.T) {
	p := Policy{MaxAttempts: 5, Delay: time.Millisecond}

	attempts := 0
	err := p.Do(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errTransient
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestDoNonRetryableError(t *testing.T) {
	fatal := errors.New("fatal")
	p := Policy{
		MaxAttempts: 5,
		Delay:       time.Millisecond,
		Retryable:   func(err error) bool { return errors.Is(err, errTransient) },
	}

	attempts := 0
	err := p.Do(context.Background(), func(context.Context) error {
		attempts++
		return fatal
	})

	if !errors.Is(err, fatal) {
		t.Fatalf("expected fatal error, got %v", err)
	}

	if attempts != 1 {
		t.Fatalf("expected a single attempt, got %d", attempts)
	}
}

func TestDoContextCancelledDuringWait(t *testing.T) {
	p := Policy{MaxAttempts: 3, Delay: time.Minute}

	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := p.Do(ctx, func(context.Context) error {
		attempts++
		return errTransient
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	if attempts != 1 {
		t.Fatalf("expected a single attempt before cancellation, got %d", attempts)
	}
}

func TestDoZeroAttemptsUsesDefault(t *testing.T) {
	p := Policy{Delay: time.Millisecond}

	attempts := 0
	_ = p.Do(context.Background(), func(context.Context) error {
		attempts++
		return errTransient
	})

	if attempts != DefaultMaxAttempts {
		t.Fatalf("expected default attempt count %d, got %d", DefaultMaxAttempts, attempts)
	}
}
