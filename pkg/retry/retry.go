package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy bounds retries of a single unit of work with exponential backoff.
// Attempts are 1-indexed: the delay before retry i is
// InitialDelay * Multiplier^(i-1)
type Policy struct {
	MaxAttempts  int           // Total attempts, at least 1
	InitialDelay time.Duration // Delay before the first retry
	Multiplier   float64       // Backoff growth factor, at least 1
}

// None is a pass-through policy: one attempt, no retry
var None = Policy{MaxAttempts: 1}

// Validate fails fast on out-of-range policy parameters
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("retry: MaxAttempts must be at least 1, got %d", p.MaxAttempts)
	}
	if p.InitialDelay < 0 {
		return fmt.Errorf("retry: InitialDelay cannot be negative, got %v", p.InitialDelay)
	}
	if p.MaxAttempts > 1 && p.Multiplier < 1 {
		return fmt.Errorf("retry: Multiplier must be at least 1, got %v", p.Multiplier)
	}
	return nil
}

// Do runs fn up to p.MaxAttempts times. On failure it sleeps for the current
// backoff delay (blocking only the calling goroutine) and retries with the
// delay multiplied by p.Multiplier. After the last attempt the original
// error is returned unchanged so callers can still distinguish its kind.
// A MaxAttempts of 1 performs no retry
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := p.Validate(); err != nil {
		return zero, err
	}

	delay := p.InitialDelay
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == p.MaxAttempts {
			break
		}
		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
		delay = time.Duration(float64(delay) * p.Multiplier)
	}
	return zero, lastErr
}

// sleep blocks for d or until ctx is cancelled
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
