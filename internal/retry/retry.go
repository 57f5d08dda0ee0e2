// Package retry wraps fallible operations with exponential backoff.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Default policy values.
const (
	DefaultMaxRetries   = 3
	DefaultInitialDelay = 1 * time.Second
	DefaultMaxDelay     = 60 * time.Second
)

// Policy configures the backoff loop. The zero value is not usable;
// construct with NewPolicy or fill every field.
type Policy struct {
	MaxRetries   int           // retries after the first attempt
	InitialDelay time.Duration // delay before the first retry
	MaxDelay     time.Duration // backoff cap

	// Sleep waits between attempts; nil means a context-aware time.After.
	// Tests inject a recorder here to verify the backoff sequence without
	// real waiting.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewPolicy creates a Policy with the given limits.
func NewPolicy(maxRetries int, initialDelay, maxDelay time.Duration) Policy {
	return Policy{
		MaxRetries:   maxRetries,
		InitialDelay: initialDelay,
		MaxDelay:     maxDelay,
	}
}

// DefaultPolicy returns the standard pipeline policy.
func DefaultPolicy() Policy {
	return NewPolicy(DefaultMaxRetries, DefaultInitialDelay, DefaultMaxDelay)
}

// Do invokes op, retrying on failures that retryable classifies as
// transient. The delay starts at InitialDelay, doubles after each retryable
// failure, and is capped at MaxDelay. Non-retryable errors propagate
// immediately. Exhausting MaxRetries surfaces the last error as fatal.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error, retryable func(error) bool) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	delay := p.InitialDelay
	var lastErr error

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, delay); err != nil {
				return err
			}
			delay *= 2
			if delay > p.MaxDelay {
				delay = p.MaxDelay
			}
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
