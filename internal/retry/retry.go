// Package retry runs fallible operations with exponential backoff.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Multiplier is the backoff growth factor between attempts
const Multiplier = 2

// Policy configures Do
type Policy struct {
	// MaxRetries is the total number of attempts. Values below 1 mean a single attempt.
	MaxRetries int

	// InitialDelay is the sleep before the second attempt
	InitialDelay time.Duration

	// MaxDelay caps each individual sleep. MaxDelay*MaxRetries also bounds the
	// total time spent retrying; zero disables both caps.
	MaxDelay time.Duration

	// Retryable classifies errors. If nil, every error is retried.
	Retryable func(error) bool

	// OnRetry is called before each backoff sleep
	OnRetry func(attempt int, err error, delay time.Duration)
}

// ExhaustedError is returned when Do gives up. It wraps the last error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	if e.Attempts == 1 {
		return fmt.Sprintf("operation failed after 1 attempt: %v", e.Err)
	}
	return fmt.Sprintf("operation failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Do invokes op until it succeeds, returns a non-retryable error, or the policy is exhausted.
// Sleeps between attempts honour ctx cancellation.
func Do[T any](ctx context.Context, policy Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	maxAttempts := policy.MaxRetries
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var deadline time.Time
	if policy.MaxDelay > 0 {
		deadline = time.Now().Add(policy.MaxDelay * time.Duration(maxAttempts))
	}

	delay := policy.InitialDelay
	if policy.MaxDelay > 0 && delay > policy.MaxDelay {
		delay = policy.MaxDelay
	}

	for attempt := 1; ; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		if ctx.Err() != nil || attempt >= maxAttempts || !policy.retryable(err) {
			return zero, &ExhaustedError{Attempts: attempt, Err: err}
		}

		if !deadline.IsZero() && time.Now().Add(delay).After(deadline) {
			return zero, &ExhaustedError{Attempts: attempt, Err: err}
		}

		if policy.OnRetry != nil {
			policy.OnRetry(attempt, err, delay)
		}

		if err := sleep(ctx, delay); err != nil {
			return zero, &ExhaustedError{Attempts: attempt, Err: err}
		}

		delay = nextDelay(delay, policy.MaxDelay)
	}
}

func (p Policy) retryable(err error) bool {
	if p.Retryable == nil {
		return true
	}
	return p.Retryable(err)
}

// nextDelay doubles d, clamped to limit when limit is set
func nextDelay(d, limit time.Duration) time.Duration {
	next := d * Multiplier
	if limit > 0 && next > limit {
		return limit
	}
	return next
}

func sleep(ctx context.Context, d time.Duration) error {
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
