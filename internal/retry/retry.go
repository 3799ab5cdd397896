// Package retry executes operations with bounded-attempt exponential
// backoff. Retry decisions are category-based: a policy names the pgsderr
// categories it retries; errors outside the taxonomy are never retried.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/pgsd/pgsd/internal/pgsderr"
)

// Policy holds the retry tunables for one call site. Callers construct one
// policy per call site; there is no shared global state.
type Policy struct {
	// MaxAttempts is the total number of tries including the first.
	MaxAttempts int
	// BaseDelay and MaxDelay bound the exponential backoff.
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// BackoffFactor multiplies the delay after each failed attempt.
	BackoffFactor float64
	// Jitter, when enabled, multiplies the computed delay by a value drawn
	// uniformly from [JitterLow, JitterHigh].
	Jitter     bool
	JitterLow  float64
	JitterHigh float64
	// RetryOn is the primary retry predicate: the set of error categories
	// treated as retriable regardless of the error's own IsRetriable
	// answer. When empty, the error's own IsRetriable flag decides.
	RetryOn []pgsderr.Category
	// BeforeRetry, when set, is invoked with the attempt number and the
	// error before each sleep. Its failures are swallowed and never abort
	// the retry loop.
	BeforeRetry func(attempt int, err error)
}

// DefaultPolicy matches the config defaults: 3 attempts, 1s base, 30s cap,
// doubling, jittered.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:   3,
		BaseDelay:     time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
		JitterLow:     0.5,
		JitterHigh:    1.5,
	}
}

// Validate reports the first invalid tunable as a validation error.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return pgsderr.NewValidationError("max_attempts", p.MaxAttempts, "must be at least 1")
	}
	if p.BaseDelay < 0 {
		return pgsderr.NewValidationError("base_delay", p.BaseDelay.String(), "must not be negative")
	}
	if p.MaxDelay < p.BaseDelay {
		return pgsderr.NewValidationError("max_delay", p.MaxDelay.String(), "must be at least base_delay")
	}
	if p.BackoffFactor < 1 {
		return pgsderr.NewValidationError("backoff_factor", p.BackoffFactor, "must be at least 1")
	}
	if p.Jitter {
		if p.JitterLow < 0 || p.JitterHigh < p.JitterLow {
			return pgsderr.NewValidationError("jitter_range", []float64{p.JitterLow, p.JitterHigh},
				"must satisfy 0 <= low <= high")
		}
	}
	return nil
}

// Manager executes operations under one validated policy. It holds no
// mutable state and is safe for concurrent use.
type Manager struct {
	policy Policy
}

// New validates the policy and returns a manager. Invalid combinations
// fail here, not at use time.
func New(policy Policy) (*Manager, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Manager{policy: policy}, nil
}

// Policy returns the manager's policy.
func (m *Manager) Policy() Policy {
	return m.policy
}

// Delay returns the pre-jitter backoff before the given retry attempt:
// BaseDelay * BackoffFactor^(attempt-1), capped at MaxDelay. Attempt 0 (or
// below) yields zero: there is no delay before the first attempt.
func (m *Manager) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	d := time.Duration(float64(m.policy.BaseDelay) * math.Pow(m.policy.BackoffFactor, float64(attempt-1)))
	if d > m.policy.MaxDelay || d < 0 {
		return m.policy.MaxDelay
	}
	return d
}

// ShouldRetry reports whether a failed attempt should be retried: attempts
// must remain, and the error's category must be in RetryOn, or, when no
// RetryOn set was given, the error's own IsRetriable flag must be true.
// Errors outside the taxonomy are never retried.
func (m *Manager) ShouldRetry(err error, attempt int) bool {
	if attempt >= m.policy.MaxAttempts {
		return false
	}
	var pgsdErr *pgsderr.Error
	if !errors.As(err, &pgsdErr) {
		return false
	}
	if len(m.policy.RetryOn) == 0 {
		return pgsdErr.IsRetriable()
	}
	for _, cat := range m.policy.RetryOn {
		if pgsdErr.Category == cat {
			return true
		}
	}
	return false
}

// Do runs op until it succeeds, the policy gives up, or ctx is cancelled.
// The final failure is returned as-is; cancellation during the inter-attempt
// sleep surfaces as ctx.Err(), never as an empty success.
func (m *Manager) Do(ctx context.Context, op func(ctx context.Context) error) error {
	_, err := DoValue(ctx, m, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Option adjusts a single DoValue call.
type Option[T any] func(*callOptions[T])

type callOptions[T any] struct {
	retryOnResult func(T) bool
}

// WithRetryOnResult retries a successful call whose result the predicate
// rejects. Exhausting attempts on a rejected result returns the last value
// without an error; an unacceptable result is not a failure.
func WithRetryOnResult[T any](pred func(T) bool) Option[T] {
	return func(o *callOptions[T]) {
		o.retryOnResult = pred
	}
}

// DoValue runs op under the manager's policy and returns its first
// acceptable result.
func DoValue[T any](ctx context.Context, m *Manager, op func(ctx context.Context) (T, error), opts ...Option[T]) (T, error) {
	var callOpts callOptions[T]
	for _, opt := range opts {
		opt(&callOpts)
	}

	var zero T
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		value, err := op(ctx)
		if err == nil {
			if callOpts.retryOnResult == nil || !callOpts.retryOnResult(value) {
				return value, nil
			}
			if attempt >= m.policy.MaxAttempts {
				// Result-predicate exhaustion returns the last value.
				return value, nil
			}
		} else if !m.ShouldRetry(err, attempt) {
			return zero, err
		}

		delay := m.Delay(attempt)
		if m.policy.Jitter {
			delay = jitter(delay, m.policy.JitterLow, m.policy.JitterHigh)
		}
		invokeBeforeRetry(m.policy.BeforeRetry, attempt, err)
		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
}

// invokeBeforeRetry shields the loop from callback panics.
func invokeBeforeRetry(cb func(int, error), attempt int, err error) {
	if cb == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	cb(attempt, err)
}

func jitter(d time.Duration, low, high float64) time.Duration {
	if d <= 0 {
		return d
	}
	factor := low + rand.Float64()*(high-low)
	return time.Duration(float64(d) * factor)
}

// sleep waits for d or until ctx is done, whichever comes first.
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
