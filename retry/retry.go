// Package retry wraps fallible operations with bounded exponential backoff.
// Only failures classified as transient-network are retried; rejections and
// validation failures return immediately so the caller sees them untouched.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/peregrine-app/authcore/identity"
)

const (
	DefaultMaxAttempts  = 3
	DefaultInitialDelay = 1000 * time.Millisecond
	DefaultMaxDelay     = 5000 * time.Millisecond
	DefaultFactor       = 2.0
)

// ExhaustedError is returned when every attempt failed with a transient
// error. It is deliberately distinct from the last underlying error so
// callers can tell "the network is down" from the failure of any one try.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("network error after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// Policy retries an operation with exponential backoff. Sleeps suspend only
// the calling goroutine and abort when the context is cancelled.
type Policy struct {
	maxAttempts  int
	initialDelay time.Duration
	maxDelay     time.Duration
	factor       float64
	retryable    func(error) bool
	sleep        func(ctx context.Context, d time.Duration) error
}

// Option configures a Policy.
type Option func(*Policy)

// WithMaxAttempts sets the attempt bound.
func WithMaxAttempts(n int) Option {
	return func(p *Policy) {
		p.maxAttempts = n
	}
}

// WithInitialDelay sets the first backoff delay.
func WithInitialDelay(d time.Duration) Option {
	return func(p *Policy) {
		p.initialDelay = d
	}
}

// WithMaxDelay caps the backoff delay.
func WithMaxDelay(d time.Duration) Option {
	return func(p *Policy) {
		p.maxDelay = d
	}
}

// WithFactor sets the backoff multiplier.
func WithFactor(f float64) Option {
	return func(p *Policy) {
		p.factor = f
	}
}

// WithRetryable overrides the error classifier deciding whether an attempt
// is retried.
func WithRetryable(fn func(error) bool) Option {
	return func(p *Policy) {
		p.retryable = fn
	}
}

// WithSleeper overrides the sleep function (primarily for testing).
func WithSleeper(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Policy) {
		p.sleep = fn
	}
}

// New creates a Policy with the default bounds (3 attempts, 1s initial delay
// doubling up to 5s) retrying transient-network failures.
func New(options ...Option) *Policy {
	p := &Policy{
		maxAttempts:  DefaultMaxAttempts,
		initialDelay: DefaultInitialDelay,
		maxDelay:     DefaultMaxDelay,
		factor:       DefaultFactor,
		retryable:    identity.IsTransient,
		sleep:        sleepCtx,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// Do runs op until it succeeds, fails non-transiently, or attempts run out.
func (p *Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	delay := p.initialDelay
	var lastErr error

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !p.retryable(err) {
			return err
		}
		lastErr = err

		if attempt == p.maxAttempts {
			break
		}
		if delay > p.maxDelay {
			delay = p.maxDelay
		}
		if err := p.sleep(ctx, delay); err != nil {
			return err
		}
		delay = time.Duration(float64(delay) * p.factor)
	}
	return &ExhaustedError{Attempts: p.maxAttempts, Last: lastErr}
}

// Value runs op under p and returns its result. It exists because methods
// cannot be generic; the zero T is returned on failure.
func Value[T any](ctx context.Context, p *Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := p.Do(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
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
