// Package retrier runs an operation with capped exponential backoff and
// jitter, retrying only errors the caller classifies as transient.
package retrier

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultInitialInterval = time.Second
	defaultMaxInterval     = 30 * time.Second
	defaultMultiplier      = 2.0
	defaultMaxAttempts     = 3
	defaultJitter          = 0.1
)

// Retrier holds a backoff policy. It is safe for concurrent use; every Do
// builds its own backoff state.
type Retrier struct {
	initialInterval time.Duration
	maxInterval     time.Duration
	maxAttempts     int
	jitter          float64
	retryIf         func(error) bool
	onRetry         func(attempt int, err error, wait time.Duration)
}

// Option configures a Retrier.
type Option func(*Retrier)

// WithInitialInterval sets the wait before the second attempt.
func WithInitialInterval(d time.Duration) Option {
	return func(r *Retrier) { r.initialInterval = d }
}

// WithMaxInterval caps the wait between attempts.
func WithMaxInterval(d time.Duration) Option {
	return func(r *Retrier) { r.maxInterval = d }
}

// WithMaxAttempts sets the total number of attempts, the first included.
// Values below 1 mean a single attempt.
func WithMaxAttempts(n int) Option {
	return func(r *Retrier) { r.maxAttempts = n }
}

// WithJitter sets the randomization factor in [0, 1].
func WithJitter(j float64) Option {
	return func(r *Retrier) { r.jitter = j }
}

// WithRetryIf restricts retries to errors for which fn returns true. Other
// errors are returned immediately.
func WithRetryIf(fn func(error) bool) Option {
	return func(r *Retrier) { r.retryIf = fn }
}

// WithOnRetry registers a callback invoked before each wait.
func WithOnRetry(fn func(attempt int, err error, wait time.Duration)) Option {
	return func(r *Retrier) { r.onRetry = fn }
}

// New creates a Retrier with defaults overridden by opts.
func New(opts ...Option) *Retrier {
	r := &Retrier{
		initialInterval: defaultInitialInterval,
		maxInterval:     defaultMaxInterval,
		maxAttempts:     defaultMaxAttempts,
		jitter:          defaultJitter,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.maxAttempts < 1 {
		r.maxAttempts = 1
	}
	return r
}

func (r *Retrier) policy(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = r.initialInterval
	eb.MaxInterval = r.maxInterval
	eb.Multiplier = defaultMultiplier
	eb.RandomizationFactor = r.jitter
	// Attempts bound the loop, not elapsed time.
	eb.MaxElapsedTime = 0

	var b backoff.BackOff = &backoff.StopBackOff{}
	if r.maxAttempts > 1 {
		b = backoff.WithMaxRetries(eb, uint64(r.maxAttempts-1))
	}
	return backoff.WithContext(b, ctx)
}

// Do calls fn until it succeeds, returns a non-retryable error, the attempts
// run out or ctx ends. fn receives the 1-based attempt number.
func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	attempt := 0
	op := func() error {
		attempt++
		err := fn(ctx, attempt)
		if err != nil && r.retryIf != nil && !r.retryIf(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	var notify backoff.Notify
	if r.onRetry != nil {
		notify = func(err error, wait time.Duration) {
			r.onRetry(attempt, err, wait)
		}
	}
	return backoff.RetryNotify(op, r.policy(ctx), notify)
}
