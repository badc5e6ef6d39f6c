package retrier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errTransient = errors.New("transient")

func TestRetrier_Do(t *testing.T) {
	t.Run("success on first attempt", func(t *testing.T) {
		attempts := 0
		err := New().Do(context.Background(), func(context.Context, int) error {
			attempts++
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 1, attempts)
	})

	t.Run("success after retries", func(t *testing.T) {
		r := New(WithMaxAttempts(3), WithInitialInterval(time.Millisecond))
		var seen []int
		err := r.Do(context.Background(), func(_ context.Context, attempt int) error {
			seen = append(seen, attempt)
			if attempt < 3 {
				return errTransient
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, []int{1, 2, 3}, seen)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		r := New(WithMaxAttempts(2), WithInitialInterval(time.Millisecond))
		attempts := 0
		err := r.Do(context.Background(), func(context.Context, int) error {
			attempts++
			return errTransient
		})
		assert.ErrorIs(t, err, errTransient)
		assert.Equal(t, 2, attempts)
	})

	t.Run("non-retryable error stops immediately", func(t *testing.T) {
		permanent := errors.New("reverted")
		r := New(
			WithMaxAttempts(5),
			WithInitialInterval(time.Millisecond),
			WithRetryIf(func(err error) bool { return errors.Is(err, errTransient) }),
		)
		attempts := 0
		err := r.Do(context.Background(), func(context.Context, int) error {
			attempts++
			return permanent
		})
		assert.ErrorIs(t, err, permanent)
		assert.Equal(t, 1, attempts)
	})

	t.Run("zero attempts means one", func(t *testing.T) {
		attempts := 0
		_ = New(WithMaxAttempts(0)).Do(context.Background(), func(context.Context, int) error {
			attempts++
			return errTransient
		})
		assert.Equal(t, 1, attempts)
	})

	t.Run("context cancellation", func(t *testing.T) {
		r := New(WithMaxAttempts(5), WithInitialInterval(100*time.Millisecond))
		ctx, cancel := context.WithCancel(context.Background())
		attempts := 0
		err := r.Do(ctx, func(context.Context, int) error {
			attempts++
			if attempts == 2 {
				cancel()
			}
			return errTransient
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 2, attempts)
	})

	t.Run("context already done", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		attempts := 0
		err := New(WithMaxAttempts(3), WithInitialInterval(time.Millisecond)).Do(ctx, func(context.Context, int) error {
			attempts++
			return errTransient
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, attempts)
	})

	t.Run("wait is capped", func(t *testing.T) {
		var waits []time.Duration
		r := New(
			WithMaxAttempts(5),
			WithInitialInterval(time.Millisecond),
			WithMaxInterval(2*time.Millisecond),
			WithJitter(0),
			WithOnRetry(func(_ int, _ error, wait time.Duration) { waits = append(waits, wait) }),
		)
		_ = r.Do(context.Background(), func(context.Context, int) error { return errTransient })
		assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond, 2 * time.Millisecond, 2 * time.Millisecond}, waits)
	})

	t.Run("on retry callback", func(t *testing.T) {
		var calls []int
		r := New(
			WithMaxAttempts(3),
			WithInitialInterval(time.Millisecond),
			WithJitter(0),
			WithOnRetry(func(attempt int, err error, wait time.Duration) {
				calls = append(calls, attempt)
				assert.ErrorIs(t, err, errTransient)
				assert.Positive(t, wait)
			}),
		)
		_ = r.Do(context.Background(), func(context.Context, int) error { return errTransient })
		assert.Equal(t, []int{1, 2}, calls)
	})
}
