package httputil

import (
	"context"
	"errors"
	"time"
)

// Connection attempts made by [Ping] and the delay before the first retry.
const (
	PingAttempts = 3
	PingDelay    = 200 * time.Millisecond
)

// RetryableError wraps an error to indicate it should trigger a retry.
// Wrap transient failures (network timeouts, unreachable servers) with this
// type so that [Retry] knows to attempt the operation again.
type RetryableError struct{ Err error }

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is wrapped in a [RetryableError].
func IsRetryable(err error) bool {
	return errors.As(err, new(*RetryableError))
}

// Retry executes fn up to attempts times with exponential backoff. The cache
// backends use it through [Ping] when they connect; fetch cycles have their
// own fixed-interval retry in package query.
// It only retries errors wrapped with [RetryableError]; other errors are
// returned immediately. The delay doubles after each failed attempt.
// Returns the last error if all attempts fail, or ctx.Err() if cancelled.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	attempts = max(attempts, 1)
	var lastErr error

	for i := range attempts {
		if err := fn(); err == nil {
			return nil
		} else if lastErr = err; !IsRetryable(err) {
			return err
		}

		if i < attempts-1 {
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
				delay *= 2
			}
		}
	}
	return lastErr
}

// Ping checks a freshly opened backend connection, retrying every failure
// with [PingAttempts] and [PingDelay]. The Redis and MongoDB caches call it
// before they are handed out.
func Ping(ctx context.Context, ping func(context.Context) error) error {
	return Retry(ctx, PingAttempts, PingDelay, func() error {
		if err := ping(ctx); err != nil {
			return &RetryableError{Err: err}
		}
		return nil
	})
}
