package storage

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/mattn/go-sqlite3"
)

// retryPolicy bounds the exponential-backoff retry applied to a single
// storage operation when SQLite reports the database busy or locked.
// Reads use the 100ms/1s policy; transactions use 200ms/2s.
type retryPolicy struct {
	initial    time.Duration
	max        time.Duration
	maxRetries uint64
}

var (
	readRetryPolicy = retryPolicy{initial: 100 * time.Millisecond, max: 1 * time.Second, maxRetries: 3}
	txRetryPolicy   = retryPolicy{initial: 200 * time.Millisecond, max: 2 * time.Second, maxRetries: 3}
)

// isBusy reports whether err is a transient SQLite busy/locked condition
// that the retry policy should retry, as opposed to a non-transient failure
// (constraint violation, syntax error, …) that should propagate immediately.
func isBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

// withRetry runs op, retrying with exponential backoff while isBusy(err) is
// true, up to policy.maxRetries attempts. On exhaustion it returns ErrBusy
// wrapping the last underlying error.
func withRetry(ctx context.Context, policy retryPolicy, op func() error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = policy.initial
	eb.MaxInterval = policy.max
	eb.Multiplier = 2
	eb.RandomizationFactor = 0.1

	bo := backoff.WithContext(backoff.WithMaxRetries(eb, policy.maxRetries), ctx)

	var lastErr error
	err := backoff.Retry(func() error {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if isBusy(lastErr) {
			return lastErr
		}
		// Non-transient: stop retrying immediately.
		return backoff.Permanent(lastErr)
	}, bo)

	if err == nil {
		return nil
	}
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Err
	}
	// Retries exhausted on a transient condition.
	return errorsJoin(ErrBusy, lastErr)
}

// errorsJoin wraps inner with sentinel so callers can errors.Is(err, sentinel)
// while still seeing the original message via Error()/Unwrap chain.
func errorsJoin(sentinel, inner error) error {
	if inner == nil {
		return sentinel
	}
	return &wrappedErr{sentinel: sentinel, inner: inner}
}

type wrappedErr struct {
	sentinel error
	inner    error
}

func (w *wrappedErr) Error() string { return w.sentinel.Error() + ": " + w.inner.Error() }
func (w *wrappedErr) Unwrap() []error {
	return []error{w.sentinel, w.inner}
}
