package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a fetched resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNetwork marks transport failures: timeouts, refused connections,
	// 5xx responses, an unreachable Redis.
	ErrNetwork = errors.New("network error")
)

type retryable struct{ err error }

func (e retryable) Error() string { return e.err.Error() }
func (e retryable) Unwrap() error { return e.err }

// Retryable marks err as transient so Backoff.Retry tries again.
// A nil err stays nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return retryable{err: err}
}

// IsRetryable reports whether err, or anything it wraps, was marked with
// Retryable.
func IsRetryable(err error) bool {
	var r retryable
	return errors.As(err, &r)
}

// Backoff is a retry schedule. The delay doubles after each failed attempt
// and is capped at Max when Max is positive.
type Backoff struct {
	Attempts int
	Delay    time.Duration
	Max      time.Duration
}

// DefaultBackoff is used for spec fetches.
var DefaultBackoff = Backoff{Attempts: 3, Delay: 500 * time.Millisecond, Max: 4 * time.Second}

// Retry calls fn until it succeeds, returns an error not marked Retryable,
// or the attempts run out. It returns ctx.Err() when ctx ends while waiting.
func (b Backoff) Retry(ctx context.Context, fn func() error) error {
	attempts := max(b.Attempts, 1)
	delay := b.Delay

	var err error
	for i := range attempts {
		if err = fn(); err == nil || !IsRetryable(err) {
			return err
		}
		if i == attempts-1 {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
		if b.Max > 0 && delay > b.Max {
			delay = b.Max
		}
	}
	return err
}

// RetryWithBackoff runs fn under DefaultBackoff.
func RetryWithBackoff(ctx context.Context, fn func() error) error {
	return DefaultBackoff.Retry(ctx, fn)
}
