// Package retry runs upstream calls under an exponential backoff policy.
// Only errors marked transient are retried; everything else fails at once.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"
)

// ErrExhausted is returned when every attempt failed with a transient error.
var ErrExhausted = errors.New("retries exhausted")

// TransientError marks a failure worth retrying (rate limiting, file not ready).
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err so that Policy.Do retries it.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err (or anything it wraps) is transient.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// Policy describes how many times and how patiently an operation is retried.
// The wait before retry k (1-based) is InitialDelay * 2^(k-1), without jitter.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Clock        clockwork.Clock
}

// DefaultPolicy is five attempts starting at one second.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 5, InitialDelay: time.Second}
}

// Notify is called before each wait with the error that triggered the retry
// and the upcoming delay.
type Notify func(err error, wait time.Duration)

// Do runs op until it succeeds, returns a non-transient error, the context is
// cancelled, or MaxAttempts is reached. In the last case the returned error
// wraps both ErrExhausted and the final transient error.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error, notify Notify) error {
	attempts := max(p.MaxAttempts, 1)
	clock := p.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.InitialDelay
	eb.RandomizationFactor = 0
	eb.Multiplier = 2
	eb.MaxInterval = p.InitialDelay << 10
	eb.MaxElapsedTime = 0

	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(attempts-1)), ctx)

	tries := 0
	var lastTransient error
	operation := func() error {
		tries++
		err := op(ctx)
		if err == nil {
			return nil
		}
		if IsTransient(err) {
			lastTransient = err
			return err
		}
		lastTransient = nil
		return backoff.Permanent(err)
	}

	var onRetry backoff.Notify
	if notify != nil {
		onRetry = func(err error, d time.Duration) { notify(err, d) }
	}

	err := backoff.RetryNotifyWithTimer(operation, b, onRetry, newClockTimer(clock))
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if lastTransient != nil && errors.Is(err, lastTransient) {
		return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, tries, err)
	}
	return err
}
