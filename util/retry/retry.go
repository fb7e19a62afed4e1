// Package retry re-runs a failing call with linear or capped exponential backoff.
package retry

import (
	"context"
	"time"

	"github.com/halocoin/halominer/ulogger"
)

// SetOptions holds the knobs of a Retry call. Use the With* helpers to change them.
type SetOptions struct {
	RetryCount          int
	BackoffMultiplier   int
	BackoffDurationType time.Duration
	Message             string
	ExponentialBackoff  bool
	BackoffFactor       float64
	MaxBackoff          time.Duration
	InfiniteRetry       bool
	RetryIf             func(error) bool
}

type Options func(*SetOptions)

func WithRetryCount(retryCount int) Options {
	return func(o *SetOptions) {
		o.RetryCount = retryCount
	}
}

func WithBackoffMultiplier(backoffMultiplier int) Options {
	return func(o *SetOptions) {
		o.BackoffMultiplier = backoffMultiplier
	}
}

func WithBackoffDurationType(backoffDurationType time.Duration) Options {
	return func(o *SetOptions) {
		o.BackoffDurationType = backoffDurationType
	}
}

func WithMessage(message string) Options {
	return func(o *SetOptions) {
		o.Message = message
	}
}

// WithExponentialBackoff switches from linear to capped exponential backoff. The first
// wait is BackoffDurationType, each following wait is multiplied by BackoffFactor up to MaxBackoff.
func WithExponentialBackoff() Options {
	return func(o *SetOptions) {
		o.ExponentialBackoff = true
	}
}

func WithBackoffFactor(backoffFactor float64) Options {
	return func(o *SetOptions) {
		o.BackoffFactor = backoffFactor
	}
}

func WithMaxBackoff(maxBackoff time.Duration) Options {
	return func(o *SetOptions) {
		o.MaxBackoff = maxBackoff
	}
}

// WithInfiniteRetry retries until the call succeeds or ctx is done.
func WithInfiniteRetry() Options {
	return func(o *SetOptions) {
		o.InfiniteRetry = true
	}
}

// WithRetryIf stops retrying as soon as retryIf returns false for an error.
func WithRetryIf(retryIf func(error) bool) Options {
	return func(o *SetOptions) {
		o.RetryIf = retryIf
	}
}

// Retry calls f until it succeeds, the attempts are used up, or ctx is done.
// It returns the last result and error of f, or ctx.Err() when ctx ended the loop.
func Retry[T any](ctx context.Context, logger ulogger.Logger, f func() (T, error), opts ...Options) (T, error) {
	o := &SetOptions{
		RetryCount:          3,
		BackoffMultiplier:   2,
		BackoffDurationType: time.Second,
		BackoffFactor:       2.0,
		MaxBackoff:          30 * time.Second,
	}

	for _, opt := range opts {
		opt(o)
	}

	var (
		result T
		err    error
	)

	currentBackoff := o.BackoffDurationType

	for i := 0; o.InfiniteRetry || i < o.RetryCount; i++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}

		result, err = f()
		if err == nil {
			return result, nil
		}

		if o.RetryIf != nil && !o.RetryIf(err) {
			return result, err
		}

		if !o.InfiniteRetry && i == o.RetryCount-1 {
			break
		}

		logger.Warnf("%s (attempt %d): %v", o.Message, i+1, err)

		var sleepErr error

		if o.ExponentialBackoff {
			sleepErr = sleepFunc(ctx, currentBackoff)
			currentBackoff = CappedExponentialBackoff(currentBackoff, o.BackoffFactor, o.MaxBackoff)
		} else {
			sleepErr = BackoffAndSleep(ctx, i, o.BackoffMultiplier, o.BackoffDurationType)
		}

		if sleepErr != nil {
			return result, sleepErr
		}
	}

	return result, err
}

// sleepFunc is swapped out by tests to record backoff periods.
var sleepFunc = func(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// BackoffAndSleep sleeps for (backoffMultiplier*retries + 1) * durationType, or until ctx is done.
func BackoffAndSleep(ctx context.Context, retries int, backoffMultiplier int, durationType time.Duration) error {
	backoff := (backoffMultiplier * retries) + 1
	return sleepFunc(ctx, time.Duration(backoff)*durationType)
}

// CappedExponentialBackoff returns currentBackoff*backoffFactor, capped at maxBackoff.
func CappedExponentialBackoff(currentBackoff time.Duration, backoffFactor float64, maxBackoff time.Duration) time.Duration {
	nextBackoff := time.Duration(float64(currentBackoff) * backoffFactor)
	if nextBackoff > maxBackoff {
		return maxBackoff
	}

	return nextBackoff
}
