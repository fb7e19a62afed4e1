// Package errors provides typed, code-carrying errors for the miner and its collaborators.
package errors

import (
	"context"
	"errors"
)

// IsRetryableError determines if an error is transient and the operation should be retried.
// Submitting a mined block to a full inbound queue is the typical case.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// Check if context was cancelled - not retryable
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var tErr *Error
	if As(err, &tErr) {
		switch tErr.Code() {
		case ERR_SERVICE_UNAVAILABLE,
			ERR_STORAGE_UNAVAILABLE:
			return true
		}
	}

	return false
}

// IsExhausted reports whether err signals that a bounded search ran out of attempts.
func IsExhausted(err error) bool {
	return errors.Is(err, ErrThresholdExceeded)
}
