package contracts

import (
	"errors"
)

// Error taxonomy shared by all packages. Concrete error types match one of
// these through errors.Is.
var (
	// ErrInvalidInput is a caller error, never retried
	ErrInvalidInput = errors.New("invalid input")

	// ErrTimeout means a retry budget was exhausted
	ErrTimeout = errors.New("timeout")

	// ErrFatal aborts a retry loop early
	ErrFatal = errors.New("fatal")
)

// IsTimeout reports whether err is a retry budget timeout
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsInvalidInput reports whether err is a caller error
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsFatal reports whether err is non-retryable
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}
