package reliability

import (
	"errors"
	"fmt"
	"time"
)

// ErrNonRetryable marks errors that must not be retried
var ErrNonRetryable = errors.New("retry: error is not retryable")

// RetryError is returned when the policy gives up
type RetryError struct {
	Op          string
	Attempts    int
	MaxAttempts int
	LastError   error
	Duration    time.Duration
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("retry failed: %s after %d/%d attempts over %v: %v",
		e.Op, e.Attempts, e.MaxAttempts, e.Duration.Round(time.Millisecond), e.LastError)
}

func (e *RetryError) Unwrap() error {
	return e.LastError
}

// PermanentError stops a retry loop immediately
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Is matches ErrNonRetryable
func (e *PermanentError) Is(target error) bool {
	return target == ErrNonRetryable
}
