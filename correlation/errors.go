package correlation

import (
	"errors"
	"fmt"
	"time"

	"github.com/glimte/syncprobe/contracts"
)

var (
	// ErrCorrelationKeyNotFound is returned when no key was saved for a key name
	ErrCorrelationKeyNotFound = errors.New("correlation: key not found in test context")

	// ErrNoObjectStore is returned when the manager has no backing store
	ErrNoObjectStore = errors.New("correlation: no object store configured")
)

// TimeoutError is returned when the retry budget is spent without a matching message
type TimeoutError struct {
	Key      string
	Timeout  time.Duration
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("action timeout after %v: no message for correlation key '%s' (%d attempts)",
		e.Timeout, e.Key, e.Attempts)
}

// Is matches contracts.ErrTimeout
func (e *TimeoutError) Is(target error) bool {
	return target == contracts.ErrTimeout
}

// InterruptedError is returned when the wait is cancelled through its context
type InterruptedError struct {
	Key      string
	Attempts int
	Err      error
}

func (e *InterruptedError) Error() string {
	return fmt.Sprintf("wait for correlation key '%s' interrupted after %d attempts: %v",
		e.Key, e.Attempts, e.Err)
}

func (e *InterruptedError) Unwrap() error {
	return e.Err
}
