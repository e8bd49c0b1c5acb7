package endpoint

import (
	"errors"
	"fmt"

	"github.com/glimte/syncprobe/contracts"
)

// Endpoint errors
var (
	// ErrNoDestination is returned when neither a destination nor a destination name is configured
	ErrNoDestination = fmt.Errorf("%w: no destination configured", contracts.ErrInvalidInput)

	// ErrEndpointClosed is returned after Close
	ErrEndpointClosed = errors.New("endpoint closed")
)

const emptyMessageReason = "Message is empty - unable to send empty message"

// InvalidInputError is a caller error detected before any transport I/O
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return e.Reason
}

// Is matches contracts.ErrInvalidInput
func (e *InvalidInputError) Is(target error) bool {
	return target == contracts.ErrInvalidInput
}

// SendError wraps a transport failure while sending a request
type SendError struct {
	Destination Destination
	Err         error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("failed to send message to %s: %v", e.Destination, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}
