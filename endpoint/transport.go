package endpoint

import (
	"context"
	"time"

	"github.com/glimte/syncprobe/contracts"
)

// Destination addresses a queue or topic on the transport
type Destination struct {
	Name      string
	Temporary bool
}

// IsZero reports whether no destination is set
func (d Destination) IsZero() bool {
	return d.Name == ""
}

func (d Destination) String() string {
	if d.Temporary {
		return d.Name + " (temporary)"
	}
	return d.Name
}

// Transport is the broker-facing side of a synchronous endpoint
type Transport interface {
	// ResolveDestination looks up or declares a named destination
	ResolveDestination(ctx context.Context, name string) (Destination, error)

	// CreateTemporaryDestination creates a destination owned by one exchange
	CreateTemporaryDestination(ctx context.Context) (Destination, error)

	// DeleteDestination removes a temporary destination
	DeleteDestination(ctx context.Context, dest Destination) error

	// Send publishes msg to dest
	Send(ctx context.Context, dest Destination, msg *contracts.Message) error

	// Receive waits up to timeout for the message correlated with correlationKey.
	// It returns a nil message and a nil error when nothing arrived in time.
	Receive(ctx context.Context, dest Destination, correlationKey string, timeout time.Duration) (*contracts.Message, error)
}
