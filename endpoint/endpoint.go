package endpoint

import (
	"fmt"
	"sync"

	"github.com/glimte/syncprobe/contracts"
)

// SyncEndpoint is a synchronous request/reply endpoint. Its producer and
// consumer are the same instance, so a reply stored by the producer's
// listener is visible to the consumer.
type SyncEndpoint struct {
	config    *Configuration
	transport Transport
	producer  *SyncProducer
	once      sync.Once
}

// NewSyncEndpoint creates an endpoint on transport
func NewSyncEndpoint(transport Transport, options ...Option) (*SyncEndpoint, error) {
	if transport == nil {
		return nil, fmt.Errorf("%w: transport is required", contracts.ErrInvalidInput)
	}

	cfg := NewConfiguration(options...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &SyncEndpoint{
		config:    cfg,
		transport: transport,
	}, nil
}

// Configuration returns the endpoint configuration
func (e *SyncEndpoint) Configuration() *Configuration {
	return e.config
}

// Producer returns the cached producer, creating it on first use
func (e *SyncEndpoint) Producer() *SyncProducer {
	e.once.Do(func() {
		e.producer = newSyncProducer(e.config.Name+":producer", e.config, e.transport)
	})
	return e.producer
}

// Consumer returns the same instance as Producer
func (e *SyncEndpoint) Consumer() *SyncProducer {
	return e.Producer()
}

// Close releases all pending exchanges
func (e *SyncEndpoint) Close() error {
	return e.Producer().Close()
}
