package correlation

import (
	"github.com/glimte/syncprobe/contracts"
)

const correlationKeyNamePrefix = "syncprobe_message_correlator_"

// MessageCorrelator derives correlation keys.
// GetCorrelationKey must yield the same key for a request and its reply.
type MessageCorrelator interface {
	// GetCorrelationKey derives the key from message attributes
	GetCorrelationKey(msg *contracts.Message) string

	// GetCorrelationKeyName returns the test variable name a producer saves its key under
	GetCorrelationKeyName(producerName string) string
}

// DefaultMessageCorrelator uses the correlation ID header, falling back to the message ID.
// A request carries no correlation header yet so its ID is used; the reply
// echoes that ID in the header.
type DefaultMessageCorrelator struct{}

// NewDefaultMessageCorrelator creates the default correlator
func NewDefaultMessageCorrelator() *DefaultMessageCorrelator {
	return &DefaultMessageCorrelator{}
}

// GetCorrelationKey implements MessageCorrelator
func (c *DefaultMessageCorrelator) GetCorrelationKey(msg *contracts.Message) string {
	if msg == nil {
		return ""
	}
	if id := msg.GetCorrelationID(); id != "" {
		return id
	}
	return msg.GetID()
}

// GetCorrelationKeyName implements MessageCorrelator
func (c *DefaultMessageCorrelator) GetCorrelationKeyName(producerName string) string {
	return correlationKeyNamePrefix + producerName
}
