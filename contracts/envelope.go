package contracts

import (
	"encoding/json"
	"fmt"
	"time"
)

// Envelope is the serialized form of a Message, used by stores that keep
// messages outside the process.
type Envelope struct {
	ID        string                 `json:"id"`
	Timestamp string                 `json:"timestamp"`
	Headers   map[string]interface{} `json:"headers,omitempty"`
	Payload   []byte                 `json:"payload"`
}

// NewEnvelope wraps a message for serialization
func NewEnvelope(msg *Message) *Envelope {
	return &Envelope{
		ID:        msg.ID,
		Timestamp: msg.Timestamp.Format(time.RFC3339Nano),
		Headers:   msg.Headers,
		Payload:   msg.Payload,
	}
}

// Message unwraps the envelope
func (e *Envelope) Message() (*Message, error) {
	var ts time.Time
	if e.Timestamp != "" {
		var err error
		ts, err = time.Parse(time.RFC3339Nano, e.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("invalid envelope timestamp %q: %w", e.Timestamp, err)
		}
	}
	headers := e.Headers
	if headers == nil {
		headers = make(map[string]interface{})
	}
	return &Message{
		ID:        e.ID,
		Timestamp: ts,
		Headers:   headers,
		Payload:   e.Payload,
	}, nil
}

// MarshalMessage encodes a message as JSON envelope
func MarshalMessage(msg *Message) ([]byte, error) {
	if msg == nil {
		return nil, fmt.Errorf("%w: message cannot be nil", ErrInvalidInput)
	}
	return json.Marshal(NewEnvelope(msg))
}

// UnmarshalMessage decodes a JSON envelope
func UnmarshalMessage(data []byte) (*Message, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}
	return env.Message()
}
