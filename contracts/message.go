package contracts

import (
	"time"

	"github.com/google/uuid"
)

// Well-known message headers
const (
	HeaderCorrelationID = "syncprobe_correlation_id"
	HeaderReplyTo       = "syncprobe_reply_to"
	HeaderMessageType   = "syncprobe_message_type"
)

// Message is an opaque payload with a header map.
// The core never interprets the payload, it only routes by correlation key.
type Message struct {
	ID        string
	Timestamp time.Time
	Payload   []byte
	Headers   map[string]interface{}
}

// NewMessage creates a message with generated ID and current timestamp
func NewMessage(payload string) *Message {
	return NewMessageBytes([]byte(payload))
}

// NewMessageBytes creates a message from a raw payload
func NewMessageBytes(payload []byte) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Payload:   payload,
		Headers:   make(map[string]interface{}),
	}
}

// GetID returns the message ID
func (m *Message) GetID() string {
	return m.ID
}

// GetPayload returns the payload as string
func (m *Message) GetPayload() string {
	return string(m.Payload)
}

// IsEmpty reports whether the message is nil or carries no payload
func (m *Message) IsEmpty() bool {
	return m == nil || len(m.Payload) == 0
}

// GetHeader returns a header value
func (m *Message) GetHeader(name string) (interface{}, bool) {
	if m.Headers == nil {
		return nil, false
	}
	v, ok := m.Headers[name]
	return v, ok
}

// SetHeader sets a header value
func (m *Message) SetHeader(name string, value interface{}) *Message {
	if m.Headers == nil {
		m.Headers = make(map[string]interface{})
	}
	m.Headers[name] = value
	return m
}

// GetCorrelationID returns the correlation ID header or empty string
func (m *Message) GetCorrelationID() string {
	return m.stringHeader(HeaderCorrelationID)
}

// SetCorrelationID sets the correlation ID header
func (m *Message) SetCorrelationID(correlationID string) {
	m.SetHeader(HeaderCorrelationID, correlationID)
}

// GetReplyTo returns the reply destination name
func (m *Message) GetReplyTo() string {
	return m.stringHeader(HeaderReplyTo)
}

// SetReplyTo sets the reply destination name
func (m *Message) SetReplyTo(replyTo string) {
	m.SetHeader(HeaderReplyTo, replyTo)
}

// GetType returns the message type header
func (m *Message) GetType() string {
	return m.stringHeader(HeaderMessageType)
}

// Copy returns a copy with its own header map. The payload slice is shared.
func (m *Message) Copy() *Message {
	if m == nil {
		return nil
	}
	headers := make(map[string]interface{}, len(m.Headers))
	for k, v := range m.Headers {
		headers[k] = v
	}
	return &Message{
		ID:        m.ID,
		Timestamp: m.Timestamp,
		Payload:   m.Payload,
		Headers:   headers,
	}
}

func (m *Message) stringHeader(name string) string {
	v, ok := m.GetHeader(name)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
