package rabbitmq

import (
	"time"

	"github.com/glimte/syncprobe/contracts"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultContentType is used when the transport has no content type configured
const DefaultContentType = "application/octet-stream"

// toPublishing maps a message onto AMQP properties. The correlation key and
// reply destination travel both as properties and as headers so that
// responders written against plain AMQP can echo them.
func toPublishing(msg *contracts.Message, contentType string) amqp.Publishing {
	id := msg.ID
	if id == "" {
		id = uuid.New().String()
	}
	timestamp := msg.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}
	if contentType == "" {
		contentType = DefaultContentType
	}

	headers := make(amqp.Table, len(msg.Headers))
	for k, v := range msg.Headers {
		headers[k] = toFieldValue(v)
	}

	return amqp.Publishing{
		Headers:       headers,
		ContentType:   contentType,
		DeliveryMode:  amqp.Persistent,
		CorrelationId: msg.GetCorrelationID(),
		ReplyTo:       msg.GetReplyTo(),
		MessageId:     id,
		Timestamp:     timestamp,
		Type:          msg.GetType(),
		Body:          msg.Payload,
	}
}

// fromDelivery maps a delivery back into a message. Properties fill in
// headers the sender did not set.
func fromDelivery(d *amqp.Delivery) *contracts.Message {
	headers := make(map[string]interface{}, len(d.Headers)+3)
	for k, v := range d.Headers {
		headers[k] = fromFieldValue(v)
	}

	msg := &contracts.Message{
		ID:        d.MessageId,
		Timestamp: d.Timestamp,
		Payload:   d.Body,
		Headers:   headers,
	}

	if msg.GetCorrelationID() == "" && d.CorrelationId != "" {
		msg.SetCorrelationID(d.CorrelationId)
	}
	if msg.GetReplyTo() == "" && d.ReplyTo != "" {
		msg.SetReplyTo(d.ReplyTo)
	}
	if msg.GetType() == "" && d.Type != "" {
		msg.SetHeader(contracts.HeaderMessageType, d.Type)
	}
	return msg
}

func toFieldValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		table := make(amqp.Table, len(val))
		for k, inner := range val {
			table[k] = toFieldValue(inner)
		}
		return table
	case []string:
		list := make([]interface{}, len(val))
		for i, s := range val {
			list[i] = s
		}
		return list
	case uint:
		return int64(val)
	case uint32:
		return int64(val)
	case uint64:
		return int64(val)
	default:
		return v
	}
}

func fromFieldValue(v interface{}) interface{} {
	if table, ok := v.(amqp.Table); ok {
		m := make(map[string]interface{}, len(table))
		for k, inner := range table {
			m[k] = fromFieldValue(inner)
		}
		return m
	}
	return v
}
