package rabbitmq

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ReplyReceiver waits on a queue for the delivery carrying a given
// correlation id, like a JMS message selector on JMSCorrelationID.
//
// Deliveries with other correlation ids are held unacknowledged while
// waiting and requeued afterwards, so they stay available to other receivers
// without being redelivered to this one in a loop.
type ReplyReceiver struct {
	manager  *ConnectionManager
	prefetch int
	logger   *slog.Logger
}

// ReceiverOption configures the ReplyReceiver
type ReceiverOption func(*ReplyReceiver)

// WithPrefetchCount limits unacknowledged deliveries, zero for no limit
func WithPrefetchCount(count int) ReceiverOption {
	return func(r *ReplyReceiver) {
		r.prefetch = count
	}
}

// WithReceiverLogger sets the logger
func WithReceiverLogger(logger *slog.Logger) ReceiverOption {
	return func(r *ReplyReceiver) {
		r.logger = logger
	}
}

// NewReplyReceiver creates a receiver on the managed connection
func NewReplyReceiver(manager *ConnectionManager, options ...ReceiverOption) *ReplyReceiver {
	r := &ReplyReceiver{
		manager: manager,
		logger:  slog.Default(),
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Receive returns the delivery whose CorrelationId equals correlationID, or
// nil when none arrived within timeout. The matching delivery is acknowledged.
func (r *ReplyReceiver) Receive(ctx context.Context, queue, correlationID string, timeout time.Duration) (*amqp.Delivery, error) {
	receiveErr := func(op string, err error) error {
		return &ReceiveError{
			Queue:         queue,
			CorrelationID: correlationID,
			Op:            op,
			Err:           err,
			Timestamp:     time.Now(),
		}
	}

	ch, err := r.manager.Channel()
	if err != nil {
		return nil, receiveErr("open channel", err)
	}
	defer ch.Close()

	if err := ch.Qos(r.prefetch, 0, false); err != nil {
		return nil, receiveErr("set qos", err)
	}

	tag := "syncprobe-" + uuid.New().String()
	deliveries, err := ch.Consume(queue, tag, false, false, false, false, nil)
	if err != nil {
		return nil, receiveErr("consume", err)
	}

	var held []amqp.Delivery
	defer func() {
		_ = ch.Cancel(tag, false)
		for _, d := range held {
			if err := d.Nack(false, true); err != nil {
				r.logger.Warn("failed to requeue delivery",
					"queue", queue,
					"correlationId", d.CorrelationId,
					"error", err)
			}
		}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case d, ok := <-deliveries:
			if !ok {
				return nil, receiveErr("consume", ErrDeliveriesClosed)
			}
			if d.CorrelationId != correlationID {
				held = append(held, d)
				continue
			}
			if err := d.Ack(false); err != nil {
				return nil, receiveErr("ack", err)
			}
			r.logger.Debug("received correlated delivery",
				"queue", queue,
				"correlationId", correlationID,
				"skipped", len(held))
			return &d, nil

		case <-timer.C:
			r.logger.Debug("no correlated delivery within timeout",
				"queue", queue,
				"correlationId", correlationID,
				"timeout", timeout)
			return nil, nil

		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
