package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/glimte/syncprobe/internal/reliability"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher publishes with broker confirms and retries transient failures
type Publisher struct {
	pool           *ChannelPool
	confirmTimeout time.Duration
	retryDelay     time.Duration
	maxRetries     int
	logger         *slog.Logger
}

// PublisherOption configures the publisher
type PublisherOption func(*Publisher)

// WithConfirmTimeout sets how long to wait for the broker ack
func WithConfirmTimeout(timeout time.Duration) PublisherOption {
	return func(p *Publisher) {
		p.confirmTimeout = timeout
	}
}

// WithPublishRetries sets the number of retries after a failed publish
func WithPublishRetries(retries int) PublisherOption {
	return func(p *Publisher) {
		p.maxRetries = retries
	}
}

// WithPublishRetryDelay sets the delay between publish attempts
func WithPublishRetryDelay(delay time.Duration) PublisherOption {
	return func(p *Publisher) {
		p.retryDelay = delay
	}
}

// WithPublisherLogger sets the logger
func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// NewPublisher creates a new publisher
func NewPublisher(pool *ChannelPool, options ...PublisherOption) *Publisher {
	p := &Publisher{
		pool:           pool,
		confirmTimeout: 5 * time.Second,
		retryDelay:     time.Second,
		maxRetries:     3,
		logger:         slog.Default(),
	}

	for _, opt := range options {
		opt(p)
	}

	return p
}

// Publish publishes msg as mandatory and waits for the broker confirm.
// Unroutable messages are returned by the broker and fail without retry.
func (p *Publisher) Publish(ctx context.Context, exchange, routingKey string, msg amqp.Publishing) error {
	retrier := reliability.NewRetrier(
		reliability.NewFixedDelay(p.retryDelay, p.maxRetries),
		reliability.WithOperation("publish"),
		reliability.WithLogger(p.logger),
	)

	return retrier.Do(ctx, func(ctx context.Context) error {
		err := p.pool.Execute(ctx, func(ch *PooledChannel) error {
			return p.publishWithConfirm(ctx, ch, exchange, routingKey, msg)
		})
		if err != nil {
			return &PublishError{
				Exchange:   exchange,
				RoutingKey: routingKey,
				Err:        err,
				Timestamp:  time.Now(),
			}
		}
		return nil
	})
}

func (p *Publisher) publishWithConfirm(ctx context.Context, ch *PooledChannel, exchange, routingKey string, msg amqp.Publishing) error {
	if err := ch.enableConfirms(); err != nil {
		return err
	}
	// drop returns left over from an abandoned publish
	for {
		if _, ok := ch.takeReturn(); !ok {
			break
		}
	}

	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx, exchange, routingKey, true, false, msg)
	if err != nil {
		return fmt.Errorf("failed to publish: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, p.confirmTimeout)
	defer cancel()

	ack, err := confirm.WaitContext(waitCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return ErrConfirmTimeout
		}
		return err
	}

	if ret, returned := ch.takeReturn(); returned {
		return fmt.Errorf("%w: %d %s", ErrPublishReturned, ret.ReplyCode, ret.ReplyText)
	}
	if !ack {
		return ErrPublishNacked
	}

	p.logger.Debug("publish confirmed",
		"exchange", exchange,
		"routingKey", routingKey,
		"messageId", msg.MessageId)
	return nil
}
