// Package rabbitmq provides the RabbitMQ transport for synchronous endpoints.
package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/glimte/syncprobe/contracts"
	"github.com/glimte/syncprobe/endpoint"
	"github.com/glimte/syncprobe/internal/rabbitmq"
)

// Transport implements endpoint.Transport on RabbitMQ queues.
// Requests go through the default exchange with the queue name as routing key.
type Transport struct {
	manager     *rabbitmq.ConnectionManager
	pool        *rabbitmq.ChannelPool
	publisher   *rabbitmq.Publisher
	receiver    *rabbitmq.ReplyReceiver
	topology    *rabbitmq.TopologyManager
	contentType string
	declare     bool
	logger      *slog.Logger
}

var _ endpoint.Transport = (*Transport)(nil)

// TransportConfig holds configuration for the transport
type TransportConfig struct {
	ConnectionOptions []rabbitmq.ConnectionOption
	PoolOptions       []rabbitmq.ChannelPoolOption
	PublisherOptions  []rabbitmq.PublisherOption
	ReceiverOptions   []rabbitmq.ReceiverOption
	ContentType       string
	DeclareQueues     bool
	Logger            *slog.Logger
}

// TransportOption configures the transport
type TransportOption func(*TransportConfig)

// WithConnectionOptions sets connection options
func WithConnectionOptions(opts ...rabbitmq.ConnectionOption) TransportOption {
	return func(cfg *TransportConfig) {
		cfg.ConnectionOptions = append(cfg.ConnectionOptions, opts...)
	}
}

// WithPoolOptions sets channel pool options
func WithPoolOptions(opts ...rabbitmq.ChannelPoolOption) TransportOption {
	return func(cfg *TransportConfig) {
		cfg.PoolOptions = append(cfg.PoolOptions, opts...)
	}
}

// WithPublisherOptions sets publisher options
func WithPublisherOptions(opts ...rabbitmq.PublisherOption) TransportOption {
	return func(cfg *TransportConfig) {
		cfg.PublisherOptions = append(cfg.PublisherOptions, opts...)
	}
}

// WithReceiverOptions sets reply receiver options
func WithReceiverOptions(opts ...rabbitmq.ReceiverOption) TransportOption {
	return func(cfg *TransportConfig) {
		cfg.ReceiverOptions = append(cfg.ReceiverOptions, opts...)
	}
}

// WithContentType sets the content type stamped on outgoing messages
func WithContentType(contentType string) TransportOption {
	return func(cfg *TransportConfig) {
		cfg.ContentType = contentType
	}
}

// WithDeclareQueues controls whether named destinations are declared as
// durable queues when resolved. Disable it for queues owned by another system.
func WithDeclareQueues(declare bool) TransportOption {
	return func(cfg *TransportConfig) {
		cfg.DeclareQueues = declare
	}
}

// WithLogger sets the logger for the transport and its components
func WithLogger(logger *slog.Logger) TransportOption {
	return func(cfg *TransportConfig) {
		cfg.Logger = logger
	}
}

func newTransportConfig(options []TransportOption) *TransportConfig {
	cfg := &TransportConfig{
		ContentType:   DefaultContentType,
		DeclareQueues: true,
		Logger:        slog.Default(),
	}
	for _, opt := range options {
		opt(cfg)
	}
	return cfg
}

// NewTransport connects to the broker at url and prepares the channel pool
func NewTransport(ctx context.Context, url string, options ...TransportOption) (*Transport, error) {
	cfg := newTransportConfig(options)

	connOpts := append([]rabbitmq.ConnectionOption{rabbitmq.WithLogger(cfg.Logger)}, cfg.ConnectionOptions...)
	manager := rabbitmq.NewConnectionManager(url, connOpts...)
	if err := manager.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	poolOpts := append([]rabbitmq.ChannelPoolOption{rabbitmq.WithPoolLogger(cfg.Logger)}, cfg.PoolOptions...)
	pool, err := rabbitmq.NewChannelPool(manager, poolOpts...)
	if err != nil {
		_ = manager.Close()
		return nil, fmt.Errorf("failed to create channel pool: %w", err)
	}

	pubOpts := append([]rabbitmq.PublisherOption{rabbitmq.WithPublisherLogger(cfg.Logger)}, cfg.PublisherOptions...)
	recvOpts := append([]rabbitmq.ReceiverOption{rabbitmq.WithReceiverLogger(cfg.Logger)}, cfg.ReceiverOptions...)

	return &Transport{
		manager:     manager,
		pool:        pool,
		publisher:   rabbitmq.NewPublisher(pool, pubOpts...),
		receiver:    rabbitmq.NewReplyReceiver(manager, recvOpts...),
		topology:    rabbitmq.NewTopologyManager(pool, cfg.Logger),
		contentType: cfg.ContentType,
		declare:     cfg.DeclareQueues,
		logger:      cfg.Logger,
	}, nil
}

// ResolveDestination returns the queue called name, declaring it when enabled
func (t *Transport) ResolveDestination(ctx context.Context, name string) (endpoint.Destination, error) {
	if name == "" {
		return endpoint.Destination{}, fmt.Errorf("%w: queue name is required", contracts.ErrInvalidInput)
	}
	if !t.declare {
		return endpoint.Destination{Name: name}, nil
	}

	q, err := t.topology.DeclareQueue(ctx, rabbitmq.DurableQueue(name))
	if err != nil {
		return endpoint.Destination{}, err
	}
	return endpoint.Destination{Name: q.Name}, nil
}

// CreateTemporaryDestination declares a server-named exclusive queue
func (t *Transport) CreateTemporaryDestination(ctx context.Context) (endpoint.Destination, error) {
	q, err := t.topology.DeclareQueue(ctx, rabbitmq.TemporaryQueue())
	if err != nil {
		return endpoint.Destination{}, err
	}
	return endpoint.Destination{Name: q.Name, Temporary: true}, nil
}

// DeleteDestination deletes the queue behind dest
func (t *Transport) DeleteDestination(ctx context.Context, dest endpoint.Destination) error {
	purged, err := t.topology.DeleteQueue(ctx, dest.Name)
	if err != nil {
		return err
	}
	if purged > 0 {
		t.logger.Debug("discarded unread messages with destination", "destination", dest.Name, "purged", purged)
	}
	return nil
}

// Send publishes msg to the queue behind dest
func (t *Transport) Send(ctx context.Context, dest endpoint.Destination, msg *contracts.Message) error {
	return t.publisher.Publish(ctx, "", dest.Name, toPublishing(msg, t.contentType))
}

// Receive waits for the delivery on dest whose correlation id is correlationKey
func (t *Transport) Receive(ctx context.Context, dest endpoint.Destination, correlationKey string, timeout time.Duration) (*contracts.Message, error) {
	d, err := t.receiver.Receive(ctx, dest.Name, correlationKey, timeout)
	if err != nil || d == nil {
		return nil, err
	}
	return fromDelivery(d), nil
}

// Ping checks that the broker answers on a pooled channel
func (t *Transport) Ping(ctx context.Context) error {
	if !t.manager.IsConnected() {
		return rabbitmq.ErrConnectionNotReady
	}
	return t.topology.Ping(ctx)
}

// InspectQueue returns the number of ready messages and consumers on queue
func (t *Transport) InspectQueue(ctx context.Context, queue string) (messages, consumers int, err error) {
	q, err := t.topology.InspectQueue(ctx, queue)
	if err != nil {
		return 0, 0, err
	}
	return q.Messages, q.Consumers, nil
}

// IsConnected returns connection status
func (t *Transport) IsConnected() bool {
	return t.manager.IsConnected()
}

// Close closes all resources
func (t *Transport) Close() error {
	_ = t.pool.Close()
	return t.manager.Close()
}
