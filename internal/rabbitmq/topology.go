package rabbitmq

import (
	"context"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// QueueDeclaration defines a queue to be declared
type QueueDeclaration struct {
	Name       string
	Durable    bool
	AutoDelete bool
	Exclusive  bool
	Arguments  amqp.Table
}

// DurableQueue declares a named queue that survives broker restarts
func DurableQueue(name string) QueueDeclaration {
	return QueueDeclaration{Name: name, Durable: true}
}

// TemporaryQueue declares a server-named queue owned by this connection.
// It lives until deleted or until the connection closes.
func TemporaryQueue() QueueDeclaration {
	return QueueDeclaration{Exclusive: true}
}

// TopologyManager declares and deletes queues
type TopologyManager struct {
	pool   *ChannelPool
	logger *slog.Logger
}

// NewTopologyManager creates a new topology manager
func NewTopologyManager(pool *ChannelPool, logger *slog.Logger) *TopologyManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &TopologyManager{
		pool:   pool,
		logger: logger,
	}
}

// DeclareQueue declares a queue. An empty name lets the broker pick one.
func (tm *TopologyManager) DeclareQueue(ctx context.Context, queue QueueDeclaration) (amqp.Queue, error) {
	var q amqp.Queue
	err := tm.pool.Execute(ctx, func(ch *PooledChannel) error {
		var err error
		q, err = ch.QueueDeclare(queue.Name, queue.Durable, queue.AutoDelete, queue.Exclusive, false, queue.Arguments)
		return err
	})
	if err != nil {
		return amqp.Queue{}, &TopologyError{
			Component: "queue",
			Name:      queue.Name,
			Op:        "declare",
			Err:       err,
			Timestamp: time.Now(),
		}
	}

	tm.logger.Debug("declared queue", "queue", q.Name, "durable", queue.Durable, "exclusive", queue.Exclusive)
	return q, nil
}

// DeleteQueue deletes a queue and returns the number of purged messages
func (tm *TopologyManager) DeleteQueue(ctx context.Context, name string) (int, error) {
	var purged int
	err := tm.pool.Execute(ctx, func(ch *PooledChannel) error {
		var err error
		purged, err = ch.QueueDelete(name, false, false, false)
		return err
	})
	if err != nil {
		return 0, &TopologyError{
			Component: "queue",
			Name:      name,
			Op:        "delete",
			Err:       err,
			Timestamp: time.Now(),
		}
	}

	tm.logger.Debug("deleted queue", "queue", name, "purged", purged)
	return purged, nil
}

// InspectQueue returns message and consumer counts of an existing queue
// without declaring it. A missing queue closes the channel used for the check.
func (tm *TopologyManager) InspectQueue(ctx context.Context, name string) (amqp.Queue, error) {
	var q amqp.Queue
	err := tm.pool.Execute(ctx, func(ch *PooledChannel) error {
		var err error
		q, err = ch.QueueDeclarePassive(name, false, false, false, false, nil)
		return err
	})
	if err != nil {
		return amqp.Queue{}, &TopologyError{
			Component: "queue",
			Name:      name,
			Op:        "inspect",
			Err:       err,
			Timestamp: time.Now(),
		}
	}
	return q, nil
}

// Ping checks that the broker answers on a pooled channel
func (tm *TopologyManager) Ping(ctx context.Context) error {
	return tm.pool.Execute(ctx, func(ch *PooledChannel) error {
		return ch.ExchangeDeclarePassive("amq.direct", "direct", true, false, false, false, nil)
	})
}
