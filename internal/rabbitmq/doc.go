// Package rabbitmq provides the RabbitMQ plumbing behind the AMQP endpoint transport.
//
// This package includes:
//   - ConnectionManager: owns the connection and reconnects with backoff
//   - ChannelPool: pooled channels with idle cleanup
//   - Publisher: mandatory publishing with broker confirms and bounded retries
//   - ReplyReceiver: waits on a queue for the delivery with a given correlation id
//   - TopologyManager: declares, inspects and deletes queues
package rabbitmq
