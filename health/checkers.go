package health

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultBacklogThreshold is the number of ready messages on a request
// queue above which the responder is reported degraded
const DefaultBacklogThreshold = 10000

// BrokerProbe is implemented by transports that can test their connection
type BrokerProbe interface {
	IsConnected() bool
	Ping(ctx context.Context) error
}

// QueueInspector reports counters of an existing queue
type QueueInspector interface {
	InspectQueue(ctx context.Context, queue string) (messages, consumers int, err error)
}

// BrokerChecker checks the broker connection
type BrokerChecker struct {
	probe BrokerProbe
}

// NewBrokerChecker creates a broker health checker
func NewBrokerChecker(probe BrokerProbe) *BrokerChecker {
	return &BrokerChecker{probe: probe}
}

// Name returns the checker name
func (c *BrokerChecker) Name() string {
	return "broker"
}

// Check performs the health check
func (c *BrokerChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{
		Name:      c.Name(),
		Timestamp: start,
	}

	if !c.probe.IsConnected() {
		result.Status = StatusUnhealthy
		result.Message = "Not connected to broker"
		result.Duration = time.Since(start)
		return result
	}

	if err := c.probe.Ping(ctx); err != nil {
		result.Status = StatusUnhealthy
		result.Message = "Broker did not answer"
		result.Error = err.Error()
		result.Duration = time.Since(start)
		return result
	}

	result.Status = StatusHealthy
	result.Message = "Broker connection is healthy"
	result.Duration = time.Since(start)
	return result
}

// ResponderChecker checks that a request queue exists and has a consumer.
// Requests sent to a queue nobody consumes can only time out.
type ResponderChecker struct {
	inspector QueueInspector
	queue     string
	backlog   int
}

// NewResponderChecker creates a checker for the request queue. A
// threshold <= 0 uses DefaultBacklogThreshold.
func NewResponderChecker(inspector QueueInspector, queue string, threshold int) *ResponderChecker {
	if threshold <= 0 {
		threshold = DefaultBacklogThreshold
	}
	return &ResponderChecker{
		inspector: inspector,
		queue:     queue,
		backlog:   threshold,
	}
}

// Name returns the checker name
func (c *ResponderChecker) Name() string {
	return "responder:" + c.queue
}

// Check performs the health check
func (c *ResponderChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{
		Name:      c.Name(),
		Timestamp: start,
	}

	messages, consumers, err := c.inspector.InspectQueue(ctx, c.queue)
	result.Duration = time.Since(start)
	if err != nil {
		result.Status = StatusUnhealthy
		result.Message = fmt.Sprintf("Queue %s is not available", c.queue)
		result.Error = err.Error()
		return result
	}

	result.Details = map[string]interface{}{
		"messages":  messages,
		"consumers": consumers,
	}

	switch {
	case consumers == 0:
		result.Status = StatusDegraded
		result.Message = "No consumer on request queue"
	case messages > c.backlog:
		result.Status = StatusDegraded
		result.Message = fmt.Sprintf("Request backlog of %d messages", messages)
	default:
		result.Status = StatusHealthy
		result.Message = "Responder is consuming"
	}
	return result
}

// RedisChecker checks the shared reply store
type RedisChecker struct {
	client redis.UniversalClient
}

// NewRedisChecker creates a redis health checker
func NewRedisChecker(client redis.UniversalClient) *RedisChecker {
	return &RedisChecker{client: client}
}

// Name returns the checker name
func (c *RedisChecker) Name() string {
	return "redis"
}

// Check performs the health check
func (c *RedisChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{
		Name:      c.Name(),
		Timestamp: start,
	}

	err := c.client.Ping(ctx).Err()
	result.Duration = time.Since(start)
	if err != nil {
		result.Status = StatusUnhealthy
		result.Message = "Reply store unreachable"
		result.Error = err.Error()
		return result
	}

	result.Status = StatusHealthy
	result.Message = "Reply store is reachable"
	return result
}
