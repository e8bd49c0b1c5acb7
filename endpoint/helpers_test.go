package endpoint

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/glimte/syncprobe/contracts"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/mock"
)

type mockTransport struct {
	mock.Mock
}

func (m *mockTransport) ResolveDestination(ctx context.Context, name string) (Destination, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(Destination), args.Error(1)
}

func (m *mockTransport) CreateTemporaryDestination(ctx context.Context) (Destination, error) {
	args := m.Called(ctx)
	return args.Get(0).(Destination), args.Error(1)
}

func (m *mockTransport) DeleteDestination(ctx context.Context, dest Destination) error {
	args := m.Called(ctx, dest)
	return args.Error(0)
}

func (m *mockTransport) Send(ctx context.Context, dest Destination, msg *contracts.Message) error {
	args := m.Called(ctx, dest, msg)
	return args.Error(0)
}

func (m *mockTransport) Receive(ctx context.Context, dest Destination, correlationKey string, timeout time.Duration) (*contracts.Message, error) {
	args := m.Called(ctx, dest, correlationKey, timeout)
	var msg *contracts.Message
	if v := args.Get(0); v != nil {
		msg = v.(*contracts.Message)
	}
	return msg, args.Error(1)
}

// blockUntilCancelled makes a mocked Receive wait for its context
func blockUntilCancelled(args mock.Arguments) {
	<-args.Get(0).(context.Context).Done()
}

// stepClock fires every After immediately and records the requested waits
type stepClock struct {
	clockwork.Clock
	mu    sync.Mutex
	waits []time.Duration
}

func newStepClock() *stepClock {
	return &stepClock{Clock: clockwork.NewFakeClock()}
}

func (c *stepClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.waits = append(c.waits, d)
	c.mu.Unlock()

	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func (c *stepClock) Waits() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.waits...)
}

// countingStore yields its message on the n-th Remove, never when n is zero
type countingStore struct {
	deliverOn int
	msg       *contracts.Message
	removes   atomic.Int32
}

func (s *countingStore) Add(ctx context.Context, key string, msg *contracts.Message) error {
	return nil
}

func (s *countingStore) Remove(ctx context.Context, key string) (*contracts.Message, error) {
	n := int(s.removes.Add(1))
	if s.deliverOn > 0 && n == s.deliverOn {
		return s.msg, nil
	}
	return nil, nil
}

// lateReplyTransport answers every request after delay, measured from Send.
// Receive behaves like a broker queue: it blocks for at most its timeout.
type lateReplyTransport struct {
	delay   time.Duration
	deleted chan Destination

	mu       sync.Mutex
	request  *contracts.Message
	sentAt   time.Time
	receives []time.Duration
}

func newLateReplyTransport(delay time.Duration) *lateReplyTransport {
	return &lateReplyTransport{delay: delay, deleted: make(chan Destination, 1)}
}

func (t *lateReplyTransport) ResolveDestination(ctx context.Context, name string) (Destination, error) {
	return Destination{Name: name}, nil
}

func (t *lateReplyTransport) CreateTemporaryDestination(ctx context.Context) (Destination, error) {
	return Destination{Name: "amq.gen-late"}, nil
}

func (t *lateReplyTransport) DeleteDestination(ctx context.Context, dest Destination) error {
	t.deleted <- dest
	return nil
}

func (t *lateReplyTransport) Send(ctx context.Context, dest Destination, msg *contracts.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.request = msg
	t.sentAt = time.Now()
	return nil
}

func (t *lateReplyTransport) Receive(ctx context.Context, dest Destination, correlationKey string, timeout time.Duration) (*contracts.Message, error) {
	t.mu.Lock()
	t.receives = append(t.receives, timeout)
	wait := time.Until(t.sentAt.Add(t.delay))
	request := t.request
	t.mu.Unlock()

	if wait > timeout {
		select {
		case <-time.After(timeout):
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	select {
	case <-time.After(wait):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	reply := contracts.NewMessage("re: " + request.GetPayload())
	reply.SetCorrelationID(request.GetCorrelationID())
	return reply, nil
}

func (t *lateReplyTransport) Receives() []time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]time.Duration(nil), t.receives...)
}
