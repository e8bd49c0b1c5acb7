package endpoint

import (
	"context"
	"sync"
	"time"
)

// ExchangeStatus is the state of one request/reply exchange
type ExchangeStatus string

const (
	ExchangeIdle          ExchangeStatus = "idle"
	ExchangeAwaitingReply ExchangeStatus = "awaiting_reply"
	ExchangeCompleted     ExchangeStatus = "completed"
	ExchangeFailed        ExchangeStatus = "failed"
)

// IsTerminal reports whether no further transition is possible
func (s ExchangeStatus) IsTerminal() bool {
	return s == ExchangeCompleted || s == ExchangeFailed
}

// Exchange is a snapshot of one request/reply exchange
type Exchange struct {
	CorrelationKey string
	RequestID      string
	Destination    Destination
	ReplyTo        Destination
	Strategy       ReplyStrategy
	Status         ExchangeStatus
	SentAt         time.Time
	CompletedAt    time.Time
	Err            error
}

// pendingExchange couples an exchange with its reply listener
type pendingExchange struct {
	exchange Exchange
	channel  *replyChannel
	cancel   context.CancelFunc
	done     chan struct{}

	mu       sync.Mutex
	deadline time.Time
}

// extend moves the listener deadline to t unless it is already later
func (p *pendingExchange) extend(t time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t.After(p.deadline) {
		p.deadline = t
	}
}

func (p *pendingExchange) listenDeadline() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.deadline
}

// exchangeTracker keeps the latest exchange per correlation key
type exchangeTracker struct {
	exchanges map[string]*pendingExchange
	mu        sync.RWMutex
}

func newExchangeTracker() *exchangeTracker {
	return &exchangeTracker{
		exchanges: make(map[string]*pendingExchange),
	}
}

// track registers p and returns the exchange it replaces, if any
func (t *exchangeTracker) track(p *pendingExchange) *pendingExchange {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.exchanges[p.exchange.CorrelationKey]
	t.exchanges[p.exchange.CorrelationKey] = p
	return prev
}

func (t *exchangeTracker) get(key string) (*pendingExchange, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	p, ok := t.exchanges[key]
	return p, ok
}

func (t *exchangeTracker) snapshot(key string) (Exchange, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	p, ok := t.exchanges[key]
	if !ok {
		return Exchange{CorrelationKey: key, Status: ExchangeIdle}, false
	}
	return p.exchange, true
}

// finish moves the exchange to a terminal state. It is a no-op when the
// exchange already finished.
func (t *exchangeTracker) finish(key string, err error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.exchanges[key]
	if !ok || p.exchange.Status.IsTerminal() {
		return false
	}

	p.exchange.CompletedAt = time.Now()
	if err != nil {
		p.exchange.Status = ExchangeFailed
		p.exchange.Err = err
	} else {
		p.exchange.Status = ExchangeCompleted
	}
	return true
}

func (t *exchangeTracker) active() []*pendingExchange {
	t.mu.RLock()
	defer t.mu.RUnlock()

	active := make([]*pendingExchange, 0)
	for _, p := range t.exchanges {
		if !p.exchange.Status.IsTerminal() {
			active = append(active, p)
		}
	}
	return active
}
