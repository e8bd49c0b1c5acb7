package correlation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/glimte/syncprobe/contracts"
	"github.com/glimte/syncprobe/testcontext"
	"github.com/jonboulle/clockwork"
)

// CorrelationManager bridges the transport, which stores replies, and the
// producer/consumer pair, which only knows correlation keys and test variables
type CorrelationManager interface {
	// SaveCorrelationKey saves key under keyName in the test context
	SaveCorrelationKey(keyName, key string, tctx *testcontext.Context)

	// GetCorrelationKey resolves the key saved under keyName
	GetCorrelationKey(keyName string, tctx *testcontext.Context) (string, error)

	// Store makes msg available to a current or future Find on key
	Store(ctx context.Context, key string, msg *contracts.Message) error

	// Find polls for the message stored under key within timeout
	Find(ctx context.Context, key string, timeout time.Duration) (*contracts.Message, error)

	// SetObjectStore replaces the backing store for all subsequent operations
	SetObjectStore(store ObjectStore)

	// ObjectStore returns the backing store
	ObjectStore() ObjectStore
}

// PollingCorrelationManager finds replies by polling its object store
type PollingCorrelationManager struct {
	store           ObjectStore
	pollingInterval time.Duration
	clock           clockwork.Clock
	logger          *slog.Logger
	mu              sync.RWMutex
}

// ManagerOption configures the PollingCorrelationManager
type ManagerOption func(*PollingCorrelationManager)

// WithObjectStore sets the backing store
func WithObjectStore(store ObjectStore) ManagerOption {
	return func(m *PollingCorrelationManager) {
		m.store = store
	}
}

// WithPollingInterval sets the delay between two checks
func WithPollingInterval(interval time.Duration) ManagerOption {
	return func(m *PollingCorrelationManager) {
		m.pollingInterval = interval
	}
}

// WithClock sets the clock used for sleeping between checks
func WithClock(clock clockwork.Clock) ManagerOption {
	return func(m *PollingCorrelationManager) {
		m.clock = clock
	}
}

// WithManagerLogger sets the logger
func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(m *PollingCorrelationManager) {
		m.logger = logger
	}
}

// NewPollingCorrelationManager creates a manager backed by a fresh in-memory store
func NewPollingCorrelationManager(options ...ManagerOption) *PollingCorrelationManager {
	m := &PollingCorrelationManager{
		store:           NewInMemoryObjectStore(),
		pollingInterval: DefaultPollingInterval,
		clock:           clockwork.NewRealClock(),
		logger:          slog.Default(),
	}

	for _, opt := range options {
		opt(m)
	}

	if m.pollingInterval <= 0 {
		m.pollingInterval = DefaultPollingInterval
	}

	return m
}

// SaveCorrelationKey implements CorrelationManager
func (m *PollingCorrelationManager) SaveCorrelationKey(keyName, key string, tctx *testcontext.Context) {
	m.logger.Debug("saving correlation key", "keyName", keyName, "key", key)
	tctx.SetVariable(keyName, key)
}

// GetCorrelationKey implements CorrelationManager
func (m *PollingCorrelationManager) GetCorrelationKey(keyName string, tctx *testcontext.Context) (string, error) {
	if tctx == nil || !tctx.HasVariable(keyName) {
		return "", fmt.Errorf("%w: %s", ErrCorrelationKeyNotFound, keyName)
	}
	return tctx.GetVariable(keyName)
}

// Store implements CorrelationManager
func (m *PollingCorrelationManager) Store(ctx context.Context, key string, msg *contracts.Message) error {
	store := m.ObjectStore()
	if store == nil {
		return ErrNoObjectStore
	}
	if msg == nil {
		return fmt.Errorf("%w: cannot store nil message for key %s", contracts.ErrInvalidInput, key)
	}

	m.logger.Debug("storing message", "key", key, "messageId", msg.GetID())
	if err := store.Add(ctx, key, msg); err != nil {
		return fmt.Errorf("failed to store message for correlation key %s: %w", key, err)
	}
	return nil
}

// Find implements CorrelationManager.
//
// The store is checked once immediately and then after every poll interval
// until the timeout is used up. A timeout of zero performs exactly one check.
func (m *PollingCorrelationManager) Find(ctx context.Context, key string, timeout time.Duration) (*contracts.Message, error) {
	store := m.ObjectStore()
	if store == nil {
		return nil, ErrNoObjectStore
	}

	poller := NewRetryBudget(timeout, m.PollingInterval()).Start()
	for {
		attempt := poller.Attempt()

		msg, err := store.Remove(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to check object store for correlation key %s: %w", key, err)
		}
		if msg != nil {
			m.logger.Debug("found message", "key", key, "attempts", attempt)
			return msg, nil
		}

		wait, ok := poller.Next()
		if !ok {
			m.logger.Debug("retry budget exhausted", "key", key, "attempts", poller.Attempts(), "timeout", timeout)
			return nil, &TimeoutError{
				Key:      key,
				Timeout:  timeout,
				Attempts: poller.Attempts(),
			}
		}

		m.logger.Debug("reply message did not arrive yet, retrying",
			"key", key,
			"attempt", attempt,
			"retryIn", wait)

		select {
		case <-m.clock.After(wait):
		case <-ctx.Done():
			return nil, &InterruptedError{
				Key:      key,
				Attempts: poller.Attempts(),
				Err:      ctx.Err(),
			}
		}
	}
}

// SetObjectStore implements CorrelationManager
func (m *PollingCorrelationManager) SetObjectStore(store ObjectStore) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store = store
}

// ObjectStore implements CorrelationManager
func (m *PollingCorrelationManager) ObjectStore() ObjectStore {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.store
}

// PollingInterval returns the delay between two checks
func (m *PollingCorrelationManager) PollingInterval() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pollingInterval
}

// SetPollingInterval changes the delay between two checks
func (m *PollingCorrelationManager) SetPollingInterval(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPollingInterval
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pollingInterval = interval
}
