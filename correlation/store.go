package correlation

import (
	"context"
	"sync"

	"github.com/glimte/syncprobe/contracts"
)

// ObjectStore holds pending replies keyed by correlation key.
//
// Remove must check and clear in one step: a stored message is returned to
// exactly one caller. When nothing is stored under the key, Remove returns a
// nil message and a nil error.
type ObjectStore interface {
	Add(ctx context.Context, correlationKey string, msg *contracts.Message) error
	Remove(ctx context.Context, correlationKey string) (*contracts.Message, error)
}

// InMemoryObjectStore is a process-local object store
type InMemoryObjectStore struct {
	messages map[string]*contracts.Message
	mu       sync.Mutex
}

// NewInMemoryObjectStore creates an empty in-memory store
func NewInMemoryObjectStore() *InMemoryObjectStore {
	return &InMemoryObjectStore{
		messages: make(map[string]*contracts.Message),
	}
}

// Add stores msg under the key, replacing any previous value
func (s *InMemoryObjectStore) Add(ctx context.Context, correlationKey string, msg *contracts.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages[correlationKey] = msg
	return nil
}

// Remove returns and clears the value stored under the key
func (s *InMemoryObjectStore) Remove(ctx context.Context, correlationKey string) (*contracts.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[correlationKey]
	if !ok {
		return nil, nil
	}
	delete(s.messages, correlationKey)
	return msg, nil
}

// Size returns the number of pending values
func (s *InMemoryObjectStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}
