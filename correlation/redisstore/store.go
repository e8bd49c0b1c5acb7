// Package redisstore provides a Redis-backed correlation object store, so a
// reply received by one process can be found by a waiter in another.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/glimte/syncprobe/contracts"
	"github.com/glimte/syncprobe/correlation"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultKeyPrefix namespaces pending replies
	DefaultKeyPrefix = "syncprobe:reply:"
	// DefaultTTL bounds how long an unclaimed reply is kept
	DefaultTTL = 10 * time.Minute
)

// Store keeps pending replies in Redis as JSON envelopes
type Store struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

var _ correlation.ObjectStore = (*Store)(nil)

// Option configures the Store
type Option func(*Store)

// WithKeyPrefix sets the key prefix
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithTTL sets the expiry of stored replies. Zero keeps them until removed.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl >= 0 {
			s.ttl = ttl
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a store on an existing client.
// Compatible with *redis.Client, *redis.ClusterClient and redis.UniversalClient.
func New(client redis.UniversalClient, opts ...Option) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: redis client is required", contracts.ErrInvalidInput)
	}

	s := &Store{
		client: client,
		prefix: DefaultKeyPrefix,
		ttl:    DefaultTTL,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Add implements correlation.ObjectStore
func (s *Store) Add(ctx context.Context, correlationKey string, msg *contracts.Message) error {
	data, err := contracts.MarshalMessage(msg)
	if err != nil {
		return err
	}

	if err := s.client.Set(ctx, s.key(correlationKey), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", correlationKey, err)
	}
	s.logger.Debug("stored reply in redis", "key", correlationKey, "ttl", s.ttl)
	return nil
}

// Remove implements correlation.ObjectStore using GETDEL, so concurrent
// waiters never receive the same reply
func (s *Store) Remove(ctx context.Context, correlationKey string) (*contracts.Message, error) {
	data, err := s.client.GetDel(ctx, s.key(correlationKey)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis getdel %s: %w", correlationKey, err)
	}

	msg, err := contracts.UnmarshalMessage(data)
	if err != nil {
		return nil, fmt.Errorf("decode reply %s: %w", correlationKey, err)
	}
	return msg, nil
}

func (s *Store) key(correlationKey string) string {
	return s.prefix + correlationKey
}
