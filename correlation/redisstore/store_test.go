package redisstore

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glimte/syncprobe/contracts"
	"github.com/glimte/syncprobe/correlation"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, opts ...Option) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s, err := New(client, opts...)
	require.NoError(t, err)
	return s, mr
}

func TestStore(t *testing.T) {
	ctx := context.Background()

	t.Run("requires client", func(t *testing.T) {
		_, err := New(nil)
		assert.True(t, contracts.IsInvalidInput(err))
	})

	t.Run("absent key", func(t *testing.T) {
		s, _ := newTestStore(t)
		msg, err := s.Remove(ctx, "nothing")
		require.NoError(t, err)
		assert.Nil(t, msg)
	})

	t.Run("add and remove once", func(t *testing.T) {
		s, mr := newTestStore(t)

		reply := contracts.NewMessage("pong")
		reply.SetCorrelationID("req-1")
		require.NoError(t, s.Add(ctx, "req-1", reply))
		assert.True(t, mr.Exists(DefaultKeyPrefix+"req-1"))

		got, err := s.Remove(ctx, "req-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, reply.ID, got.ID)
		assert.Equal(t, "pong", got.GetPayload())
		assert.Equal(t, "req-1", got.GetCorrelationID())

		got, err = s.Remove(ctx, "req-1")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("custom prefix and ttl", func(t *testing.T) {
		s, mr := newTestStore(t, WithKeyPrefix("test:"), WithTTL(time.Minute))
		require.NoError(t, s.Add(ctx, "k", contracts.NewMessage("x")))

		assert.True(t, mr.Exists("test:k"))
		assert.Equal(t, time.Minute, mr.TTL("test:k"))

		mr.FastForward(2 * time.Minute)
		got, err := s.Remove(ctx, "k")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("nil message", func(t *testing.T) {
		s, _ := newTestStore(t)
		assert.True(t, contracts.IsInvalidInput(s.Add(ctx, "k", nil)))
	})

	t.Run("corrupt value", func(t *testing.T) {
		s, mr := newTestStore(t)
		require.NoError(t, mr.Set(DefaultKeyPrefix+"bad", "not json"))

		_, err := s.Remove(ctx, "bad")
		assert.Error(t, err)
	})

	t.Run("concurrent removers get one reply", func(t *testing.T) {
		s, _ := newTestStore(t)
		require.NoError(t, s.Add(ctx, "shared", contracts.NewMessage("once")))

		var wg sync.WaitGroup
		var hits atomic.Int32
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if msg, err := s.Remove(ctx, "shared"); err == nil && msg != nil {
					hits.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), hits.Load())
	})

	t.Run("backs a correlation manager", func(t *testing.T) {
		s, _ := newTestStore(t)
		m := correlation.NewPollingCorrelationManager(
			correlation.WithObjectStore(s),
			correlation.WithPollingInterval(10*time.Millisecond),
		)

		require.NoError(t, m.Store(ctx, "corr", contracts.NewMessage("reply")))
		got, err := m.Find(ctx, "corr", 100*time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, "reply", got.GetPayload())
	})
}
