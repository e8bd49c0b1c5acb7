package correlation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryBudget(t *testing.T) {
	t.Run("MaxAttempts", func(t *testing.T) {
		tests := []struct {
			name     string
			timeout  time.Duration
			interval time.Duration
			expected int
		}{
			{"exact multiple", 2500 * time.Millisecond, 500 * time.Millisecond, 6},
			{"remainder rounds up", 800 * time.Millisecond, 300 * time.Millisecond, 4},
			{"interval longer than timeout", 250 * time.Millisecond, time.Second, 2},
			{"zero timeout", 0, 500 * time.Millisecond, 1},
			{"negative timeout", -time.Second, 500 * time.Millisecond, 1},
			{"default interval", 5 * time.Second, 0, 11},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				b := NewRetryBudget(tt.timeout, tt.interval)
				assert.Equal(t, tt.expected, b.MaxAttempts())
			})
		}
	})

	t.Run("NewRetryBudget normalizes input", func(t *testing.T) {
		b := NewRetryBudget(-time.Second, -time.Millisecond)
		assert.Equal(t, time.Duration(0), b.Timeout)
		assert.Equal(t, DefaultPollingInterval, b.PollInterval)
	})

	t.Run("Next shortens the last sleep", func(t *testing.T) {
		p := NewRetryBudget(800*time.Millisecond, 300*time.Millisecond).Start()

		var waits []time.Duration
		for {
			p.Attempt()
			wait, ok := p.Next()
			if !ok {
				break
			}
			waits = append(waits, wait)
		}

		assert.Equal(t, []time.Duration{
			300 * time.Millisecond,
			300 * time.Millisecond,
			200 * time.Millisecond,
		}, waits)
		assert.Equal(t, 4, p.Attempts())
	})

	t.Run("total sleep equals timeout", func(t *testing.T) {
		for _, tt := range []struct{ timeout, interval time.Duration }{
			{2500 * time.Millisecond, 500 * time.Millisecond},
			{800 * time.Millisecond, 300 * time.Millisecond},
			{250 * time.Millisecond, time.Second},
			{7 * time.Second, 3 * time.Second},
		} {
			b := NewRetryBudget(tt.timeout, tt.interval)
			p := b.Start()
			var total time.Duration
			for {
				p.Attempt()
				wait, ok := p.Next()
				if !ok {
					break
				}
				total += wait
			}
			assert.Equal(t, tt.timeout, total)
			assert.Equal(t, b.MaxAttempts(), p.Attempts())
		}
	})

	t.Run("zero timeout allows a single check", func(t *testing.T) {
		p := NewRetryBudget(0, time.Second).Start()
		assert.Equal(t, 1, p.Attempt())
		_, ok := p.Next()
		assert.False(t, ok)
	})

	t.Run("Budget reports the normalized budget", func(t *testing.T) {
		p := NewRetryBudget(-time.Second, 0).Start()
		assert.Equal(t, RetryBudget{Timeout: 0, PollInterval: DefaultPollingInterval}, p.Budget())
		assert.Equal(t, 0, p.Attempts())
	})
}
