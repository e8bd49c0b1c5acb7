package correlation

import (
	"time"
)

// DefaultPollingInterval is used when no positive interval is configured
const DefaultPollingInterval = 500 * time.Millisecond

// RetryBudget turns a timeout and a polling interval into a bounded number of checks.
//
// The first check happens immediately. Every further check is preceded by a
// sleep of PollInterval, except the last sleep which is cut to whatever is
// left of Timeout. Total sleep therefore equals Timeout and the number of
// checks is 1 + ceil(Timeout / PollInterval), or exactly 1 for a zero timeout.
type RetryBudget struct {
	Timeout      time.Duration
	PollInterval time.Duration
}

// NewRetryBudget creates a budget, normalizing negative timeouts to zero and
// non-positive intervals to DefaultPollingInterval
func NewRetryBudget(timeout, pollInterval time.Duration) RetryBudget {
	if timeout < 0 {
		timeout = 0
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollingInterval
	}
	return RetryBudget{
		Timeout:      timeout,
		PollInterval: pollInterval,
	}
}

// MaxAttempts returns the number of checks the budget allows
func (b RetryBudget) MaxAttempts() int {
	if b.Timeout <= 0 {
		return 1
	}
	interval := b.PollInterval
	if interval <= 0 {
		interval = DefaultPollingInterval
	}
	retries := b.Timeout / interval
	if b.Timeout%interval != 0 {
		retries++
	}
	return int(retries) + 1
}

// Start begins a fresh poll over this budget
func (b RetryBudget) Start() *Poller {
	if b.PollInterval <= 0 {
		b.PollInterval = DefaultPollingInterval
	}
	return &Poller{
		budget:   b,
		timeLeft: b.Timeout,
	}
}

// Poller is the state of one bounded poll. It never sleeps itself; the caller
// records each check with Attempt and asks Next how long to wait before the
// following one.
type Poller struct {
	budget   RetryBudget
	attempts int
	timeLeft time.Duration
}

// Attempt records a check and returns the attempt number, starting at 1
func (p *Poller) Attempt() int {
	p.attempts++
	return p.attempts
}

// Attempts returns the number of checks recorded so far
func (p *Poller) Attempts() int {
	return p.attempts
}

// Next returns the delay before the next check, or false when the budget is spent
func (p *Poller) Next() (time.Duration, bool) {
	if p.timeLeft <= 0 {
		return 0, false
	}

	interval := p.budget.PollInterval
	p.timeLeft -= interval
	if p.timeLeft > 0 {
		return interval, true
	}
	// last sleep only covers what is left of the timeout
	return interval + p.timeLeft, true
}

// Budget returns the budget this poll runs on
func (p *Poller) Budget() RetryBudget {
	return p.budget
}
