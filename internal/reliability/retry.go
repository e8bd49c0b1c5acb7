package reliability

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/glimte/syncprobe/contracts"
	"github.com/jonboulle/clockwork"
)

// RetryPolicy decides whether a failed attempt is retried and after which delay
type RetryPolicy interface {
	// ShouldRetry is called after the failed attempt with zero-based index attempt
	ShouldRetry(attempt int, err error) (bool, time.Duration)
	// MaxRetries returns the number of retries after the first attempt
	MaxRetries() int
}

// FixedDelay retries a bounded number of times with a constant delay
type FixedDelay struct {
	Delay       time.Duration
	MaxAttempts int
}

// NewFixedDelay creates a fixed delay policy
func NewFixedDelay(delay time.Duration, maxRetries int) *FixedDelay {
	return &FixedDelay{
		Delay:       delay,
		MaxAttempts: maxRetries,
	}
}

// ShouldRetry implements RetryPolicy
func (f *FixedDelay) ShouldRetry(attempt int, err error) (bool, time.Duration) {
	if attempt >= f.MaxAttempts || !IsRetryable(err) {
		return false, 0
	}
	return true, f.Delay
}

// MaxRetries implements RetryPolicy
func (f *FixedDelay) MaxRetries() int {
	return f.MaxAttempts
}

// ExponentialBackoff doubles (by Multiplier) the delay after every attempt up to MaxInterval.
// A negative MaxAttempts retries until the context ends.
type ExponentialBackoff struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	MaxAttempts     int
}

// NewExponentialBackoff creates an exponential backoff policy
func NewExponentialBackoff(initial, max time.Duration, multiplier float64, maxRetries int) *ExponentialBackoff {
	return &ExponentialBackoff{
		InitialInterval: initial,
		MaxInterval:     max,
		Multiplier:      multiplier,
		MaxAttempts:     maxRetries,
	}
}

// ShouldRetry implements RetryPolicy
func (e *ExponentialBackoff) ShouldRetry(attempt int, err error) (bool, time.Duration) {
	if (e.MaxAttempts >= 0 && attempt >= e.MaxAttempts) || !IsRetryable(err) {
		return false, 0
	}
	return true, e.NextDelay(attempt)
}

// MaxRetries implements RetryPolicy
func (e *ExponentialBackoff) MaxRetries() int {
	return e.MaxAttempts
}

// NextDelay returns the delay after the failed attempt
func (e *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	delay := float64(e.InitialInterval) * math.Pow(e.Multiplier, float64(attempt))
	if e.MaxInterval > 0 && delay > float64(e.MaxInterval) {
		return e.MaxInterval
	}
	return time.Duration(delay)
}

// Retrier runs an operation under a retry policy
type Retrier struct {
	policy RetryPolicy
	op     string
	clock  clockwork.Clock
	logger *slog.Logger
}

// RetrierOption configures the Retrier
type RetrierOption func(*Retrier)

// WithOperation names the operation in errors and logs
func WithOperation(op string) RetrierOption {
	return func(r *Retrier) {
		r.op = op
	}
}

// WithClock sets the clock used between attempts
func WithClock(clock clockwork.Clock) RetrierOption {
	return func(r *Retrier) {
		r.clock = clock
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) RetrierOption {
	return func(r *Retrier) {
		r.logger = logger
	}
}

// NewRetrier creates a retrier for policy
func NewRetrier(policy RetryPolicy, options ...RetrierOption) *Retrier {
	r := &Retrier{
		policy: policy,
		op:     "operation",
		clock:  clockwork.NewRealClock(),
		logger: slog.Default(),
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Do runs fn until it succeeds, fails permanently, the policy gives up or ctx ends.
// Exhausting the policy returns a *RetryError wrapping the last failure.
// A permanent failure is returned as is.
func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	start := r.clock.Now()

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}

		if !IsRetryable(err) {
			return unwrapPermanent(err)
		}

		retry, delay := r.policy.ShouldRetry(attempt, err)
		if !retry {
			return &RetryError{
				Op:          r.op,
				Attempts:    attempt + 1,
				MaxAttempts: r.policy.MaxRetries() + 1,
				LastError:   err,
				Duration:    r.clock.Since(start),
			}
		}

		r.logger.Debug("attempt failed, retrying",
			"op", r.op,
			"attempt", attempt+1,
			"retryIn", delay,
			"error", err)

		select {
		case <-r.clock.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Retry runs fn under policy with a real clock
func Retry(ctx context.Context, policy RetryPolicy, fn func() error) error {
	return NewRetrier(policy).Do(ctx, func(context.Context) error {
		return fn()
	})
}

// Permanent marks err as not retryable
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsRetryable classifies err. Caller errors, fatal errors and errors marked
// permanent are not retried; an error may decide itself through IsRetryable() bool.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, ErrNonRetryable),
		errors.Is(err, contracts.ErrInvalidInput),
		errors.Is(err, contracts.ErrFatal),
		errors.Is(err, context.Canceled):
		return false
	}

	var r interface{ IsRetryable() bool }
	if errors.As(err, &r) {
		return r.IsRetryable()
	}

	return true
}

func unwrapPermanent(err error) error {
	var p *PermanentError
	if errors.As(err, &p) && p == err {
		return p.Err
	}
	return err
}
