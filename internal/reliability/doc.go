// Package reliability provides bounded retry for broker operations.
//
// Policies:
//   - FixedDelay: constant delay, bounded retries (publishing)
//   - ExponentialBackoff: growing delay, optionally unbounded (reconnecting)
//
// Errors are classified before retrying: caller errors, fatal errors and
// errors wrapped with Permanent end the loop at once.
//
// Example usage:
//
//	retrier := reliability.NewRetrier(
//	    reliability.NewFixedDelay(time.Second, 3),
//	    reliability.WithOperation("publish"),
//	)
//	err := retrier.Do(ctx, func(ctx context.Context) error {
//	    return publish(ctx)
//	})
package reliability
