// Package correlation matches replies to requests by correlation key.
//
// This package implements:
//   - RetryBudget/Poller: bounded poll arithmetic (checks = 1 + ceil(timeout / interval))
//   - ObjectStore: single-consumption storage for pending replies
//   - MessageCorrelator: derives keys from producer names and message attributes
//   - PollingCorrelationManager: saves keys in the test context and waits for replies
//
// Example usage:
//
//	manager := correlation.NewPollingCorrelationManager(
//	    correlation.WithPollingInterval(300 * time.Millisecond),
//	)
//	manager.SaveCorrelationKey(keyName, key, tctx)
//
//	// transport side, when the reply arrives
//	_ = manager.Store(ctx, key, reply)
//
//	// test side
//	reply, err := manager.Find(ctx, key, 5*time.Second)
//	if contracts.IsTimeout(err) {
//	    // no reply within the budget
//	}
package correlation
