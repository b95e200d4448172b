// Package circuitbreaker implements the circuit breaker pattern for
// protecting callers against dependencies that are currently failing,
// such as model loads, downstream HTTP calls, or database access.
//
// A circuit breaker has three states:
//
//   - CLOSED: Normal operation, calls pass through
//   - OPEN: Failures exceeded threshold, calls blocked
//   - HALF-OPEN: Testing if the dependency recovered
//
// The open-to-half-open transition is lazy: it happens when the state is
// read or a call is attempted, not on a background timer.
//
// Usage:
//
//	registry := circuitbreaker.NewRegistry()
//	cb := registry.GetBreaker("model-loader",
//		circuitbreaker.WithFailureThreshold(3),
//		circuitbreaker.WithRecoveryTimeout(60*time.Second))
//
//	err := cb.Execute(ctx, func(ctx context.Context) error {
//		return loadModel(ctx)
//	})
//	if circuitbreaker.IsOpen(err) {
//		// Dependency is shedding load; fail fast.
//	}
//
// Or with the scoped form:
//
//	done, err := cb.Allow()
//	if err != nil {
//		return err
//	}
//	err = loadModel(ctx)
//	done(err)
package circuitbreaker
