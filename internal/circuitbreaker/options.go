package circuitbreaker

import (
	"log/slog"
	"time"
)

// Option configures a CircuitBreaker at construction time. A breaker's
// configuration is static for its whole lifetime; only runtime counters
// mutate afterwards.
type Option func(*CircuitBreaker)

// WithFailureThreshold sets how many consecutive qualifying failures open
// the circuit.
func WithFailureThreshold(threshold int) Option {
	return func(cb *CircuitBreaker) {
		if threshold > 0 {
			cb.failureThreshold = threshold
		}
	}
}

// WithRecoveryTimeout sets the minimum dwell time in the open state before
// a probe is permitted.
func WithRecoveryTimeout(timeout time.Duration) Option {
	return func(cb *CircuitBreaker) {
		if timeout >= 0 {
			cb.recoveryTimeout = timeout
		}
	}
}

// WithHalfOpenMaxCalls sets how many probe calls are admitted while
// half-open before the outcome is decided.
func WithHalfOpenMaxCalls(max int) Option {
	return func(cb *CircuitBreaker) {
		if max > 0 {
			cb.halfOpenMaxCalls = max
		}
	}
}

// WithClassifier sets the predicate deciding which errors count as circuit
// failures.
func WithClassifier(f Classifier) Option {
	return func(cb *CircuitBreaker) {
		if f != nil {
			cb.isFailure = f
		}
	}
}

// WithLogger sets the logger used for state transition logging.
func WithLogger(logger *slog.Logger) Option {
	return func(cb *CircuitBreaker) {
		if logger != nil {
			cb.logger = logger
		}
	}
}

// WithOnStateChange registers an observer invoked on every state
// transition.
func WithOnStateChange(f func(from, to State)) Option {
	return func(cb *CircuitBreaker) {
		cb.onStateChange = f
	}
}

// WithOnFailure registers an observer invoked on every recorded qualifying
// failure.
func WithOnFailure(f func(err error)) Option {
	return func(cb *CircuitBreaker) {
		cb.onFailure = f
	}
}

// WithOnSuccess registers an observer invoked on every recorded success.
func WithOnSuccess(f func()) Option {
	return func(cb *CircuitBreaker) {
		cb.onSuccess = f
	}
}
