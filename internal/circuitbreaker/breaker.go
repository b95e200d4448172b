package circuitbreaker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type State int

const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Blocking requests
	StateHalfOpen              // Probing for recovery
)

const (
	DefaultFailureThreshold = 3
	DefaultRecoveryTimeout  = 60 * time.Second
	DefaultHalfOpenMaxCalls = 1
)

// Classifier reports whether an error counts as a circuit failure.
// Errors outside the classifier (e.g. not-found style domain errors)
// pass through without touching breaker state.
type Classifier func(err error) bool

// DefaultClassifier counts every non-nil error as a failure.
func DefaultClassifier(err error) bool {
	return err != nil
}

// CircuitBreaker guards a single dependency against repeated calls while
// it is failing. One instance is shared by every call site protecting the
// same dependency; all bookkeeping happens under one mutex, and the
// protected operation itself always runs outside of it.
type CircuitBreaker struct {
	name             string
	failureThreshold int
	recoveryTimeout  time.Duration
	halfOpenMaxCalls int
	isFailure        Classifier
	logger           *slog.Logger

	onStateChange func(from, to State)
	onFailure     func(err error)
	onSuccess     func()

	mutex             sync.Mutex
	state             State
	failureCount      int
	lastFailureTime   time.Time
	halfOpenCalls     int
	halfOpenSuccesses int
}

func NewCircuitBreaker(name string, options ...Option) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:             name,
		state:            StateClosed,
		failureThreshold: DefaultFailureThreshold,
		recoveryTimeout:  DefaultRecoveryTimeout,
		halfOpenMaxCalls: DefaultHalfOpenMaxCalls,
		isFailure:        DefaultClassifier,
		logger:           slog.Default(),
	}

	for _, option := range options {
		option(cb)
	}

	return cb
}

// Execute runs op under breaker protection. If the circuit is open, or the
// half-open probe quota is already consumed, op is never invoked and an
// *OpenError is returned. Otherwise op's own result is passed back
// unchanged; a qualifying failure additionally trips the breaker.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	cb.mutex.Lock()
	consumed, err := cb.admitLocked()
	if err != nil {
		cb.mutex.Unlock()
		return err
	}
	cb.mutex.Unlock()

	// A panicking operation yields no verdict; give the probe slot back
	// before letting the panic continue.
	defer func() {
		if r := recover(); r != nil {
			cb.release(consumed)
			panic(r)
		}
	}()

	err = op(ctx)
	cb.record(err, consumed)
	return err
}

// Allow is the scoped form of Execute: it performs the admission check and
// returns a done callback that records the outcome. done is idempotent, so
// it is safe to call from a defer on every exit path.
func (cb *CircuitBreaker) Allow() (done func(err error), err error) {
	cb.mutex.Lock()
	consumed, err := cb.admitLocked()
	if err != nil {
		cb.mutex.Unlock()
		return nil, err
	}
	cb.mutex.Unlock()

	var once sync.Once
	return func(opErr error) {
		once.Do(func() {
			cb.record(opErr, consumed)
		})
	}, nil
}

// Wrap returns an operation equivalent to op that transparently applies
// Execute semantics.
func (cb *CircuitBreaker) Wrap(op func(ctx context.Context) error) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return cb.Execute(ctx, op)
	}
}

// Name returns the circuit identifier.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// State returns the current state. Reading the state applies the lazy
// open-to-half-open check, so it can advance the state machine.
func (cb *CircuitBreaker) State() State {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.currentStateLocked()
}

// FailureCount returns the number of qualifying failures recorded since
// the breaker last entered the closed state.
func (cb *CircuitBreaker) FailureCount() int {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.failureCount
}

// TimeUntilRetry returns how long until an open circuit permits a probe.
// It is zero whenever the circuit is not open.
func (cb *CircuitBreaker) TimeUntilRetry() time.Duration {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.timeUntilRetryLocked()
}

// Reset forces the circuit back to closed and clears the counters.
func (cb *CircuitBreaker) Reset() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.transitionLocked(StateClosed)
	cb.logger.Info("Circuit manually reset", slog.String("circuit", cb.name))
}

// ForceOpen forces the circuit open, e.g. for a maintenance window. The
// recovery timeout starts counting from the moment of the call.
func (cb *CircuitBreaker) ForceOpen() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.lastFailureTime = time.Now()
	cb.transitionLocked(StateOpen)
	cb.logger.Info("Circuit manually opened", slog.String("circuit", cb.name))
}

// admitLocked decides whether a call may proceed. Admission while half-open
// consumes one probe slot immediately, so no more than halfOpenMaxCalls
// callers are ever in flight for a single open episode. consumedSlot
// reports whether a slot was taken, so an outcome that is neither a
// success nor a qualifying failure can return it.
func (cb *CircuitBreaker) admitLocked() (consumedSlot bool, err error) {
	switch cb.currentStateLocked() {
	case StateOpen:
		return false, &OpenError{CircuitName: cb.name, RetryAfter: cb.timeUntilRetryLocked()}
	case StateHalfOpen:
		if cb.halfOpenCalls >= cb.halfOpenMaxCalls {
			return false, &OpenError{CircuitName: cb.name, RetryAfter: cb.timeUntilRetryLocked()}
		}
		cb.halfOpenCalls++
		return true, nil
	}

	return false, nil
}

func (cb *CircuitBreaker) record(err error, consumedSlot bool) {
	if err == nil {
		cb.recordSuccess()
		return
	}

	if !cb.isFailure(err) {
		// Non-qualifying errors never influence state; the probe slot
		// goes back so the half-open verdict can still be reached.
		cb.release(consumedSlot)
		return
	}

	cb.recordFailure(err)
}

// release returns an admitted half-open slot without recording an outcome.
func (cb *CircuitBreaker) release(consumedSlot bool) {
	if !consumedSlot {
		return
	}

	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if cb.state == StateHalfOpen && cb.halfOpenCalls > 0 {
		cb.halfOpenCalls--
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.notifySuccess()

	switch cb.state {
	case StateHalfOpen:
		cb.halfOpenSuccesses++
		if cb.halfOpenSuccesses >= cb.halfOpenMaxCalls {
			cb.logger.Info("Circuit closing after successful half-open probe",
				slog.String("circuit", cb.name))
			cb.transitionLocked(StateClosed)
		}
	case StateClosed:
		cb.failureCount = 0
	}
}

func (cb *CircuitBreaker) recordFailure(err error) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.failureCount++
	cb.lastFailureTime = time.Now()

	cb.notifyFailure(err)

	switch {
	case cb.state == StateHalfOpen:
		// Any failed probe reopens the circuit, regardless of threshold.
		cb.logger.Warn("Circuit reopening after half-open failure",
			slog.String("circuit", cb.name),
			slog.String("error", err.Error()))
		cb.transitionLocked(StateOpen)
	case cb.state == StateClosed && cb.failureCount >= cb.failureThreshold:
		cb.logger.Warn("Circuit opening",
			slog.String("circuit", cb.name),
			slog.Int("failures", cb.failureCount))
		cb.transitionLocked(StateOpen)
	}
}

// currentStateLocked applies the lazy open-to-half-open transition before
// reporting the state.
func (cb *CircuitBreaker) currentStateLocked() State {
	if cb.state == StateOpen {
		if cb.lastFailureTime.IsZero() || time.Since(cb.lastFailureTime) >= cb.recoveryTimeout {
			cb.transitionLocked(StateHalfOpen)
		}
	}

	return cb.state
}

func (cb *CircuitBreaker) timeUntilRetryLocked() time.Duration {
	if cb.state != StateOpen || cb.lastFailureTime.IsZero() {
		return 0
	}

	remaining := cb.recoveryTimeout - time.Since(cb.lastFailureTime)
	if remaining < 0 {
		return 0
	}

	return remaining
}

func (cb *CircuitBreaker) transitionLocked(to State) {
	from := cb.state
	cb.state = to

	switch to {
	case StateHalfOpen:
		cb.halfOpenCalls = 0
		cb.halfOpenSuccesses = 0
	case StateClosed:
		cb.failureCount = 0
		cb.lastFailureTime = time.Time{}
	}

	if from == to {
		return
	}

	cb.logger.Info("Circuit state changed",
		slog.String("circuit", cb.name),
		slog.String("from", from.String()),
		slog.String("to", to.String()))

	cb.notifyStateChange(from, to)
}

// Hooks run synchronously; a panicking hook must never reach the caller of
// the protected operation.

func (cb *CircuitBreaker) notifyStateChange(from, to State) {
	if cb.onStateChange == nil {
		return
	}
	defer func() { _ = recover() }()
	cb.onStateChange(from, to)
}

func (cb *CircuitBreaker) notifyFailure(err error) {
	if cb.onFailure == nil {
		return
	}
	defer func() { _ = recover() }()
	cb.onFailure(err)
}

func (cb *CircuitBreaker) notifySuccess() {
	if cb.onSuccess == nil {
		return
	}
	defer func() { _ = recover() }()
	cb.onSuccess()
}

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF-OPEN"
	default:
		return "UNKNOWN"
	}
}
