package circuitbreaker

import "time"

// Status is an observability snapshot of a single breaker.
type Status struct {
	Name             string        `json:"name"`
	State            string        `json:"state"`
	FailureCount     int           `json:"failure_count"`
	FailureThreshold int           `json:"failure_threshold"`
	RecoveryTimeout  time.Duration `json:"recovery_timeout"`
	TimeUntilRetry   time.Duration `json:"time_until_retry"`
}

// Status returns a snapshot for monitoring. Beyond the lazy
// open-to-half-open check inherent in reading the state it does not mutate
// the breaker.
func (cb *CircuitBreaker) Status() Status {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	return Status{
		Name:             cb.name,
		State:            cb.currentStateLocked().String(),
		FailureCount:     cb.failureCount,
		FailureThreshold: cb.failureThreshold,
		RecoveryTimeout:  cb.recoveryTimeout,
		TimeUntilRetry:   cb.timeUntilRetryLocked(),
	}
}
