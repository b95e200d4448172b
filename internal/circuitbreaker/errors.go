package circuitbreaker

import (
	"errors"
	"fmt"
	"time"
)

// OpenError is returned when a call is rejected because the circuit is
// open or the half-open probe quota is exhausted. It is the only error the
// breaker itself originates and never wraps an operation error.
type OpenError struct {
	CircuitName string
	RetryAfter  time.Duration
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit %q is open, retry after %.1f seconds", e.CircuitName, e.RetryAfter.Seconds())
}

// IsOpen reports whether err is a circuit rejection, letting callers
// distinguish "breaker intervened" from the operation's own failure.
func IsOpen(err error) bool {
	var openErr *OpenError
	return errors.As(err, &openErr)
}
