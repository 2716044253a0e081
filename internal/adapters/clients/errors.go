// Package clients provides the instrumented outbound HTTP client used to
// deliver fault notices.
package clients

import (
	"errors"
	"fmt"
)

// ErrCircuitOpen is returned without sending anything while the circuit
// breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker open")

// ErrUnexpectedStatus is matched by every *StatusError.
var ErrUnexpectedStatus = errors.New("unexpected response status")

// StatusError reports a response outside the 2xx range.
type StatusError struct {
	Service string
	Code    int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s responded with status %d", e.Service, e.Code)
}

// Is reports whether target is ErrUnexpectedStatus.
func (e *StatusError) Is(target error) bool {
	return target == ErrUnexpectedStatus
}
