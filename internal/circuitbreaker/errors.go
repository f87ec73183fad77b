package circuitbreaker

import (
	"errors"
	"fmt"
	"time"
)

// CircuitOpenError is returned when a call is rejected because the circuit
// is open. It is a control-flow signal that the dependency is known bad, not
// a new failure, and it never counts toward the failure streak.
type CircuitOpenError struct {
	Name      string
	OpenUntil time.Time
}

func (e *CircuitOpenError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("circuit open until %s", e.OpenUntil.Format(time.RFC3339))
	}

	return fmt.Sprintf("circuit %q open until %s", e.Name, e.OpenUntil.Format(time.RFC3339))
}

// IsCircuitOpen reports whether err is (or wraps) a circuit-open rejection.
func IsCircuitOpen(err error) bool {
	var openErr *CircuitOpenError
	return errors.As(err, &openErr)
}
