package trajopt

import (
	"fmt"
)

// MalformedRequestError is returned when a request fails validation. Field is the dotted path of the offending
// field, e.g. "basic_info.n_steps" or "costs[1].params.coeffs".
type MalformedRequestError struct {
	Field  string
	Reason string
}

func (e *MalformedRequestError) Error() string {
	return fmt.Sprintf("malformed request: %s: %s", e.Field, e.Reason)
}

func newMalformedRequestError(field, format string, args ...interface{}) error {
	return &MalformedRequestError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// InvalidCoefficientError is returned when a term is built with a negative or non-finite coefficient.
type InvalidCoefficientError struct {
	Term  string
	Index int
	Value float64
}

func (e *InvalidCoefficientError) Error() string {
	return fmt.Sprintf("term %q has invalid coefficient %v at index %d", e.Term, e.Value, e.Index)
}
