package reql

import "fmt"

// ValidationError reports malformed term composition detected while
// building a query: bad argument types, bad selector grammar, unknown
// option values. It is recorded in the term and surfaced synchronously,
// before any backend contact.
type ValidationError struct {
	Op     string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("reql: %s: %s", e.Op, e.Reason)
}

// TypeMismatchError reports an operator invoked on a value whose static
// type tag does not support it.
type TypeMismatchError struct {
	Op   string
	Want string
	Got  string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("reql: %s: expected %s, got %s", e.Op, e.Want, e.Got)
}

func validationErr(op, format string, args ...interface{}) Term {
	return invalidTerm(&ValidationError{Op: op, Reason: fmt.Sprintf(format, args...)})
}
