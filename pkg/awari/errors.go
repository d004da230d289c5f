package awari

import "fmt"

// InvariantError describes a broken internal invariant: an encode/decode
// mismatch, a sow precondition failure or an inconsistent analysis state.
// It is raised with panic since it indicates a bug, never bad input.
type InvariantError struct {
	Op     string // Operation that detected the violation
	Board  Board  // Board involved, if any
	Code   uint64 // Board code involved, if any
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violated in %s: %s (board %v, code %d)", e.Op, e.Detail, e.Board, e.Code)
}

// Violation panics with an InvariantError.
func Violation(op string, b Board, code uint64, format string, args ...any) {
	panic(&InvariantError{Op: op, Board: b, Code: code, Detail: fmt.Sprintf(format, args...)})
}
