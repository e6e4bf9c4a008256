// Package precond reports violated preconditions: block or inode numbers
// out of range, buffers of the wrong size, and inode tables that contradict
// themselves. A violation means a caller bug or a corrupt volume; it is kept
// separate from the recoverable errors that package fs returns so the
// embedding program can decide whether to stop.
package precond

import (
	"errors"
	"fmt"
)

type Error struct {
	Op  string
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: precondition violated: %s", e.Op, e.Msg)
}

func Errorf(op string, format string, a ...interface{}) error {
	return &Error{Op: op, Msg: fmt.Sprintf(format, a...)}
}

// Is reports whether err, or anything it wraps, is a violation.
func Is(err error) bool {
	var e *Error
	return errors.As(err, &e)
}
