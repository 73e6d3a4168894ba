package irrecoverable

import (
	"errors"
	"fmt"
)

// exception marks an error that signals corrupted state or a broken
// invariant. Callers must not try to handle an exception beyond reporting it.
type exception struct {
	err error
}

func (e exception) Error() string {
	return e.err.Error()
}

func (e exception) Unwrap() error {
	return e.err
}

// NewException wraps err as an exception.
func NewException(err error) error {
	return exception{err: err}
}

// NewExceptionf formats an error and wraps it as an exception.
func NewExceptionf(msg string, args ...interface{}) error {
	return NewException(fmt.Errorf(msg, args...))
}

// IsException returns true if err is or wraps an exception.
func IsException(err error) bool {
	var e exception
	return errors.As(err, &e)
}
