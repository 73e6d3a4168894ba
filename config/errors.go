package config

import (
	"errors"
	"fmt"
)

// InvalidConfigError is returned when a loaded configuration violates a
// field constraint.
type InvalidConfigError struct {
	err error
}

func NewInvalidConfigErrorf(msg string, args ...interface{}) error {
	return InvalidConfigError{err: fmt.Errorf(msg, args...)}
}

func (e InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", e.err)
}

func (e InvalidConfigError) Unwrap() error {
	return e.err
}

func IsInvalidConfigError(err error) bool {
	var invalidErr InvalidConfigError
	return errors.As(err, &invalidErr)
}
