package ingestion

import (
	"errors"
	"fmt"
)

// ValidationError is returned for submissions and admin requests that are
// rejected because of their input, such as empty or undecodable images.
type ValidationError struct {
	err error
}

func NewValidationErrorf(msg string, args ...interface{}) error {
	return ValidationError{err: fmt.Errorf(msg, args...)}
}

func (e ValidationError) Error() string {
	return e.err.Error()
}

func (e ValidationError) Unwrap() error {
	return e.err
}

// IsValidationError returns true if err is or wraps a ValidationError.
func IsValidationError(err error) bool {
	var validationErr ValidationError
	return errors.As(err, &validationErr)
}
