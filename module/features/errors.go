package features

import (
	"errors"
	"fmt"
)

// HashingError is returned when the image bytes could not be read while
// computing the content fingerprint.
type HashingError struct {
	err error
}

func NewHashingErrorf(msg string, args ...interface{}) error {
	return HashingError{err: fmt.Errorf(msg, args...)}
}

func (e HashingError) Error() string {
	return e.err.Error()
}

func (e HashingError) Unwrap() error {
	return e.err
}

// IsHashingError returns true if err is or wraps a HashingError.
func IsHashingError(err error) bool {
	var hashingErr HashingError
	return errors.As(err, &hashingErr)
}

// ExtractionError is returned when an image cannot be decoded, or when a
// serialized feature set cannot be parsed. It is fatal to the perceptual
// stage of a duplicate check only.
type ExtractionError struct {
	err error
}

func NewExtractionErrorf(msg string, args ...interface{}) error {
	return ExtractionError{err: fmt.Errorf(msg, args...)}
}

func (e ExtractionError) Error() string {
	return e.err.Error()
}

func (e ExtractionError) Unwrap() error {
	return e.err
}

// IsExtractionError returns true if err is or wraps an ExtractionError.
func IsExtractionError(err error) bool {
	var extractionErr ExtractionError
	return errors.As(err, &extractionErr)
}
