package ledger

import (
	"errors"
	"fmt"
)

// ErrRecordNotFound is returned by reads of fingerprints the ledger does not
// hold.
var ErrRecordNotFound = errors.New("record not found on ledger")

// ConnectionError indicates that the ledger endpoint could not be reached or
// did not complete the handshake within the connection timeout.
type ConnectionError struct {
	err error
}

func NewConnectionErrorf(msg string, args ...interface{}) error {
	return ConnectionError{err: fmt.Errorf(msg, args...)}
}

func (e ConnectionError) Error() string {
	return e.err.Error()
}

func (e ConnectionError) Unwrap() error {
	return e.err
}

func IsConnectionError(err error) bool {
	var connErr ConnectionError
	return errors.As(err, &connErr)
}

// OperationError indicates that a ledger call or transaction failed after
// the connection was established, including a store that exhausted its
// retries.
type OperationError struct {
	err error
}

func NewOperationErrorf(msg string, args ...interface{}) error {
	return OperationError{err: fmt.Errorf(msg, args...)}
}

func (e OperationError) Error() string {
	return e.err.Error()
}

func (e OperationError) Unwrap() error {
	return e.err
}

func IsOperationError(err error) bool {
	var opErr OperationError
	return errors.As(err, &opErr)
}

// RevertError carries the reason a contract call or transaction reverted
// with.
type RevertError struct {
	Reason string
}

func (e RevertError) Error() string {
	return "execution reverted: " + e.Reason
}
