package operation

import (
	"errors"
	"syscall"

	"github.com/dgraph-io/badger/v2"
)

// RetryOnConflict re-runs op until its transaction commits without a
// conflict with a concurrent transaction.
func RetryOnConflict(action func(func(*badger.Txn) error) error, op func(tx *badger.Txn) error) error {
	for {
		err := action(op)
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		return err
	}
}

// TerminateOnFullDisk panics if err says the disk is full.
func TerminateOnFullDisk(err error) error {
	// using panic so any deferred functions can still execute
	if err != nil && errors.Is(err, syscall.ENOSPC) {
		panic("disk full, terminating")
	}
	return err
}
