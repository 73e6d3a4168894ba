package operation

import (
	"github.com/dgraph-io/badger/v2"

	"github.com/pixanchor/pixanchor/model/provenance"
)

// InsertAuditEntry stores the entry under its timestamp so that traversal
// returns entries oldest first.
func InsertAuditEntry(entry *provenance.AuditEntry) func(*badger.Txn) error {
	return insert(auditKey(entry), entry)
}

func TraverseAuditEntries(fn func(*provenance.AuditEntry) error) func(*badger.Txn) error {
	return traverse(makePrefix(codeAuditEntry), func() (checkFunc, createFunc, handleFunc) {
		check := func(key []byte) bool {
			return true
		}
		var entry provenance.AuditEntry
		create := func() interface{} {
			return &entry
		}
		handle := func() error {
			return fn(&entry)
		}
		return check, create, handle
	})
}

func auditKey(entry *provenance.AuditEntry) []byte {
	return makePrefix(codeAuditEntry, uint64(entry.Timestamp.UnixNano()), entry.ID)
}
