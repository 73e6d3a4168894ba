package badger

import (
	"fmt"

	"github.com/dgraph-io/badger/v2"

	"github.com/pixanchor/pixanchor/model/provenance"
	"github.com/pixanchor/pixanchor/storage"
	"github.com/pixanchor/pixanchor/storage/badger/operation"
)

type AuditLogs struct {
	db *badger.DB
}

var _ storage.AuditLogs = (*AuditLogs)(nil)

func NewAuditLogs(db *badger.DB) *AuditLogs {
	return &AuditLogs{db: db}
}

func (a *AuditLogs) Append(entry *provenance.AuditEntry) error {
	err := operation.RetryOnConflict(a.db.Update, operation.InsertAuditEntry(entry))
	if err != nil {
		return fmt.Errorf("could not append audit entry: %w", operation.TerminateOnFullDisk(err))
	}
	return nil
}

func (a *AuditLogs) Iterate(fn func(*provenance.AuditEntry) error) error {
	err := a.db.View(operation.TraverseAuditEntries(fn))
	if err != nil {
		return fmt.Errorf("could not iterate audit entries: %w", err)
	}
	return nil
}
