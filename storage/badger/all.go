package badger

import (
	"github.com/dgraph-io/badger/v2"

	"github.com/pixanchor/pixanchor/module"
	"github.com/pixanchor/pixanchor/storage"
)

func InitAll(metrics module.CacheMetrics, db *badger.DB) (*storage.All, error) {
	images, err := NewImages(metrics, db, DefaultCacheSize)
	if err != nil {
		return nil, err
	}
	return &storage.All{
		Images:    images,
		AuditLogs: NewAuditLogs(db),
	}, nil
}
