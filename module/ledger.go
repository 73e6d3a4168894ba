package module

import (
	"context"

	"github.com/pixanchor/pixanchor/model/provenance"
)

// Ledger is the write surface of the provenance ledger used by ingestion.
type Ledger interface {
	// StoreRecord anchors a provenance record with bounded retries. Storing
	// a fingerprint the ledger already holds succeeds with
	// provenance.TxAlreadyAnchored and performs no write.
	StoreRecord(ctx context.Context, fp provenance.Fingerprint, c provenance.Classification) (provenance.TxOutcome, error)

	// UpdateRecord replaces the classification of an anchored record.
	UpdateRecord(ctx context.Context, fp provenance.Fingerprint, c provenance.Classification) (provenance.TxOutcome, error)

	// SetVerified changes the verification status of an anchored record.
	SetVerified(ctx context.Context, fp provenance.Fingerprint, verified bool) (provenance.TxOutcome, error)
}

// LedgerReader is the read surface of the provenance ledger.
type LedgerReader interface {
	Exists(ctx context.Context, fp provenance.Fingerprint) (bool, error)
	Record(ctx context.Context, fp provenance.Fingerprint) (*provenance.OnChainRecord, error)
	Count(ctx context.Context) (uint64, error)
	ListPaginated(ctx context.Context, offset, limit uint64) ([]provenance.Fingerprint, error)
}
