package provenance

import (
	"time"

	"github.com/google/uuid"
)

// AlreadyAnchoredReference is stored as the transaction reference of a mirror
// record when the ledger already held a record for the fingerprint.
const AlreadyAnchoredReference = "IMAGE_EXISTS"

// OnChainRecord is the provenance record as held by the ledger contract.
type OnChainRecord struct {
	Fingerprint Fingerprint
	Timestamp   time.Time
	Submitter   string // hex account address of the uploader
	Verified    bool
	Label       Label
	Confidence  uint64 // fixed point, see ConfidenceToFixedPoint
}

// Image is the off-chain mirror of an accepted submission. It carries the
// perceptual features used by later duplicate checks and the reference of
// the ledger transaction that anchored it. An empty TransactionReference
// means anchoring failed. AnchorPending is set while the referenced
// transaction was broadcast but not seen confirmed. Both kinds of records
// await backfill.
type Image struct {
	ID                   ImageID
	Fingerprint          Fingerprint
	Features             *RawFeatureSet
	Label                Label
	Confidence           float64
	TransactionReference string
	AnchorPending        bool
	Verified             bool
	Submitter            string
	UploadedAt           time.Time
}

// Anchored returns true if the ledger is known to hold a record for the
// image.
func (img *Image) Anchored() bool {
	return img.TransactionReference != "" && !img.AnchorPending
}

// SetAnchor records the outcome of a ledger store. A pending outcome keeps
// the image awaiting backfill. When a later store finds the record already
// anchored, the hash of the earlier pending transaction is kept as the
// reference, since that transaction is the one that landed.
func (img *Image) SetAnchor(outcome TxOutcome) {
	if outcome.Status == TxAlreadyAnchored && img.AnchorPending && img.TransactionReference != "" {
		img.AnchorPending = false
		return
	}
	img.TransactionReference = outcome.Reference()
	img.AnchorPending = outcome.Status == TxPending
}

// AuditAction enumerates the actions recorded in the audit log.
type AuditAction string

const (
	AuditUpload         AuditAction = "upload"
	AuditUploadRejected AuditAction = "upload_rejected"
	AuditReclassify     AuditAction = "reclassify"
	AuditVerify         AuditAction = "verify"
	AuditDelete         AuditAction = "delete"
	AuditBackfill       AuditAction = "backfill"
)

// AuditEntry is one audit log line.
type AuditEntry struct {
	ID        uuid.UUID
	Actor     string
	Action    AuditAction
	ImageID   ImageID // zero if the entry does not refer to a stored image
	Detail    string
	Timestamp time.Time
}

// NewAuditEntry creates an audit entry with a fresh id.
func NewAuditEntry(actor string, action AuditAction, imageID ImageID, detail string) *AuditEntry {
	return &AuditEntry{
		ID:        uuid.New(),
		Actor:     actor,
		Action:    action,
		ImageID:   imageID,
		Detail:    detail,
		Timestamp: time.Now().UTC(),
	}
}

// CorpusEntry is an accepted image as seen by a perceptual scan. Features is
// nil for records stored without a feature set.
type CorpusEntry struct {
	ID       ImageID
	Features *RawFeatureSet
}
