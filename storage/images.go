package storage

import (
	"github.com/pixanchor/pixanchor/model/provenance"
)

// Images is the off-chain mirror of accepted submissions. It doubles as the
// corpus duplicate checks run against.
type Images interface {

	// Store assigns the next image id to img and persists it together with
	// its fingerprint index entry. Ids increase in insertion order.
	// Expected errors:
	//   - ErrAlreadyExists if an image with the same fingerprint is stored
	Store(img *provenance.Image) error

	// ByID returns the image with the given id, or ErrNotFound.
	ByID(id provenance.ImageID) (*provenance.Image, error)

	// ByFingerprint returns the image with the given fingerprint, or
	// ErrNotFound.
	ByFingerprint(fp provenance.Fingerprint) (*provenance.Image, error)

	// LookupFingerprint returns the id of the image with the given
	// fingerprint, if any.
	LookupFingerprint(fp provenance.Fingerprint) (provenance.ImageID, bool, error)

	// IterateFeatures calls fn for every stored image in insertion order.
	// fn may return ErrStopIteration to end the iteration early.
	IterateFeatures(fn func(provenance.CorpusEntry) error) error

	// Iterate calls fn for every stored image in insertion order. fn may
	// return ErrStopIteration to end the iteration early.
	Iterate(fn func(*provenance.Image) error) error

	// UpdateAnchor records the outcome of anchoring the image on the
	// ledger, see Image.SetAnchor.
	UpdateAnchor(id provenance.ImageID, outcome provenance.TxOutcome) error

	UpdateClassification(id provenance.ImageID, c provenance.Classification) error

	UpdateVerified(id provenance.ImageID, verified bool) error

	// Remove deletes the image and its fingerprint index entry.
	Remove(id provenance.ImageID) error

	// PendingAnchors returns the images that are not known to be anchored,
	// in insertion order: those without a transaction reference and those
	// whose transaction was not seen confirmed.
	PendingAnchors() ([]*provenance.Image, error)
}

// AuditLogs is the append-only audit trail of ingestion and admin actions.
type AuditLogs interface {
	Append(entry *provenance.AuditEntry) error

	// Iterate calls fn for every entry, oldest first. fn may return
	// ErrStopIteration to end the iteration early.
	Iterate(fn func(*provenance.AuditEntry) error) error
}
