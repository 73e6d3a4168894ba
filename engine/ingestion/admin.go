package ingestion

import (
	"context"
	"fmt"

	"github.com/pixanchor/pixanchor/model/provenance"
)

// Reclassify replaces the classification of a stored image. Anchored
// images are updated on the ledger first; if that fails, the stored image
// is left unchanged. Unanchored images are only updated locally and carry
// the new classification when they are backfilled. Images whose anchoring
// transaction is pending are rejected until backfill settles them.
func (c *Coordinator) Reclassify(ctx context.Context, actor string, id provenance.ImageID, classification provenance.Classification) (*provenance.TxOutcome, error) {
	if !classification.Label.Valid() {
		return nil, NewValidationErrorf("invalid label %q", classification.Label)
	}
	confidence, clamped := provenance.ClampConfidence(classification.Confidence)
	if clamped {
		return nil, NewValidationErrorf("confidence %v outside [0, 1]", classification.Confidence)
	}
	classification.Confidence = confidence

	img, err := c.images.ByID(id)
	if err != nil {
		return nil, fmt.Errorf("could not retrieve image %d: %w", id, err)
	}

	if img.AnchorPending {
		return nil, NewValidationErrorf("anchoring of image %d is pending, run backfill first", id)
	}

	var outcome *provenance.TxOutcome
	if img.Anchored() {
		tx, err := c.ledger.UpdateRecord(ctx, img.Fingerprint, classification)
		if err != nil {
			return nil, fmt.Errorf("could not update provenance record: %w", err)
		}
		outcome = &tx
	}

	err = c.images.UpdateClassification(id, classification)
	if err != nil {
		return outcome, fmt.Errorf("could not store classification: %w", err)
	}

	c.record(provenance.NewAuditEntry(actor, provenance.AuditReclassify, id,
		fmt.Sprintf("%s(%.2f) -> %s(%.2f)", img.Label, img.Confidence, classification.Label, classification.Confidence)))
	return outcome, nil
}

// SetVerified changes the verification status of an anchored image, on the
// ledger and then locally.
func (c *Coordinator) SetVerified(ctx context.Context, actor string, id provenance.ImageID, verified bool) (*provenance.TxOutcome, error) {
	img, err := c.images.ByID(id)
	if err != nil {
		return nil, fmt.Errorf("could not retrieve image %d: %w", id, err)
	}
	if img.AnchorPending {
		return nil, NewValidationErrorf("anchoring of image %d is pending, run backfill first", id)
	}
	if !img.Anchored() {
		return nil, NewValidationErrorf("image %d is not anchored, backfill it first", id)
	}

	tx, err := c.ledger.SetVerified(ctx, img.Fingerprint, verified)
	if err != nil {
		return nil, fmt.Errorf("could not set verification status: %w", err)
	}

	err = c.images.UpdateVerified(id, verified)
	if err != nil {
		return &tx, fmt.Errorf("could not store verification status: %w", err)
	}

	c.record(provenance.NewAuditEntry(actor, provenance.AuditVerify, id, fmt.Sprintf("verified=%t", verified)))
	return &tx, nil
}

// Remove deletes the stored image. The ledger record, if any, is not
// retracted and the fingerprint stays anchored. The same holds for a
// pending transaction that lands later.
func (c *Coordinator) Remove(actor string, id provenance.ImageID) error {
	img, err := c.images.ByID(id)
	if err != nil {
		return fmt.Errorf("could not retrieve image %d: %w", id, err)
	}

	err = c.images.Remove(id)
	if err != nil {
		return fmt.Errorf("could not remove image %d: %w", id, err)
	}

	if img.TransactionReference != "" {
		c.log.Warn().
			Bool("pending", img.AnchorPending).
			Uint64("image_id", uint64(id)).
			Str("fingerprint", img.Fingerprint.String()).
			Str("transaction", img.TransactionReference).
			Msg("removed stored image, its ledger record remains")
	}
	c.record(provenance.NewAuditEntry(actor, provenance.AuditDelete, id, img.Fingerprint.String()))
	return nil
}
