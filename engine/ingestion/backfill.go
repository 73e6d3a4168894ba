package ingestion

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/pixanchor/pixanchor/model/provenance"
	"github.com/pixanchor/pixanchor/utils/logging"
)

// Backfill anchors the stored images whose ledger write failed at
// submission, and settles those whose transaction was not seen confirmed.
// For the latter the existence pre-check of the store finds a transaction
// that landed in the meantime, otherwise the record is sent again. Ledger
// failures are counted and returned aggregated, the remaining records are
// still processed. A cancelled context ends the run.
func (c *Coordinator) Backfill(ctx context.Context, actor string) (BackfillSummary, error) {
	var summary BackfillSummary

	pending, err := c.images.PendingAnchors()
	if err != nil {
		return summary, fmt.Errorf("could not list unanchored images: %w", err)
	}
	summary.Pending = len(pending)
	c.log.Info().Int("pending", len(pending)).Msg("starting anchor backfill")

	var failures *multierror.Error
	for _, img := range pending {
		if ctx.Err() != nil {
			return summary, multierror.Append(failures, ctx.Err()).ErrorOrNil()
		}

		outcome, err := c.backfill(ctx, actor, img)
		c.metrics.AnchorBackfilled(err == nil)
		if err != nil {
			summary.Failed++
			failures = multierror.Append(failures, fmt.Errorf("image %d: %w", img.ID, err))
			continue
		}
		if outcome.Status == provenance.TxPending {
			summary.Unconfirmed++
			continue
		}
		summary.Anchored++
	}

	c.log.Info().
		Int("anchored", summary.Anchored).
		Int("unconfirmed", summary.Unconfirmed).
		Int("failed", summary.Failed).
		Msg("anchor backfill completed")
	return summary, failures.ErrorOrNil()
}

func (c *Coordinator) backfill(ctx context.Context, actor string, img *provenance.Image) (provenance.TxOutcome, error) {
	log := c.log.With().
		Uint64("image_id", uint64(img.ID)).
		Str("fingerprint", logging.Fingerprint(img.Fingerprint)).
		Logger()

	classification := provenance.Classification{Label: img.Label, Confidence: img.Confidence}
	outcome, err := c.ledger.StoreRecord(ctx, img.Fingerprint, classification)
	if err != nil {
		log.Warn().Err(err).Bool("was_pending", img.AnchorPending).Msg("backfill of provenance record failed")
		return outcome, err
	}

	err = c.images.UpdateAnchor(img.ID, outcome)
	if err != nil {
		return outcome, fmt.Errorf("could not record transaction reference: %w", err)
	}
	c.record(provenance.NewAuditEntry(actor, provenance.AuditBackfill, img.ID, outcome.String()))

	log.Info().Str("outcome", outcome.String()).Msg("provenance record backfilled")
	return outcome, nil
}
