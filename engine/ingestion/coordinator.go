// Package ingestion sequences duplicate detection, classification, ledger
// anchoring and persistence for submitted images.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pixanchor/pixanchor/model/provenance"
	"github.com/pixanchor/pixanchor/module"
	"github.com/pixanchor/pixanchor/module/features"
	"github.com/pixanchor/pixanchor/storage"
	"github.com/pixanchor/pixanchor/utils/logging"
)

// DefaultMaxImageSize bounds the size of a submitted image.
const DefaultMaxImageSize = 16 << 20

const (
	outcomeAccepted           = "accepted"
	outcomeAcceptedUnanchored = "accepted_unanchored"
	outcomeAcceptedPending    = "accepted_pending"
	outcomeDuplicate          = "rejected_duplicate"
	outcomeInvalid            = "rejected_invalid"
	outcomeFailed             = "failed"
)

type Config struct {
	MaxImageSize uint64
}

func DefaultConfig() Config {
	return Config{MaxImageSize: DefaultMaxImageSize}
}

// Coordinator processes submissions one at a time per call. Calls may run
// concurrently. Two concurrent submissions of the same bytes can both pass
// duplicate detection; the unique fingerprint index of the mirror rejects the
// second one. Two concurrent near duplicates are not detected.
type Coordinator struct {
	log        zerolog.Logger
	metrics    module.IngestionMetrics
	detector   module.DuplicateDetector
	classifier module.Classifier
	ledger     module.Ledger
	images     storage.Images
	audit      storage.AuditLogs
	cfg        Config
}

func NewCoordinator(
	log zerolog.Logger,
	metrics module.IngestionMetrics,
	detector module.DuplicateDetector,
	classifier module.Classifier,
	ledger module.Ledger,
	images storage.Images,
	audit storage.AuditLogs,
	cfg Config,
) *Coordinator {
	if cfg.MaxImageSize == 0 {
		cfg.MaxImageSize = DefaultMaxImageSize
	}
	return &Coordinator{
		log:        log.With().Str("component", "ingestion").Logger(),
		metrics:    metrics,
		detector:   detector,
		classifier: classifier,
		ledger:     ledger,
		images:     images,
		audit:      audit,
		cfg:        cfg,
	}
}

// Submit decides whether to accept the submission and, if so, anchors and
// stores its provenance record.
//
// Expected errors during normal operations:
//   - ValidationError for empty, oversized or undecodable images
//
// Duplicates are not errors, they yield a Result with a Rejection. A failed
// ledger write does not fail the submission: the image is stored without a
// transaction reference. Any other error means the submission could not be
// safely processed and nothing was stored.
func (c *Coordinator) Submit(ctx context.Context, sub Submission) (*Result, error) {
	start := time.Now()
	res, err := c.submit(ctx, sub)

	outcome := outcomeFailed
	switch {
	case IsValidationError(err):
		outcome = outcomeInvalid
	case err != nil:
	case res.Rejection != nil:
		outcome = outcomeDuplicate
	case res.Anchor == nil:
		outcome = outcomeAcceptedUnanchored
	case res.Anchor.Status == provenance.TxPending:
		outcome = outcomeAcceptedPending
	default:
		outcome = outcomeAccepted
	}
	c.metrics.SubmissionProcessed(outcome, time.Since(start))
	return res, err
}

func (c *Coordinator) submit(ctx context.Context, sub Submission) (*Result, error) {
	log := c.log.With().Str("submitter", sub.Submitter).Str("name", sub.Name).Logger()

	if len(sub.Image) == 0 {
		return nil, NewValidationErrorf("empty image")
	}
	if uint64(len(sub.Image)) > c.cfg.MaxImageSize {
		return nil, NewValidationErrorf("image of %d bytes exceeds the limit of %d bytes", len(sub.Image), c.cfg.MaxImageSize)
	}

	report, err := c.detector.Detect(ctx, sub.Image)
	if features.IsExtractionError(err) {
		return nil, NewValidationErrorf("invalid image: %w", err)
	}
	if err != nil {
		return nil, fmt.Errorf("could not check for duplicates: %w", err)
	}
	log = log.With().Str("fingerprint", logging.Fingerprint(report.Fingerprint)).Logger()

	if report.Verdict.IsDuplicate() {
		log.Info().Str("verdict", report.Verdict.String()).Msg("submission rejected as duplicate")
		c.record(provenance.NewAuditEntry(sub.Submitter, provenance.AuditUploadRejected, report.Verdict.MatchedID, report.Verdict.String()))
		return &Result{Rejection: rejectionFor(report.Verdict)}, nil
	}

	classification := c.classifier.Classify(ctx, sub.Image)
	log.Debug().
		Str("label", string(classification.Label)).
		Float64("confidence", classification.Confidence).
		Msg("submission classified")

	res := &Result{}
	outcome, err := c.ledger.StoreRecord(ctx, report.Fingerprint, classification)
	if err != nil {
		// anchoring is best effort, the record awaits backfill
		log.Error().Err(err).Msg("could not anchor provenance record, accepting without transaction reference")
	} else {
		res.Anchor = &outcome
	}

	confidence, _ := provenance.ClampConfidence(classification.Confidence)
	img := &provenance.Image{
		Fingerprint: report.Fingerprint,
		Features:    features.ToRaw(report.Features),
		Label:       classification.Label,
		Confidence:  confidence,
		Submitter:   sub.Submitter,
		UploadedAt:  time.Now().UTC(),
	}
	if res.Anchor != nil {
		img.SetAnchor(*res.Anchor)
	}

	err = c.images.Store(img)
	if errors.Is(err, storage.ErrAlreadyExists) {
		// a concurrent submission of the same image was stored first
		id, found, lookupErr := c.images.LookupFingerprint(report.Fingerprint)
		if lookupErr != nil || !found {
			return nil, fmt.Errorf("could not resolve concurrently stored image: %w", err)
		}
		verdict := provenance.ExactDuplicateVerdict(id)
		log.Info().Str("verdict", verdict.String()).Msg("submission rejected as duplicate of concurrent submission")
		c.record(provenance.NewAuditEntry(sub.Submitter, provenance.AuditUploadRejected, id, verdict.String()))
		return &Result{Rejection: rejectionFor(verdict)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not store image: %w", err)
	}
	res.Image = img

	detail := "unanchored"
	if res.Anchor != nil {
		detail = res.Anchor.String()
	}
	c.record(provenance.NewAuditEntry(sub.Submitter, provenance.AuditUpload, img.ID, detail))

	log.Info().
		Uint64("image_id", uint64(img.ID)).
		Str("label", string(img.Label)).
		Str("transaction", img.TransactionReference).
		Msg("submission accepted")
	return res, nil
}

// record appends an audit entry. Audit failures are logged only, they never
// undo the action they describe.
func (c *Coordinator) record(entry *provenance.AuditEntry) {
	err := c.audit.Append(entry)
	if err != nil {
		c.log.Error().Err(err).
			Str("action", string(entry.Action)).
			Uint64("image_id", uint64(entry.ImageID)).
			Msg("could not append audit entry")
	}
}
