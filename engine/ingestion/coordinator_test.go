package ingestion_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"testing"

	"github.com/dgraph-io/badger/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/pixanchor/pixanchor/engine/ingestion"
	"github.com/pixanchor/pixanchor/model/provenance"
	"github.com/pixanchor/pixanchor/module/features"
	"github.com/pixanchor/pixanchor/module/metrics"
	mockmodule "github.com/pixanchor/pixanchor/module/mock"
	"github.com/pixanchor/pixanchor/storage"
	bstorage "github.com/pixanchor/pixanchor/storage/badger"
	"github.com/pixanchor/pixanchor/utils/unittest"
)

const (
	submitter = "0x00000000000000000000000000000000000000aa"
	admin     = "admin"
)

type CoordinatorSuite struct {
	suite.Suite

	dir    string
	db     *badger.DB
	images *bstorage.Images
	audit  *bstorage.AuditLogs

	registry *prometheus.Registry

	detector   *mockmodule.DuplicateDetector
	classifier *mockmodule.Classifier
	ledger     *mockmodule.Ledger

	coordinator *ingestion.Coordinator
	ctx         context.Context
	rng         *rand.Rand
}

func TestCoordinator(t *testing.T) {
	suite.Run(t, new(CoordinatorSuite))
}

func (s *CoordinatorSuite) SetupTest() {
	s.dir = unittest.TempDir(s.T())
	s.db = unittest.BadgerDB(s.T(), s.dir)

	noop := metrics.NewNoopCollector()
	var err error
	s.images, err = bstorage.NewImages(noop, s.db, 10)
	s.Require().NoError(err)
	s.audit = bstorage.NewAuditLogs(s.db)

	s.detector = mockmodule.NewDuplicateDetector(s.T())
	s.classifier = mockmodule.NewClassifier(s.T())
	s.ledger = mockmodule.NewLedger(s.T())

	cfg := ingestion.DefaultConfig()
	cfg.MaxImageSize = 1024
	s.registry = prometheus.NewRegistry()
	collector := metrics.NewIngestionCollector(s.registry)
	s.coordinator = ingestion.NewCoordinator(unittest.Logger(), collector, s.detector, s.classifier, s.ledger, s.images, s.audit, cfg)
	s.ctx = context.Background()
	s.rng = rand.New(rand.NewSource(1))
}

func (s *CoordinatorSuite) TearDownTest() {
	s.Require().NoError(s.images.Close())
	s.Require().NoError(s.db.Close())
	s.Require().NoError(os.RemoveAll(s.dir))
}

// noMatch makes the detector accept the next image.
func (s *CoordinatorSuite) noMatch(image []byte) *provenance.DetectionReport {
	report := &provenance.DetectionReport{
		Fingerprint: features.FingerprintBytes(image),
		Features:    unittest.FeatureSetFixture(s.rng, 8),
		Verdict:     provenance.NoMatchVerdict(),
	}
	s.detector.On("Detect", mock.Anything, image).Return(report, nil).Once()
	return report
}

func (s *CoordinatorSuite) auditActions() []provenance.AuditAction {
	var actions []provenance.AuditAction
	err := s.audit.Iterate(func(entry *provenance.AuditEntry) error {
		actions = append(actions, entry.Action)
		return nil
	})
	s.Require().NoError(err)
	return actions
}

// submissions returns how many submissions were observed with the given outcome.
func (s *CoordinatorSuite) submissions(outcome string) uint64 {
	mfs, err := s.registry.Gather()
	s.Require().NoError(err)
	for _, mf := range mfs {
		if mf.GetName() != "pixanchor_ingestion_submission_duration_seconds" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == metrics.LabelOutcome && label.GetValue() == outcome {
					return m.GetHistogram().GetSampleCount()
				}
			}
		}
	}
	return 0
}

// storeUnanchored stores an image directly, as left behind by a failed
// ledger write.
func (s *CoordinatorSuite) storeUnanchored(reference string) *provenance.Image {
	img := &provenance.Image{
		Fingerprint:          unittest.FingerprintFixture(),
		Features:             features.ToRaw(unittest.FeatureSetFixture(s.rng, 4)),
		Label:                provenance.LabelReal,
		Confidence:           0.7,
		TransactionReference: reference,
	}
	s.Require().NoError(s.images.Store(img))
	return img
}

// storePending stores an image whose transaction was sent but not seen
// confirmed.
func (s *CoordinatorSuite) storePending(txHash string) *provenance.Image {
	img := s.storeUnanchored("")
	s.Require().NoError(s.images.UpdateAnchor(img.ID, provenance.TxOutcome{Status: provenance.TxPending, TxHash: txHash}))
	img.TransactionReference = txHash
	img.AnchorPending = true
	return img
}

func (s *CoordinatorSuite) TestSubmitAccepted() {
	image := []byte("image bytes")
	report := s.noMatch(image)
	classification := provenance.Classification{Label: provenance.LabelFake, Confidence: 0.92}
	s.classifier.On("Classify", mock.Anything, image).Return(classification).Once()
	outcome := provenance.TxOutcome{Status: provenance.TxConfirmed, TxHash: "0x01"}
	s.ledger.On("StoreRecord", mock.Anything, report.Fingerprint, classification).Return(outcome, nil).Once()

	res, err := s.coordinator.Submit(s.ctx, ingestion.Submission{Image: image, Submitter: submitter})
	s.Require().NoError(err)
	s.Require().True(res.Accepted())
	s.Assert().Nil(res.Rejection)
	s.Assert().Equal(&outcome, res.Anchor)

	stored, err := s.images.ByFingerprint(report.Fingerprint)
	s.Require().NoError(err)
	s.Assert().Equal(res.Image.ID, stored.ID)
	s.Assert().Equal("0x01", stored.TransactionReference)
	s.Assert().Equal(provenance.LabelFake, stored.Label)
	s.Assert().Equal(0.92, stored.Confidence)
	s.Assert().Equal(submitter, stored.Submitter)
	s.Assert().Equal(features.ToRaw(report.Features), stored.Features)

	s.Assert().Equal([]provenance.AuditAction{provenance.AuditUpload}, s.auditActions())
	s.Assert().Equal(uint64(1), s.submissions("accepted"))
}

func (s *CoordinatorSuite) TestSubmitPendingAnchor() {
	image := []byte("image bytes")
	report := s.noMatch(image)
	s.classifier.On("Classify", mock.Anything, image).Return(provenance.Classification{Label: provenance.LabelReal, Confidence: 0.8}).Once()
	outcome := provenance.TxOutcome{Status: provenance.TxPending, TxHash: "0x05"}
	s.ledger.On("StoreRecord", mock.Anything, report.Fingerprint, mock.Anything).Return(outcome, nil).Once()

	res, err := s.coordinator.Submit(s.ctx, ingestion.Submission{Image: image, Submitter: submitter})
	s.Require().NoError(err)
	s.Require().True(res.Accepted())
	s.Assert().Equal(&outcome, res.Anchor)

	stored, err := s.images.ByID(res.Image.ID)
	s.Require().NoError(err)
	s.Assert().Equal("0x05", stored.TransactionReference)
	s.Assert().True(stored.AnchorPending)
	s.Assert().False(stored.Anchored())

	pending, err := s.images.PendingAnchors()
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Assert().Equal(res.Image.ID, pending[0].ID)

	s.Assert().Equal(uint64(1), s.submissions("accepted_pending"))
	s.Assert().Zero(s.submissions("accepted"))
}

func (s *CoordinatorSuite) TestSubmitAlreadyAnchored() {
	image := []byte("image bytes")
	report := s.noMatch(image)
	s.classifier.On("Classify", mock.Anything, image).Return(provenance.UnknownClassification()).Once()
	s.ledger.On("StoreRecord", mock.Anything, report.Fingerprint, mock.Anything).
		Return(provenance.TxOutcome{Status: provenance.TxAlreadyAnchored}, nil).Once()

	res, err := s.coordinator.Submit(s.ctx, ingestion.Submission{Image: image})
	s.Require().NoError(err)
	s.Require().True(res.Accepted())
	s.Assert().Equal(provenance.AlreadyAnchoredReference, res.Image.TransactionReference)
}

func (s *CoordinatorSuite) TestSubmitLedgerFailure() {
	image := []byte("image bytes")
	report := s.noMatch(image)
	s.classifier.On("Classify", mock.Anything, image).Return(provenance.Classification{Label: provenance.LabelReal, Confidence: 0.6}).Once()
	s.ledger.On("StoreRecord", mock.Anything, report.Fingerprint, mock.Anything).
		Return(provenance.TxOutcome{}, fmt.Errorf("ledger down")).Once()

	res, err := s.coordinator.Submit(s.ctx, ingestion.Submission{Image: image})
	s.Require().NoError(err)
	s.Require().True(res.Accepted())
	s.Assert().Nil(res.Anchor)
	s.Assert().Empty(res.Image.TransactionReference)

	pending, err := s.images.PendingAnchors()
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Assert().Equal(res.Image.ID, pending[0].ID)
	s.Assert().Equal(uint64(1), s.submissions("accepted_unanchored"))
}

func (s *CoordinatorSuite) TestSubmitClampsConfidence() {
	image := []byte("image bytes")
	report := s.noMatch(image)
	classification := provenance.Classification{Label: provenance.LabelFake, Confidence: 1.7}
	s.classifier.On("Classify", mock.Anything, image).Return(classification).Once()
	s.ledger.On("StoreRecord", mock.Anything, report.Fingerprint, classification).
		Return(provenance.TxOutcome{Status: provenance.TxPending, TxHash: "0x02"}, nil).Once()

	res, err := s.coordinator.Submit(s.ctx, ingestion.Submission{Image: image})
	s.Require().NoError(err)
	s.Assert().Equal(1.0, res.Image.Confidence)
	// pending transactions are referenced, they may still be mined
	s.Assert().Equal("0x02", res.Image.TransactionReference)
	s.Assert().True(res.Image.AnchorPending)
}

func (s *CoordinatorSuite) TestSubmitDuplicate() {
	image := []byte("image bytes")
	for _, verdict := range []provenance.Verdict{
		provenance.ExactDuplicateVerdict(3),
		provenance.NearDuplicateVerdict(4, 0.75),
	} {
		report := &provenance.DetectionReport{Fingerprint: features.FingerprintBytes(image), Verdict: verdict}
		s.detector.On("Detect", mock.Anything, image).Return(report, nil).Once()

		res, err := s.coordinator.Submit(s.ctx, ingestion.Submission{Image: image})
		s.Require().NoError(err)
		s.Require().False(res.Accepted())
		s.Assert().Equal(&ingestion.Rejection{
			Stage:         verdict.Stage,
			DuplicateType: verdict.Kind.String(),
			Similarity:    verdict.Score,
			MatchedID:     verdict.MatchedID,
		}, res.Rejection)
	}
	s.Assert().Equal("exact", provenance.ExactDuplicate.String())
	s.Assert().Equal("similar", provenance.NearDuplicate.String())

	s.Assert().Equal([]provenance.AuditAction{provenance.AuditUploadRejected, provenance.AuditUploadRejected}, s.auditActions())
}

func (s *CoordinatorSuite) TestSubmitInvalid() {
	s.Run("empty", func() {
		_, err := s.coordinator.Submit(s.ctx, ingestion.Submission{})
		s.Assert().True(ingestion.IsValidationError(err))
	})

	s.Run("too large", func() {
		_, err := s.coordinator.Submit(s.ctx, ingestion.Submission{Image: make([]byte, 1025)})
		s.Assert().True(ingestion.IsValidationError(err))
	})

	s.Run("undecodable", func() {
		image := []byte("not an image")
		s.detector.On("Detect", mock.Anything, image).
			Return(nil, fmt.Errorf("could not extract features: %w", features.NewExtractionErrorf("unknown format"))).Once()
		_, err := s.coordinator.Submit(s.ctx, ingestion.Submission{Image: image})
		s.Assert().True(ingestion.IsValidationError(err))
		s.Assert().True(features.IsExtractionError(err))
	})

	count := 0
	s.Require().NoError(s.images.Iterate(func(*provenance.Image) error {
		count++
		return nil
	}))
	s.Assert().Zero(count)
}

func (s *CoordinatorSuite) TestSubmitCorpusFailure() {
	image := []byte("image bytes")
	corpusErr := errors.New("corpus unavailable")
	s.detector.On("Detect", mock.Anything, image).Return(nil, corpusErr).Once()

	res, err := s.coordinator.Submit(s.ctx, ingestion.Submission{Image: image})
	s.Require().ErrorIs(err, corpusErr)
	s.Assert().False(ingestion.IsValidationError(err))
	s.Assert().Nil(res)
}

func (s *CoordinatorSuite) TestSubmitConcurrentIdentical() {
	image := []byte("image bytes")
	report := s.noMatch(image)

	// the twin submission was stored after this one passed detection
	twin := &provenance.Image{Fingerprint: report.Fingerprint}
	s.Require().NoError(s.images.Store(twin))

	s.classifier.On("Classify", mock.Anything, image).Return(provenance.UnknownClassification()).Once()
	s.ledger.On("StoreRecord", mock.Anything, report.Fingerprint, mock.Anything).
		Return(provenance.TxOutcome{Status: provenance.TxAlreadyAnchored}, nil).Once()

	res, err := s.coordinator.Submit(s.ctx, ingestion.Submission{Image: image})
	s.Require().NoError(err)
	s.Require().False(res.Accepted())
	s.Assert().Equal(twin.ID, res.Rejection.MatchedID)
	s.Assert().Equal(provenance.StageHash, res.Rejection.Stage)
}

func (s *CoordinatorSuite) TestBackfill() {
	first := s.storeUnanchored("")
	second := s.storeUnanchored("")
	s.storeUnanchored("0x03")

	s.ledger.On("StoreRecord", mock.Anything, first.Fingerprint, provenance.Classification{Label: provenance.LabelReal, Confidence: 0.7}).
		Return(provenance.TxOutcome{Status: provenance.TxConfirmed, TxHash: "0x01"}, nil).Once()
	s.ledger.On("StoreRecord", mock.Anything, second.Fingerprint, mock.Anything).
		Return(provenance.TxOutcome{}, errors.New("ledger down")).Once()

	summary, err := s.coordinator.Backfill(s.ctx, admin)
	s.Require().Error(err)
	s.Assert().Equal(ingestion.BackfillSummary{Pending: 2, Anchored: 1, Failed: 1}, summary)

	stored, err := s.images.ByID(first.ID)
	s.Require().NoError(err)
	s.Assert().Equal("0x01", stored.TransactionReference)

	pending, err := s.images.PendingAnchors()
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Assert().Equal(second.ID, pending[0].ID)

	s.Assert().Equal([]provenance.AuditAction{provenance.AuditBackfill}, s.auditActions())
}

func (s *CoordinatorSuite) TestBackfillPendingAnchors() {
	landed := s.storePending("0x0a")
	lost := s.storePending("0x0b")
	stuck := s.storePending("0x0c")

	s.ledger.On("StoreRecord", mock.Anything, landed.Fingerprint, mock.Anything).
		Return(provenance.TxOutcome{Status: provenance.TxAlreadyAnchored}, nil).Once()
	s.ledger.On("StoreRecord", mock.Anything, lost.Fingerprint, mock.Anything).
		Return(provenance.TxOutcome{Status: provenance.TxConfirmed, TxHash: "0x1b"}, nil).Once()
	s.ledger.On("StoreRecord", mock.Anything, stuck.Fingerprint, mock.Anything).
		Return(provenance.TxOutcome{Status: provenance.TxPending, TxHash: "0x1c"}, nil).Once()

	summary, err := s.coordinator.Backfill(s.ctx, admin)
	s.Require().NoError(err)
	s.Assert().Equal(ingestion.BackfillSummary{Pending: 3, Anchored: 2, Unconfirmed: 1}, summary)

	// the transaction sent at submission is kept as the anchor
	stored, err := s.images.ByID(landed.ID)
	s.Require().NoError(err)
	s.Assert().Equal("0x0a", stored.TransactionReference)
	s.Assert().True(stored.Anchored())

	stored, err = s.images.ByID(lost.ID)
	s.Require().NoError(err)
	s.Assert().Equal("0x1b", stored.TransactionReference)
	s.Assert().True(stored.Anchored())

	stored, err = s.images.ByID(stuck.ID)
	s.Require().NoError(err)
	s.Assert().Equal("0x1c", stored.TransactionReference)
	s.Assert().False(stored.Anchored())

	pending, err := s.images.PendingAnchors()
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Assert().Equal(stuck.ID, pending[0].ID)
}

func (s *CoordinatorSuite) TestBackfillNothingPending() {
	s.storeUnanchored(provenance.AlreadyAnchoredReference)

	summary, err := s.coordinator.Backfill(s.ctx, admin)
	s.Require().NoError(err)
	s.Assert().Equal(ingestion.BackfillSummary{}, summary)
}

func (s *CoordinatorSuite) TestReclassify() {
	classification := provenance.Classification{Label: provenance.LabelFake, Confidence: 0.55}

	s.Run("anchored", func() {
		img := s.storeUnanchored("0x01")
		outcome := provenance.TxOutcome{Status: provenance.TxConfirmed, TxHash: "0x02"}
		s.ledger.On("UpdateRecord", mock.Anything, img.Fingerprint, classification).Return(outcome, nil).Once()

		tx, err := s.coordinator.Reclassify(s.ctx, admin, img.ID, classification)
		s.Require().NoError(err)
		s.Assert().Equal(&outcome, tx)

		stored, err := s.images.ByID(img.ID)
		s.Require().NoError(err)
		s.Assert().Equal(provenance.LabelFake, stored.Label)
		s.Assert().Equal(0.55, stored.Confidence)
	})

	s.Run("unanchored", func() {
		img := s.storeUnanchored("")
		tx, err := s.coordinator.Reclassify(s.ctx, admin, img.ID, classification)
		s.Require().NoError(err)
		s.Assert().Nil(tx)

		stored, err := s.images.ByID(img.ID)
		s.Require().NoError(err)
		s.Assert().Equal(provenance.LabelFake, stored.Label)
	})

	s.Run("ledger failure keeps the stored classification", func() {
		img := s.storeUnanchored("0x01")
		s.ledger.On("UpdateRecord", mock.Anything, img.Fingerprint, classification).
			Return(provenance.TxOutcome{}, errors.New("reverted")).Once()

		_, err := s.coordinator.Reclassify(s.ctx, admin, img.ID, classification)
		s.Require().Error(err)

		stored, err := s.images.ByID(img.ID)
		s.Require().NoError(err)
		s.Assert().Equal(provenance.LabelReal, stored.Label)
	})

	s.Run("invalid input", func() {
		img := s.storeUnanchored("0x01")
		_, err := s.coordinator.Reclassify(s.ctx, admin, img.ID, provenance.Classification{Label: "Cartoon", Confidence: 0.5})
		s.Assert().True(ingestion.IsValidationError(err))
		_, err = s.coordinator.Reclassify(s.ctx, admin, img.ID, provenance.Classification{Label: provenance.LabelReal, Confidence: -1})
		s.Assert().True(ingestion.IsValidationError(err))
	})

	s.Run("pending anchor", func() {
		img := s.storePending("0x07")
		_, err := s.coordinator.Reclassify(s.ctx, admin, img.ID, classification)
		s.Assert().True(ingestion.IsValidationError(err))

		stored, err := s.images.ByID(img.ID)
		s.Require().NoError(err)
		s.Assert().Equal(provenance.LabelReal, stored.Label)
	})

	s.Run("unknown image", func() {
		_, err := s.coordinator.Reclassify(s.ctx, admin, 999, classification)
		s.Assert().ErrorIs(err, storage.ErrNotFound)
	})
}

func (s *CoordinatorSuite) TestSetVerified() {
	unanchored := s.storeUnanchored("")
	_, err := s.coordinator.SetVerified(s.ctx, admin, unanchored.ID, true)
	s.Assert().True(ingestion.IsValidationError(err))

	pending := s.storePending("0x07")
	_, err = s.coordinator.SetVerified(s.ctx, admin, pending.ID, true)
	s.Assert().True(ingestion.IsValidationError(err))

	img := s.storeUnanchored("0x01")
	outcome := provenance.TxOutcome{Status: provenance.TxConfirmed, TxHash: "0x02"}
	s.ledger.On("SetVerified", mock.Anything, img.Fingerprint, true).Return(outcome, nil).Once()

	tx, err := s.coordinator.SetVerified(s.ctx, admin, img.ID, true)
	s.Require().NoError(err)
	s.Assert().Equal(&outcome, tx)

	stored, err := s.images.ByID(img.ID)
	s.Require().NoError(err)
	s.Assert().True(stored.Verified)
	s.Assert().Equal([]provenance.AuditAction{provenance.AuditVerify}, s.auditActions())
}

func (s *CoordinatorSuite) TestRemove() {
	img := s.storeUnanchored("0x01")

	s.Require().NoError(s.coordinator.Remove(admin, img.ID))

	_, err := s.images.ByID(img.ID)
	s.Assert().ErrorIs(err, storage.ErrNotFound)
	s.Assert().Equal([]provenance.AuditAction{provenance.AuditDelete}, s.auditActions())

	err = s.coordinator.Remove(admin, img.ID)
	s.Assert().ErrorIs(err, storage.ErrNotFound)
}

func TestValidationError(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", ingestion.NewValidationErrorf("bad input %d", 1))
	require.True(t, ingestion.IsValidationError(err))
	require.False(t, ingestion.IsValidationError(errors.New("bad input 1")))
	require.EqualError(t, err, "wrapped: bad input 1")
}
