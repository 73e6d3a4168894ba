package ingestion_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixanchor/pixanchor/engine/ingestion"
	"github.com/pixanchor/pixanchor/model/provenance"
	"github.com/pixanchor/pixanchor/module/classifier"
	"github.com/pixanchor/pixanchor/module/dedup"
	"github.com/pixanchor/pixanchor/module/features"
	"github.com/pixanchor/pixanchor/module/ledger"
	"github.com/pixanchor/pixanchor/module/ledger/ledgertest"
	"github.com/pixanchor/pixanchor/module/metrics"
	bstorage "github.com/pixanchor/pixanchor/storage/badger"
	"github.com/pixanchor/pixanchor/utils/unittest"
)

type stack struct {
	backend     *ledgertest.Backend
	images      *bstorage.Images
	coordinator *ingestion.Coordinator
}

// runWithStack wires the coordinator to the real detector, extractor,
// badger storage and ledger client, with the ledger served in process.
func runWithStack(t *testing.T, result provenance.Classification, f func(*stack)) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		noop := metrics.NewNoopCollector()
		log := unittest.Logger()

		all, err := bstorage.InitAll(noop, db)
		require.NoError(t, err)
		images := all.Images.(*bstorage.Images)
		defer images.Close()

		extractor := features.NewExtractor(log, features.DefaultConfig())
		detector, err := dedup.NewDetector(log, noop, noop, images, extractor, dedup.DefaultConfig())
		require.NoError(t, err)
		defer detector.Stop()

		cfg := ledger.DefaultConfig()
		cfg.PrivateKey = ledgertest.TestKey
		cfg.ConfirmationTimeout = 2 * time.Second
		cfg.Retry = ledger.RetryPolicy{MaxRetries: 2, InitialDelay: time.Millisecond}
		cfg.NonceRetryDelay = time.Millisecond
		backend := ledgertest.NewBackend(cfg.ContractAddress)
		client, err := ledger.NewClient(log, noop, cfg, backend.Dial)
		require.NoError(t, err)
		defer client.Close()

		coordinator := ingestion.NewCoordinator(log, noop, detector, classifier.NewStatic(result), client,
			all.Images, all.AuditLogs, ingestion.DefaultConfig())

		f(&stack{backend: backend, images: images, coordinator: coordinator})
	})
}

func TestIngestion_EndToEnd(t *testing.T) {
	ctx := context.Background()
	runWithStack(t, provenance.Classification{Label: provenance.LabelFake, Confidence: 0.92}, func(s *stack) {
		pattern := unittest.PatternImage(31, 320, 240)
		original := unittest.PNG(t, pattern)

		res, err := s.coordinator.Submit(ctx, ingestion.Submission{Image: original, Submitter: submitter})
		require.NoError(t, err)
		require.True(t, res.Accepted())
		require.NotNil(t, res.Anchor)
		assert.Equal(t, provenance.TxConfirmed, res.Anchor.Status)

		fp := features.FingerprintBytes(original)
		label, confidence, verified, ok := s.backend.Record(fp.String())
		require.True(t, ok)
		assert.Equal(t, "Fake", label)
		assert.Equal(t, uint64(92), confidence)
		assert.False(t, verified)

		stored, err := s.images.ByFingerprint(fp)
		require.NoError(t, err)
		assert.Equal(t, s.backend.Accepted()[0].Hash().Hex(), stored.TransactionReference)
		require.NotNil(t, stored.Features)

		// the same bytes again
		res, err = s.coordinator.Submit(ctx, ingestion.Submission{Image: original})
		require.NoError(t, err)
		require.NotNil(t, res.Rejection)
		assert.Equal(t, "exact", res.Rejection.DuplicateType)
		assert.Equal(t, provenance.StageHash, res.Rejection.Stage)
		assert.Equal(t, stored.ID, res.Rejection.MatchedID)

		// the same pixels in different bytes
		res, err = s.coordinator.Submit(ctx, ingestion.Submission{Image: unittest.ReencodedPNG(t, pattern)})
		require.NoError(t, err)
		require.NotNil(t, res.Rejection)
		assert.Equal(t, "similar", res.Rejection.DuplicateType)
		assert.Equal(t, provenance.StagePerceptual, res.Rejection.Stage)
		assert.Equal(t, stored.ID, res.Rejection.MatchedID)
		assert.GreaterOrEqual(t, res.Rejection.Similarity, dedup.DefaultThreshold)

		// an unrelated image
		res, err = s.coordinator.Submit(ctx, ingestion.Submission{Image: unittest.PatternPNG(t, 32)})
		require.NoError(t, err)
		require.True(t, res.Accepted())
		assert.Greater(t, res.Image.ID, stored.ID)

		// rejections never reach the ledger
		assert.Equal(t, 2, s.backend.Sends())

		_, err = s.coordinator.Submit(ctx, ingestion.Submission{Image: []byte("not an image")})
		assert.True(t, ingestion.IsValidationError(err))
	})
}

func TestIngestion_LedgerOutage(t *testing.T) {
	ctx := context.Background()
	runWithStack(t, provenance.Classification{Label: provenance.LabelReal, Confidence: 0.81}, func(s *stack) {
		s.backend.FailDial(errors.New("connection refused"))

		image := unittest.PatternPNG(t, 41)
		res, err := s.coordinator.Submit(ctx, ingestion.Submission{Image: image})
		require.NoError(t, err)
		require.True(t, res.Accepted())
		assert.Nil(t, res.Anchor)
		assert.Empty(t, res.Image.TransactionReference)

		fp := features.FingerprintBytes(image)
		_, _, _, ok := s.backend.Record(fp.String())
		assert.False(t, ok)

		// still unavailable
		summary, err := s.coordinator.Backfill(ctx, admin)
		require.Error(t, err)
		assert.True(t, ledger.IsConnectionError(err))
		assert.Equal(t, ingestion.BackfillSummary{Pending: 1, Failed: 1}, summary)

		s.backend.FailDial(nil)
		summary, err = s.coordinator.Backfill(ctx, admin)
		require.NoError(t, err)
		assert.Equal(t, ingestion.BackfillSummary{Pending: 1, Anchored: 1}, summary)

		label, confidence, _, ok := s.backend.Record(fp.String())
		require.True(t, ok)
		assert.Equal(t, "Real", label)
		assert.Equal(t, uint64(81), confidence)

		stored, err := s.images.ByID(res.Image.ID)
		require.NoError(t, err)
		assert.True(t, stored.Anchored())

		// a backfilled record can be verified
		tx, err := s.coordinator.SetVerified(ctx, admin, stored.ID, true)
		require.NoError(t, err)
		assert.Equal(t, provenance.TxConfirmed, tx.Status)
		_, _, verified, _ := s.backend.Record(fp.String())
		assert.True(t, verified)
	})
}

func TestIngestion_UnconfirmedAnchor(t *testing.T) {
	ctx := context.Background()
	runWithStack(t, provenance.Classification{Label: provenance.LabelFake, Confidence: 0.64}, func(s *stack) {
		s.backend.SetMining(false)

		image := unittest.PatternPNG(t, 53)
		res, err := s.coordinator.Submit(ctx, ingestion.Submission{Image: image, Submitter: submitter})
		require.NoError(t, err)
		require.True(t, res.Accepted())
		require.NotNil(t, res.Anchor)
		assert.Equal(t, provenance.TxPending, res.Anchor.Status)
		require.Len(t, s.backend.Accepted(), 1)
		txHash := s.backend.Accepted()[0].Hash().Hex()

		fp := features.FingerprintBytes(image)
		_, _, _, ok := s.backend.Record(fp.String())
		assert.False(t, ok)

		stored, err := s.images.ByID(res.Image.ID)
		require.NoError(t, err)
		assert.Equal(t, txHash, stored.TransactionReference)
		assert.True(t, stored.AnchorPending)
		assert.False(t, stored.Anchored())

		pending, err := s.images.PendingAnchors()
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, stored.ID, pending[0].ID)

		// nothing is verified against a record that may not exist
		_, err = s.coordinator.SetVerified(ctx, admin, stored.ID, true)
		assert.True(t, ingestion.IsValidationError(err))

		s.backend.Mine()
		s.backend.SetMining(true)

		summary, err := s.coordinator.Backfill(ctx, admin)
		require.NoError(t, err)
		assert.Equal(t, ingestion.BackfillSummary{Pending: 1, Anchored: 1}, summary)
		// the transaction landed, so it was not sent again
		assert.Equal(t, 1, s.backend.Sends())

		stored, err = s.images.ByID(res.Image.ID)
		require.NoError(t, err)
		assert.Equal(t, txHash, stored.TransactionReference)
		assert.True(t, stored.Anchored())

		pending, err = s.images.PendingAnchors()
		require.NoError(t, err)
		assert.Empty(t, pending)

		tx, err := s.coordinator.SetVerified(ctx, admin, stored.ID, true)
		require.NoError(t, err)
		assert.Equal(t, provenance.TxConfirmed, tx.Status)
		_, _, verified, _ := s.backend.Record(fp.String())
		assert.True(t, verified)
	})
}
