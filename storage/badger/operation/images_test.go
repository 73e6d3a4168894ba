package operation

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixanchor/pixanchor/model/provenance"
	"github.com/pixanchor/pixanchor/module/features"
	"github.com/pixanchor/pixanchor/storage"
	"github.com/pixanchor/pixanchor/utils/unittest"
)

func imageFixture(id provenance.ImageID) *provenance.Image {
	rng := rand.New(rand.NewSource(int64(id)))
	return &provenance.Image{
		ID:          id,
		Fingerprint: unittest.FingerprintFixture(),
		Features:    features.ToRaw(unittest.FeatureSetFixture(rng, 8)),
		Label:       provenance.LabelReal,
		Confidence:  0.75,
		Submitter:   "0x00000000000000000000000000000000000000aa",
		UploadedAt:  time.Unix(1700000000, 0).UTC(),
	}
}

// requireImagesEqual compares images with time equality for the upload
// timestamp, decoding does not preserve the location.
func requireImagesEqual(t *testing.T, expected, actual *provenance.Image) {
	require.True(t, expected.UploadedAt.Equal(actual.UploadedAt))
	cp := *actual
	cp.UploadedAt = expected.UploadedAt
	require.Equal(t, expected, &cp)
}

func TestImageInsertRetrieve(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		img := imageFixture(1)

		err := db.Update(InsertImage(img))
		require.NoError(t, err)

		var retrieved provenance.Image
		err = db.View(RetrieveImage(img.ID, &retrieved))
		require.NoError(t, err)
		requireImagesEqual(t, img, &retrieved)

		err = db.Update(InsertImage(img))
		require.ErrorIs(t, err, storage.ErrAlreadyExists)
	})
}

func TestImageUpdateRemove(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		img := imageFixture(1)

		err := db.Update(UpdateImage(img))
		require.ErrorIs(t, err, storage.ErrNotFound)

		require.NoError(t, db.Update(InsertImage(img)))
		img.TransactionReference = "0xabc"
		require.NoError(t, db.Update(UpdateImage(img)))

		var retrieved provenance.Image
		require.NoError(t, db.View(RetrieveImage(img.ID, &retrieved)))
		assert.Equal(t, "0xabc", retrieved.TransactionReference)

		require.NoError(t, db.Update(RemoveImage(img.ID)))
		err = db.View(RetrieveImage(img.ID, &retrieved))
		require.ErrorIs(t, err, storage.ErrNotFound)
		err = db.Update(RemoveImage(img.ID))
		require.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestFingerprintIndex(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		fp := unittest.FingerprintFixture()

		var exists bool
		require.NoError(t, db.View(CheckFingerprint(fp, &exists)))
		assert.False(t, exists)

		require.NoError(t, db.Update(IndexFingerprint(fp, 7)))
		err := db.Update(IndexFingerprint(fp, 8))
		require.ErrorIs(t, err, storage.ErrAlreadyExists)

		var id provenance.ImageID
		require.NoError(t, db.View(LookupFingerprint(fp, &id)))
		assert.Equal(t, provenance.ImageID(7), id)

		require.NoError(t, db.Update(RemoveFingerprintIndex(fp)))
		err = db.View(LookupFingerprint(fp, &id))
		require.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestTraverseImages(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		// ids spanning a byte boundary, keys must sort numerically
		ids := []provenance.ImageID{300, 2, 255, 1, 256}
		for _, id := range ids {
			require.NoError(t, db.Update(InsertImage(imageFixture(id))))
		}
		// an index entry must not show up in the traversal
		require.NoError(t, db.Update(IndexFingerprint(unittest.FingerprintFixture(), 1)))

		var seen []provenance.ImageID
		err := db.View(TraverseImages(func(img *provenance.Image) error {
			seen = append(seen, img.ID)
			return nil
		}))
		require.NoError(t, err)
		assert.Equal(t, []provenance.ImageID{1, 2, 255, 256, 300}, seen)

		t.Run("stop early", func(t *testing.T) {
			seen = nil
			err := db.View(TraverseImages(func(img *provenance.Image) error {
				seen = append(seen, img.ID)
				if len(seen) == 2 {
					return storage.ErrStopIteration
				}
				return nil
			}))
			require.NoError(t, err)
			assert.Len(t, seen, 2)
		})

		t.Run("handler error aborts", func(t *testing.T) {
			sentinel := errors.New("sentinel")
			err := db.View(TraverseImages(func(*provenance.Image) error {
				return sentinel
			}))
			require.ErrorIs(t, err, sentinel)
		})
	})
}

func TestAuditEntries(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		base := time.Unix(1700000000, 0).UTC()
		var entries []*provenance.AuditEntry
		for i := 3; i > 0; i-- {
			entry := provenance.NewAuditEntry("tester", provenance.AuditUpload, provenance.ImageID(i), "")
			entry.Timestamp = base.Add(time.Duration(i) * time.Second)
			entries = append(entries, entry)
			require.NoError(t, db.Update(InsertAuditEntry(entry)))
		}

		var seen []provenance.ImageID
		err := db.View(TraverseAuditEntries(func(entry *provenance.AuditEntry) error {
			seen = append(seen, entry.ImageID)
			return nil
		}))
		require.NoError(t, err)
		assert.Equal(t, []provenance.ImageID{1, 2, 3}, seen)
	})
}
