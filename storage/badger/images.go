package badger

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v2"

	"github.com/pixanchor/pixanchor/model/provenance"
	"github.com/pixanchor/pixanchor/module"
	"github.com/pixanchor/pixanchor/module/metrics"
	"github.com/pixanchor/pixanchor/storage"
	"github.com/pixanchor/pixanchor/storage/badger/operation"
)

// sequenceBandwidth is the number of ids leased from the database at once.
// Leased ids not used before shutdown are skipped.
const sequenceBandwidth = 100

// Images implements storage.Images on top of badger. Images are keyed by an
// id allocated from a badger sequence, so key order is insertion order.
type Images struct {
	db    *badger.DB
	seq   *badger.Sequence
	cache *Cache[provenance.ImageID, *provenance.Image]
}

var _ storage.Images = (*Images)(nil)
var _ module.Corpus = (*Images)(nil)

func NewImages(collector module.CacheMetrics, db *badger.DB, cacheSize uint) (*Images, error) {
	seq, err := db.GetSequence(operation.SequenceKey(), sequenceBandwidth)
	if err != nil {
		return nil, fmt.Errorf("could not open image id sequence: %w", err)
	}

	retrieve := func(id provenance.ImageID) func(*badger.Txn) (*provenance.Image, error) {
		return func(tx *badger.Txn) (*provenance.Image, error) {
			var img provenance.Image
			err := operation.RetrieveImage(id, &img)(tx)
			return &img, err
		}
	}

	cache, err := newCache(collector, metrics.ResourceImage,
		withLimit[provenance.ImageID, *provenance.Image](cacheSize),
		withRetrieve(retrieve))
	if err != nil {
		_ = seq.Release()
		return nil, err
	}

	return &Images{db: db, seq: seq, cache: cache}, nil
}

// Close returns the unused leased ids to the database.
func (i *Images) Close() error {
	return i.seq.Release()
}

func (i *Images) Store(img *provenance.Image) error {
	next, err := i.seq.Next()
	if err != nil {
		return fmt.Errorf("could not allocate image id: %w", err)
	}
	// ids start at 1, zero means no image
	stored := *img
	stored.ID = provenance.ImageID(next + 1)

	err = operation.RetryOnConflict(i.db.Update, func(tx *badger.Txn) error {
		err := operation.IndexFingerprint(stored.Fingerprint, stored.ID)(tx)
		if err != nil {
			return fmt.Errorf("could not index fingerprint %s: %w", stored.Fingerprint, err)
		}
		err = operation.InsertImage(&stored)(tx)
		if err != nil {
			return fmt.Errorf("could not insert image: %w", err)
		}
		return nil
	})
	if err != nil {
		return operation.TerminateOnFullDisk(err)
	}

	img.ID = stored.ID
	i.cache.Insert(stored.ID, &stored)
	return nil
}

func (i *Images) ByID(id provenance.ImageID) (*provenance.Image, error) {
	tx := i.db.NewTransaction(false)
	defer tx.Discard()
	img, err := i.cache.Get(id)(tx)
	if err != nil {
		return nil, err
	}
	// callers own the returned value, the cached one stays untouched
	cp := *img
	return &cp, nil
}

func (i *Images) ByFingerprint(fp provenance.Fingerprint) (*provenance.Image, error) {
	var id provenance.ImageID
	err := i.db.View(operation.LookupFingerprint(fp, &id))
	if err != nil {
		return nil, fmt.Errorf("could not look up fingerprint %s: %w", fp, err)
	}
	return i.ByID(id)
}

func (i *Images) LookupFingerprint(fp provenance.Fingerprint) (provenance.ImageID, bool, error) {
	var id provenance.ImageID
	err := i.db.View(operation.LookupFingerprint(fp, &id))
	if errors.Is(err, storage.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("could not look up fingerprint %s: %w", fp, err)
	}
	return id, true, nil
}

func (i *Images) IterateFeatures(fn func(provenance.CorpusEntry) error) error {
	return i.Iterate(func(img *provenance.Image) error {
		return fn(provenance.CorpusEntry{ID: img.ID, Features: img.Features})
	})
}

func (i *Images) Iterate(fn func(*provenance.Image) error) error {
	err := i.db.View(operation.TraverseImages(fn))
	if err != nil {
		return fmt.Errorf("could not iterate images: %w", err)
	}
	return nil
}

func (i *Images) UpdateAnchor(id provenance.ImageID, outcome provenance.TxOutcome) error {
	return i.modify(id, func(img *provenance.Image) {
		img.SetAnchor(outcome)
	})
}

func (i *Images) UpdateClassification(id provenance.ImageID, c provenance.Classification) error {
	return i.modify(id, func(img *provenance.Image) {
		img.Label = c.Label
		img.Confidence = c.Confidence
	})
}

func (i *Images) UpdateVerified(id provenance.ImageID, verified bool) error {
	return i.modify(id, func(img *provenance.Image) {
		img.Verified = verified
	})
}

func (i *Images) Remove(id provenance.ImageID) error {
	err := operation.RetryOnConflict(i.db.Update, func(tx *badger.Txn) error {
		var img provenance.Image
		err := operation.RetrieveImage(id, &img)(tx)
		if err != nil {
			return fmt.Errorf("could not retrieve image %d: %w", id, err)
		}
		err = operation.RemoveFingerprintIndex(img.Fingerprint)(tx)
		if err != nil {
			return fmt.Errorf("could not remove fingerprint index: %w", err)
		}
		return operation.RemoveImage(id)(tx)
	})
	i.cache.Remove(id)
	return err
}

func (i *Images) PendingAnchors() ([]*provenance.Image, error) {
	var pending []*provenance.Image
	err := i.Iterate(func(img *provenance.Image) error {
		if !img.Anchored() {
			cp := *img
			pending = append(pending, &cp)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pending, nil
}

// modify applies fn to the stored image in a read-modify-write transaction.
func (i *Images) modify(id provenance.ImageID, fn func(*provenance.Image)) error {
	err := operation.RetryOnConflict(i.db.Update, func(tx *badger.Txn) error {
		var img provenance.Image
		err := operation.RetrieveImage(id, &img)(tx)
		if err != nil {
			return fmt.Errorf("could not retrieve image %d: %w", id, err)
		}
		fn(&img)
		return operation.UpdateImage(&img)(tx)
	})
	i.cache.Remove(id)
	return operation.TerminateOnFullDisk(err)
}
