package operation

import (
	"github.com/dgraph-io/badger/v2"

	"github.com/pixanchor/pixanchor/model/provenance"
)

func InsertImage(img *provenance.Image) func(*badger.Txn) error {
	return insert(makePrefix(codeImage, img.ID), img)
}

func UpdateImage(img *provenance.Image) func(*badger.Txn) error {
	return update(makePrefix(codeImage, img.ID), img)
}

func RetrieveImage(id provenance.ImageID, img *provenance.Image) func(*badger.Txn) error {
	return retrieve(makePrefix(codeImage, id), img)
}

func RemoveImage(id provenance.ImageID) func(*badger.Txn) error {
	return remove(makePrefix(codeImage, id))
}

// IndexFingerprint maps a fingerprint to the id of its image. It fails with
// storage.ErrAlreadyExists if the fingerprint is indexed already.
func IndexFingerprint(fp provenance.Fingerprint, id provenance.ImageID) func(*badger.Txn) error {
	return insert(makePrefix(codeFingerprintIndex, fp), id)
}

func LookupFingerprint(fp provenance.Fingerprint, id *provenance.ImageID) func(*badger.Txn) error {
	return retrieve(makePrefix(codeFingerprintIndex, fp), id)
}

func CheckFingerprint(fp provenance.Fingerprint, exists *bool) func(*badger.Txn) error {
	return check(makePrefix(codeFingerprintIndex, fp), exists)
}

func RemoveFingerprintIndex(fp provenance.Fingerprint) func(*badger.Txn) error {
	return remove(makePrefix(codeFingerprintIndex, fp))
}

// TraverseImages calls fn for every image in id order, which is the order
// they were inserted in. fn may return storage.ErrStopIteration to end the
// traversal early.
func TraverseImages(fn func(*provenance.Image) error) func(*badger.Txn) error {
	return traverse(makePrefix(codeImage), func() (checkFunc, createFunc, handleFunc) {
		check := func(key []byte) bool {
			return true
		}
		var img provenance.Image
		create := func() interface{} {
			return &img
		}
		handle := func() error {
			return fn(&img)
		}
		return check, create, handle
	})
}
