package module

import (
	"context"

	"github.com/pixanchor/pixanchor/model/provenance"
)

// FeatureExtractor computes the perceptual feature set of raw image bytes.
// It returns (nil, nil) for decodable images without keypoints.
type FeatureExtractor interface {
	Extract(image []byte) (*provenance.FeatureSet, error)
}

// DuplicateDetector decides whether a submission duplicates an image that
// was accepted before.
type DuplicateDetector interface {
	Detect(ctx context.Context, image []byte) (*provenance.DetectionReport, error)
}

// Classifier labels an image as real or fake. Implementations never fail:
// an unavailable model yields provenance.UnknownClassification().
type Classifier interface {
	Classify(ctx context.Context, image []byte) provenance.Classification
}

// Corpus is the set of previously accepted images a submission is checked
// against.
type Corpus interface {
	// LookupFingerprint returns the id of the image with the given
	// fingerprint, if any.
	LookupFingerprint(fp provenance.Fingerprint) (provenance.ImageID, bool, error)

	// IterateFeatures calls fn for every stored image in insertion order.
	// Returning storage.ErrStopIteration from fn ends the iteration early
	// without error; any other error aborts it and is returned.
	IterateFeatures(fn func(provenance.CorpusEntry) error) error
}
