package unittest

import (
	"math/rand"

	"github.com/pixanchor/pixanchor/model/provenance"
)

// RandomDescriptor returns a uniformly random descriptor.
func RandomDescriptor(rng *rand.Rand) provenance.Descriptor {
	var d provenance.Descriptor
	_, _ = rng.Read(d[:])
	return d
}

// FeatureSetFixture returns a feature set of n random descriptors with
// matching keypoints.
func FeatureSetFixture(rng *rand.Rand, n int) *provenance.FeatureSet {
	fs := &provenance.FeatureSet{
		Keypoints:   make([]provenance.Keypoint, n),
		Descriptors: make([]provenance.Descriptor, n),
	}
	for i := 0; i < n; i++ {
		fs.Keypoints[i] = provenance.Keypoint{
			X:        rng.Float64() * 320,
			Y:        rng.Float64() * 240,
			Size:     31,
			Angle:    rng.Float64() * 360,
			Response: rng.Float64(),
			ClassID:  -1,
		}
		fs.Descriptors[i] = RandomDescriptor(rng)
	}
	return fs
}

// PerturbedFeatureSet copies fs and replaces the descriptors at every index
// i with i%every == 0 by random ones. every <= 0 returns a plain copy.
func PerturbedFeatureSet(rng *rand.Rand, fs *provenance.FeatureSet, every int) *provenance.FeatureSet {
	out := &provenance.FeatureSet{
		Keypoints:   append([]provenance.Keypoint(nil), fs.Keypoints...),
		Descriptors: append([]provenance.Descriptor(nil), fs.Descriptors...),
	}
	if every <= 0 {
		return out
	}
	for i := range out.Descriptors {
		if i%every == 0 {
			out.Descriptors[i] = RandomDescriptor(rng)
		}
	}
	return out
}

// FingerprintFixture returns a random, well formed fingerprint.
func FingerprintFixture() provenance.Fingerprint {
	const hexDigits = "0123456789abcdef"
	b := make([]byte, provenance.FingerprintLength)
	for i := range b {
		b[i] = hexDigits[rand.Intn(len(hexDigits))]
	}
	return provenance.Fingerprint(b)
}
