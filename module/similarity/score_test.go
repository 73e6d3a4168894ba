package similarity_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/pixanchor/pixanchor/model/provenance"
	"github.com/pixanchor/pixanchor/module/features"
	"github.com/pixanchor/pixanchor/module/similarity"
	"github.com/pixanchor/pixanchor/utils/unittest"
)

func descriptorGen() *rapid.Generator[provenance.Descriptor] {
	return rapid.Custom(func(t *rapid.T) provenance.Descriptor {
		var d provenance.Descriptor
		copy(d[:], rapid.SliceOfN(rapid.Byte(), provenance.DescriptorSize, provenance.DescriptorSize).Draw(t, "bytes"))
		return d
	})
}

// distinct descriptors: duplicated descriptors within one set collapse into
// a single cross-checked match
func featureSetGen(minLen, maxLen int) *rapid.Generator[*provenance.FeatureSet] {
	return rapid.Custom(func(t *rapid.T) *provenance.FeatureSet {
		descriptors := rapid.SliceOfNDistinct(descriptorGen(), minLen, maxLen,
			func(d provenance.Descriptor) provenance.Descriptor { return d }).Draw(t, "descriptors")
		return &provenance.FeatureSet{Descriptors: descriptors}
	})
}

func TestScore_SelfMatch(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		fs := featureSetGen(1, 64).Draw(t, "fs")
		assert.InDelta(t, 1.0, similarity.Score(fs, fs), 1e-9)
	})
}

func TestScore_Symmetric(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := featureSetGen(1, 40).Draw(t, "a")
		b := featureSetGen(1, 40).Draw(t, "b")
		assert.Equal(t, similarity.Score(a, b), similarity.Score(b, a))
	})
}

func TestScore_Range(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := featureSetGen(0, 40).Draw(t, "a")
		b := featureSetGen(0, 40).Draw(t, "b")
		s := similarity.Score(a, b)
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 1.0)
	})
}

func TestScore_Degenerate(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	fs := unittest.FeatureSetFixture(rng, 10)

	assert.Equal(t, 0.0, similarity.Score(nil, fs))
	assert.Equal(t, 0.0, similarity.Score(fs, nil))
	assert.Equal(t, 0.0, similarity.Score(&provenance.FeatureSet{}, fs))
	assert.Equal(t, 0.0, similarity.Score(nil, nil))
}

func TestScore_SmallerSetNormalizes(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	large := unittest.FeatureSetFixture(rng, 100)
	small := &provenance.FeatureSet{Descriptors: large.Descriptors[:20]}

	assert.InDelta(t, 1.0, similarity.Score(small, large), 1e-9)
	assert.InDelta(t, 1.0, similarity.Score(large, small), 1e-9)
}

func TestScore_PartialOverlap(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	a := unittest.FeatureSetFixture(rng, 100)
	// every 4th descriptor is replaced by an unrelated one
	b := unittest.PerturbedFeatureSet(rng, a, 4)

	assert.InDelta(t, 0.75, similarity.Score(a, b), 1e-9)
	assert.InDelta(t, 0.0, similarity.Score(a, unittest.FeatureSetFixture(rng, 100)), 0.05)
}

func TestScore_DistanceThreshold(t *testing.T) {
	var a, near, far provenance.Descriptor
	// flip 49 and 50 bits respectively
	for i := 0; i < 49; i++ {
		near[i/8] |= 1 << uint(i%8)
	}
	far = near
	far[49/8] |= 1 << uint(49%8)

	require.Equal(t, 49, similarity.Hamming(&a, &near))
	require.Equal(t, 50, similarity.Hamming(&a, &far))

	query := &provenance.FeatureSet{Descriptors: []provenance.Descriptor{a}}
	assert.Equal(t, 1.0, similarity.Score(query, &provenance.FeatureSet{Descriptors: []provenance.Descriptor{near}}))
	assert.Equal(t, 0.0, similarity.Score(query, &provenance.FeatureSet{Descriptors: []provenance.Descriptor{far}}))
}

func TestScore_CrossCheck(t *testing.T) {
	var a0, a1, b0 provenance.Descriptor
	a1[0] = 0x01 // one bit away from b0, a0 is two bits away
	a0[0] = 0x06
	b0[0] = 0x00

	a := &provenance.FeatureSet{Descriptors: []provenance.Descriptor{a0, a1}}
	b := &provenance.FeatureSet{Descriptors: []provenance.Descriptor{b0}}

	// both a0 and a1 are close to b0, only the mutual pair counts
	assert.Equal(t, 1.0, similarity.Score(a, b))

	c := &provenance.FeatureSet{Descriptors: []provenance.Descriptor{b0, a0}}
	// a0 pairs with c[1] exactly, a1 pairs with c[0]
	assert.Equal(t, 1.0, similarity.Score(a, c))
}

func TestScoreRaw_Malformed(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	good := features.ToRaw(unittest.FeatureSetFixture(rng, 5))
	require.Equal(t, 1.0, similarity.ScoreRaw(good, good))

	ragged := features.ToRaw(unittest.FeatureSetFixture(rng, 5))
	ragged.Descriptors[3] = ragged.Descriptors[3][:7]

	outOfRange := features.ToRaw(unittest.FeatureSetFixture(rng, 5))
	outOfRange.Descriptors[0][0] = 1000

	for _, malformed := range []*provenance.RawFeatureSet{nil, ragged, outOfRange, {}} {
		assert.Equal(t, 0.0, similarity.ScoreRaw(good, malformed))
		assert.Equal(t, 0.0, similarity.ScoreRaw(malformed, good))
	}
}

func TestScoreJSON_Malformed(t *testing.T) {
	docs := [][]byte{
		nil,
		[]byte(`{}`),
		[]byte(`{"descriptors": [[1, 2, 3]]}`),
		[]byte(`{"descriptors": [["a"]]}`),
		[]byte(`{"descriptors": 42}`),
		[]byte(`[`),
	}
	for _, a := range docs {
		for _, b := range docs {
			assert.Equal(t, 0.0, similarity.ScoreJSON(a, b))
		}
	}
}
