package features_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixanchor/pixanchor/model/provenance"
	"github.com/pixanchor/pixanchor/module/features"
	"github.com/pixanchor/pixanchor/utils/unittest"
)

func TestParse(t *testing.T) {
	rng := rand.New(rand.NewSource(11))

	t.Run("serialized form parses back", func(t *testing.T) {
		fs := unittest.FeatureSetFixture(rng, 12)
		parsed, err := features.Parse(features.ToRaw(fs))
		require.NoError(t, err)
		assert.Equal(t, fs, parsed)
	})

	t.Run("descriptors without keypoints", func(t *testing.T) {
		raw := features.ToRaw(unittest.FeatureSetFixture(rng, 3))
		raw.Keypoints = nil
		parsed, err := features.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, 3, parsed.Len())
		assert.Nil(t, parsed.Keypoints)
	})

	t.Run("empty set", func(t *testing.T) {
		parsed, err := features.Parse(&provenance.RawFeatureSet{})
		require.NoError(t, err)
		assert.True(t, parsed.Empty())
	})

	invalid := map[string]func(raw *provenance.RawFeatureSet){
		"short descriptor row":   func(raw *provenance.RawFeatureSet) { raw.Descriptors[1] = raw.Descriptors[1][:31] },
		"long descriptor row":    func(raw *provenance.RawFeatureSet) { raw.Descriptors[0] = append(raw.Descriptors[0], 0) },
		"byte above range":       func(raw *provenance.RawFeatureSet) { raw.Descriptors[2][5] = 256 },
		"negative byte":          func(raw *provenance.RawFeatureSet) { raw.Descriptors[0][0] = -1 },
		"keypoint count":         func(raw *provenance.RawFeatureSet) { raw.Keypoints = raw.Keypoints[:2] },
		"keypoint without point": func(raw *provenance.RawFeatureSet) { raw.Keypoints[0].Pt = []float64{1} },
	}
	for name, corrupt := range invalid {
		corrupt := corrupt
		t.Run(name, func(t *testing.T) {
			raw := features.ToRaw(unittest.FeatureSetFixture(rng, 4))
			corrupt(raw)
			_, err := features.Parse(raw)
			require.Error(t, err)
			assert.True(t, features.IsExtractionError(err))
		})
	}

	t.Run("nil", func(t *testing.T) {
		_, err := features.Parse(nil)
		assert.True(t, features.IsExtractionError(err))
	})
}

func TestParseJSON(t *testing.T) {
	row := make([]byte, 0, 128)
	row = append(row, '[')
	for i := 0; i < provenance.DescriptorSize; i++ {
		if i > 0 {
			row = append(row, ',')
		}
		row = append(row, '7')
	}
	row = append(row, ']')

	doc := `{"keypoints":[{"pt":[10.5,20],"size":31,"angle":90,"response":0.001,"octave":1,"class_id":-1}],"descriptors":[` + string(row) + `]}`
	fs, err := features.ParseJSON([]byte(doc))
	require.NoError(t, err)
	require.Equal(t, 1, fs.Len())
	assert.Equal(t, 10.5, fs.Keypoints[0].X)
	assert.Equal(t, byte(7), fs.Descriptors[0][31])

	_, err = features.ParseJSON([]byte(`{"descriptors": "nope"}`))
	assert.True(t, features.IsExtractionError(err))

	_, err = features.ParseJSON([]byte(`not json`))
	assert.True(t, features.IsExtractionError(err))
}
