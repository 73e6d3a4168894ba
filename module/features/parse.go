package features

import (
	"encoding/json"

	"github.com/pixanchor/pixanchor/model/provenance"
)

// Parse converts a serialized feature set into its validated in-memory
// form. Descriptor rows must hold exactly DescriptorSize byte values.
// Keypoints may be omitted entirely, but if present there must be one per
// descriptor.
func Parse(raw *provenance.RawFeatureSet) (*provenance.FeatureSet, error) {
	if raw == nil {
		return nil, NewExtractionErrorf("missing feature set")
	}
	if len(raw.Keypoints) != 0 && len(raw.Keypoints) != len(raw.Descriptors) {
		return nil, NewExtractionErrorf("feature set has %d keypoints but %d descriptors",
			len(raw.Keypoints), len(raw.Descriptors))
	}

	fs := &provenance.FeatureSet{
		Descriptors: make([]provenance.Descriptor, len(raw.Descriptors)),
	}
	for i, row := range raw.Descriptors {
		if len(row) != provenance.DescriptorSize {
			return nil, NewExtractionErrorf("descriptor %d has %d bytes, expected %d", i, len(row), provenance.DescriptorSize)
		}
		for j, v := range row {
			if v < 0 || v > 255 {
				return nil, NewExtractionErrorf("descriptor %d byte %d out of range: %d", i, j, v)
			}
			fs.Descriptors[i][j] = byte(v)
		}
	}

	if len(raw.Keypoints) > 0 {
		fs.Keypoints = make([]provenance.Keypoint, len(raw.Keypoints))
		for i, kp := range raw.Keypoints {
			if len(kp.Pt) != 2 {
				return nil, NewExtractionErrorf("keypoint %d has %d coordinates", i, len(kp.Pt))
			}
			fs.Keypoints[i] = provenance.Keypoint{
				X:        kp.Pt[0],
				Y:        kp.Pt[1],
				Size:     kp.Size,
				Angle:    kp.Angle,
				Response: kp.Response,
				Octave:   kp.Octave,
				ClassID:  kp.ClassID,
			}
		}
	}

	return fs, nil
}

// ParseJSON decodes and validates a JSON serialized feature set.
func ParseJSON(data []byte) (*provenance.FeatureSet, error) {
	var raw provenance.RawFeatureSet
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, NewExtractionErrorf("could not decode feature set: %w", err)
	}
	return Parse(&raw)
}

// ToRaw converts a feature set into its serialized form. A nil set yields
// nil.
func ToRaw(fs *provenance.FeatureSet) *provenance.RawFeatureSet {
	if fs == nil {
		return nil
	}
	raw := &provenance.RawFeatureSet{
		Keypoints:   make([]provenance.RawKeypoint, 0, len(fs.Keypoints)),
		Descriptors: make([][]int, 0, len(fs.Descriptors)),
	}
	for _, kp := range fs.Keypoints {
		raw.Keypoints = append(raw.Keypoints, provenance.RawKeypoint{
			Pt:       []float64{kp.X, kp.Y},
			Size:     kp.Size,
			Angle:    kp.Angle,
			Response: kp.Response,
			Octave:   kp.Octave,
			ClassID:  kp.ClassID,
		})
	}
	for _, d := range fs.Descriptors {
		row := make([]int, provenance.DescriptorSize)
		for j, b := range d {
			row[j] = int(b)
		}
		raw.Descriptors = append(raw.Descriptors, row)
	}
	return raw
}
