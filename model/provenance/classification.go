package provenance

import (
	"fmt"
	"math"
)

// Label is the deepfake classification label.
type Label string

const (
	LabelReal    Label = "Real"
	LabelFake    Label = "Fake"
	LabelUnknown Label = "Unknown"
)

// Labels lists the label values accepted by the ledger contract.
var Labels = []Label{LabelReal, LabelFake, LabelUnknown}

// Valid returns true if l is one of the enumerated labels.
func (l Label) Valid() bool {
	for _, known := range Labels {
		if l == known {
			return true
		}
	}
	return false
}

// ParseLabel maps a string onto a label. Values outside the enumeration are
// returned together with an error so callers can decide whether to be lenient.
func ParseLabel(s string) (Label, error) {
	l := Label(s)
	if !l.Valid() {
		return l, fmt.Errorf("unexpected label %q", s)
	}
	return l, nil
}

// Classification is the result of the deepfake classifier.
type Classification struct {
	Label      Label
	Confidence float64
}

// UnknownClassification is returned by the classifier when it fails
// internally. It is a valid low-confidence result, not an error.
func UnknownClassification() Classification {
	return Classification{Label: LabelUnknown, Confidence: 0}
}

// ConfidenceScale is the fixed-point scale of the on-chain confidence.
const ConfidenceScale = 100

// ClampConfidence clamps c into [0, 1]. NaN maps to 0. The second return
// value reports whether the input was out of range.
func ClampConfidence(c float64) (float64, bool) {
	switch {
	case math.IsNaN(c):
		return 0, true
	case c < 0:
		return 0, true
	case c > 1:
		return 1, true
	default:
		return c, false
	}
}

// ConfidenceToFixedPoint converts a confidence in [0, 1] into the on-chain
// fixed-point integer (value * 100, truncated). Out of range values are
// clamped first. A tiny epsilon absorbs binary floating point error so that
// 0.29 encodes as 29 rather than 28.
func ConfidenceToFixedPoint(c float64) uint64 {
	c, _ = ClampConfidence(c)
	return uint64(math.Floor(c*ConfidenceScale + 1e-9))
}

// ConfidenceFromFixedPoint converts an on-chain confidence back to [0, 1].
func ConfidenceFromFixedPoint(v uint64) float64 {
	return float64(v) / ConfidenceScale
}
