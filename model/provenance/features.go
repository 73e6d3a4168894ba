package provenance

// DescriptorSize is the number of bytes of a binary keypoint descriptor
// (256 bit BRIEF tests).
const DescriptorSize = 32

// Descriptor is a binary keypoint descriptor compared under Hamming distance.
type Descriptor [DescriptorSize]byte

// Keypoint holds the metadata of a detected keypoint. X and Y are expressed
// in the coordinates of the full resolution (pyramid level 0) image.
type Keypoint struct {
	X        float64
	Y        float64
	Size     float64
	Angle    float64 // degrees in [0, 360)
	Response float64
	Octave   int
	ClassID  int
}

// FeatureSet is the perceptual feature set of an image: an ordered list of
// keypoints and their descriptors. The i-th descriptor belongs to the i-th
// keypoint. A FeatureSet must not be mutated once built.
type FeatureSet struct {
	Keypoints   []Keypoint
	Descriptors []Descriptor
}

// Len returns the number of descriptors in the set. It is safe to call on a
// nil set.
func (fs *FeatureSet) Len() int {
	if fs == nil {
		return 0
	}
	return len(fs.Descriptors)
}

// Empty returns true if the set carries no descriptors.
func (fs *FeatureSet) Empty() bool {
	return fs.Len() == 0
}

// RawKeypoint is the serialized form of a keypoint.
type RawKeypoint struct {
	Pt       []float64 `json:"pt" msgpack:"pt"`
	Size     float64   `json:"size" msgpack:"size"`
	Angle    float64   `json:"angle" msgpack:"angle"`
	Response float64   `json:"response" msgpack:"response"`
	Octave   int       `json:"octave" msgpack:"octave"`
	ClassID  int       `json:"class_id" msgpack:"class_id"`
}

// RawFeatureSet is the serialized form of a feature set, as persisted next
// to an image record. Descriptors are kept as integer rows so that any
// syntactically valid document can be represented, including malformed
// ones; converting into a FeatureSet is a separate, validating parse step.
type RawFeatureSet struct {
	Keypoints   []RawKeypoint `json:"keypoints" msgpack:"keypoints"`
	Descriptors [][]int       `json:"descriptors" msgpack:"descriptors"`
}
