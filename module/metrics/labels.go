package metrics

const (
	LabelResource  = "resource"
	LabelVerdict   = "verdict"
	LabelOperation = "operation"
	LabelOutcome   = "outcome"
)

const (
	ResourceImage          = "image"
	ResourceImageFeatures  = "image_features"
	ResourceFingerprintIdx = "fingerprint_index"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
