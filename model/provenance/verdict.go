package provenance

import "fmt"

// ImageID is the local record id of an accepted image. IDs are assigned in
// insertion order.
type ImageID uint64

// Stage names the detection layer that produced a verdict.
type Stage string

const (
	StageHash       Stage = "hash"
	StagePerceptual Stage = "perceptual"
)

// VerdictKind enumerates the outcomes of a duplicate check.
type VerdictKind int

const (
	NoMatch VerdictKind = iota
	ExactDuplicate
	NearDuplicate
)

func (k VerdictKind) String() string {
	switch k {
	case NoMatch:
		return "no_match"
	case ExactDuplicate:
		return "exact"
	case NearDuplicate:
		return "similar"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Verdict is the outcome of a duplicate check for one submission. It is
// computed per submission and never persisted.
type Verdict struct {
	Kind      VerdictKind
	MatchedID ImageID
	Score     float64
	Stage     Stage
}

// NoMatchVerdict returns the verdict for a submission without duplicates.
func NoMatchVerdict() Verdict {
	return Verdict{Kind: NoMatch}
}

// ExactDuplicateVerdict returns the verdict for a fingerprint hit. The
// similarity of an exact duplicate is defined as 1.
func ExactDuplicateVerdict(id ImageID) Verdict {
	return Verdict{Kind: ExactDuplicate, MatchedID: id, Score: 1.0, Stage: StageHash}
}

// NearDuplicateVerdict returns the verdict for a perceptual match.
func NearDuplicateVerdict(id ImageID, score float64) Verdict {
	return Verdict{Kind: NearDuplicate, MatchedID: id, Score: score, Stage: StagePerceptual}
}

// IsDuplicate returns true for exact and near duplicates.
func (v Verdict) IsDuplicate() bool {
	return v.Kind == ExactDuplicate || v.Kind == NearDuplicate
}

func (v Verdict) String() string {
	if !v.IsDuplicate() {
		return v.Kind.String()
	}
	return fmt.Sprintf("%s(id=%d, score=%.4f, stage=%s)", v.Kind, v.MatchedID, v.Score, v.Stage)
}
