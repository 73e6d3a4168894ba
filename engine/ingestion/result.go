package ingestion

import (
	"github.com/pixanchor/pixanchor/model/provenance"
)

// Submission is one uploaded image.
type Submission struct {
	Image     []byte
	Submitter string // hex account address of the uploader, may be empty
	Name      string // original file name, informational only
}

// Rejection describes why a submission was refused as a duplicate.
type Rejection struct {
	Stage         provenance.Stage
	DuplicateType string // "exact" or "similar"
	Similarity    float64
	MatchedID     provenance.ImageID
}

func rejectionFor(v provenance.Verdict) *Rejection {
	return &Rejection{
		Stage:         v.Stage,
		DuplicateType: v.Kind.String(),
		Similarity:    v.Score,
		MatchedID:     v.MatchedID,
	}
}

// Result is the outcome of a submission. Exactly one of Image and Rejection
// is set.
type Result struct {
	Image     *provenance.Image
	Rejection *Rejection
	// Anchor is nil if the ledger write failed. The image is accepted
	// regardless and awaits backfill.
	Anchor *provenance.TxOutcome
}

// Accepted returns true if the submission was stored.
func (r *Result) Accepted() bool {
	return r.Image != nil
}

// BackfillSummary counts the records processed by one backfill run.
// Unconfirmed records were sent again but still not seen confirmed, they
// stay pending for the next run.
type BackfillSummary struct {
	Pending     int
	Anchored    int
	Unconfirmed int
	Failed      int
}
