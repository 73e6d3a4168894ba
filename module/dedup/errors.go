package dedup

import (
	"errors"
	"fmt"

	"github.com/pixanchor/pixanchor/model/provenance"
)

// DuplicateFoundError expresses a duplicate verdict as an error, for callers
// that prefer to reject submissions through error flow.
type DuplicateFoundError struct {
	verdict provenance.Verdict
}

// AsError returns a DuplicateFoundError for duplicate verdicts and nil
// otherwise.
func AsError(v provenance.Verdict) error {
	if !v.IsDuplicate() {
		return nil
	}
	return DuplicateFoundError{verdict: v}
}

func (e DuplicateFoundError) Error() string {
	return fmt.Sprintf("image duplicates record %d (%s match at %s stage, similarity %.2f)",
		e.verdict.MatchedID, e.verdict.Kind, e.verdict.Stage, e.verdict.Score)
}

func (e DuplicateFoundError) Verdict() provenance.Verdict {
	return e.verdict
}

// IsDuplicateFoundError returns true if err is or wraps a DuplicateFoundError.
func IsDuplicateFoundError(err error) bool {
	var dupErr DuplicateFoundError
	return errors.As(err, &dupErr)
}
