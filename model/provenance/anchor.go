package provenance

import "fmt"

// TxStatus is the state a ledger transaction was last observed in.
type TxStatus int

const (
	// TxConfirmed transactions were mined and succeeded.
	TxConfirmed TxStatus = iota
	// TxPending transactions were broadcast, but no receipt was observed
	// within the confirmation timeout. They may still be mined later.
	TxPending
	// TxAlreadyAnchored means no transaction was sent because the ledger
	// already held a record for the fingerprint.
	TxAlreadyAnchored
)

func (s TxStatus) String() string {
	switch s {
	case TxConfirmed:
		return "confirmed"
	case TxPending:
		return "pending"
	case TxAlreadyAnchored:
		return "already_anchored"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// TxOutcome is the successful outcome of a ledger mutation.
type TxOutcome struct {
	Status TxStatus
	TxHash string // 0x-prefixed hex, empty for TxAlreadyAnchored
}

// Reference returns the transaction reference recorded in the off-chain
// mirror: the transaction hash, or AlreadyAnchoredReference if the ledger
// already held the record.
func (o TxOutcome) Reference() string {
	if o.Status == TxAlreadyAnchored {
		return AlreadyAnchoredReference
	}
	return o.TxHash
}

func (o TxOutcome) String() string {
	if o.TxHash == "" {
		return o.Status.String()
	}
	return fmt.Sprintf("%s(%s)", o.Status, o.TxHash)
}

// DetectionReport is the result of a duplicate check. Fingerprint and
// Features are returned so that an accepted submission does not need to be
// hashed or analyzed a second time. Features is nil when the check stopped
// at the fingerprint stage or the image yielded no keypoints.
type DetectionReport struct {
	Fingerprint Fingerprint
	Features    *FeatureSet
	Verdict     Verdict
}
