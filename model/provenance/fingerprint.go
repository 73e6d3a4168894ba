package provenance

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// FingerprintLength is the length of the hex encoded SHA-256 content digest.
const FingerprintLength = 64

// Fingerprint is the lowercase hex encoded SHA-256 digest of the raw image
// bytes. It is the unique key for exact-duplicate detection and the key of
// the on-chain provenance record.
type Fingerprint string

// ParseFingerprint validates the given string as a fingerprint. Upper case
// hex digits are accepted and normalized.
func ParseFingerprint(s string) (Fingerprint, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != FingerprintLength {
		return "", fmt.Errorf("invalid fingerprint length %d (expected %d)", len(s), FingerprintLength)
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", fmt.Errorf("invalid fingerprint encoding: %w", err)
	}
	return Fingerprint(s), nil
}

// String returns the full hex representation.
func (f Fingerprint) String() string {
	return string(f)
}

// Short returns a prefix of the fingerprint suitable for logs.
func (f Fingerprint) Short() string {
	if len(f) <= 10 {
		return string(f)
	}
	return string(f[:10])
}
