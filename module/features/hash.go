package features

import (
	"crypto/sha256"
	"encoding/hex"
	"io"

	"github.com/pixanchor/pixanchor/model/provenance"
)

// Fingerprint computes the content fingerprint of all bytes readable from r.
func Fingerprint(r io.Reader) (provenance.Fingerprint, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", NewHashingErrorf("could not read image data: %w", err)
	}
	return provenance.Fingerprint(hex.EncodeToString(h.Sum(nil))), nil
}

// FingerprintBytes computes the content fingerprint of an in-memory image.
func FingerprintBytes(data []byte) provenance.Fingerprint {
	sum := sha256.Sum256(data)
	return provenance.Fingerprint(hex.EncodeToString(sum[:]))
}
