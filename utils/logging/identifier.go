package logging

import (
	"github.com/pixanchor/pixanchor/model/provenance"
)

// Fingerprint returns the short form of a fingerprint used in log lines.
func Fingerprint(fp provenance.Fingerprint) string {
	return fp.Short()
}

