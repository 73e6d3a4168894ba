// Package classifier provides the deepfake classifiers used by ingestion.
package classifier

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/pixanchor/pixanchor/model/provenance"
	"github.com/pixanchor/pixanchor/module"
)

// Static returns the same classification for every image. It is meant for
// development setups and tests.
type Static struct {
	result provenance.Classification
}

var _ module.Classifier = (*Static)(nil)

func NewStatic(result provenance.Classification) *Static {
	return &Static{result: result}
}

func (s *Static) Classify(context.Context, []byte) provenance.Classification {
	return s.result
}

// Unavailable is used when no model is configured.
type Unavailable struct {
	log zerolog.Logger
}

var _ module.Classifier = (*Unavailable)(nil)

func NewUnavailable(log zerolog.Logger) *Unavailable {
	return &Unavailable{log: log.With().Str("component", "classifier").Logger()}
}

func (u *Unavailable) Classify(context.Context, []byte) provenance.Classification {
	u.log.Warn().Msg("deepfake model not loaded")
	return provenance.UnknownClassification()
}
