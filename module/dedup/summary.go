package dedup

import (
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"
	"github.com/montanaflynn/stats"
	"github.com/rs/zerolog"

	"github.com/pixanchor/pixanchor/model/provenance"
	"github.com/pixanchor/pixanchor/module"
)

const topScores = 3

type scoredEntry struct {
	id    uint64
	score float64
}

// scanSummary collects per-scan diagnostics. It is only touched by the
// goroutine driving the scan.
type scanSummary struct {
	scanned  int
	skipped  int
	scores   []float64
	top      []scoredEntry
	failures *multierror.Error
}

func newScanSummary() *scanSummary {
	return &scanSummary{}
}

func (s *scanSummary) merge(chunk []provenance.CorpusEntry, outcome chunkOutcome) {
	for i, entry := range chunk {
		if err := outcome.errs[i]; err != nil {
			s.failures = multierror.Append(s.failures, fmt.Errorf("entry %d: %w", entry.ID, err))
			continue
		}
		score := outcome.scores[i]
		if score < 0 {
			continue
		}
		s.scanned++
		s.scores = append(s.scores, score)
		s.top = append(s.top, scoredEntry{id: uint64(entry.ID), score: score})
	}
	sort.SliceStable(s.top, func(i, j int) bool { return s.top[i].score > s.top[j].score })
	if len(s.top) > topScores {
		s.top = s.top[:topScores]
	}
}

func (s *scanSummary) report(log zerolog.Logger, detectionMetrics module.DetectionMetrics) {
	detectionMetrics.CorpusEntriesScanned(s.scanned)

	if err := s.failures.ErrorOrNil(); err != nil {
		for range s.failures.Errors {
			detectionMetrics.ComparisonFailed()
		}
		log.Warn().
			Err(err).
			Int("failed_entries", len(s.failures.Errors)).
			Msg("skipped corpus entries that could not be compared")
	}

	if len(s.scores) == 0 {
		log.Debug().Int("skipped", s.skipped).Msg("no corpus entries scored")
		return
	}

	ev := log.Debug().
		Int("scanned", s.scanned).
		Int("skipped", s.skipped)
	if mx, err := stats.Max(s.scores); err == nil {
		ev = ev.Float64("max_score", mx)
	}
	if mean, err := stats.Mean(s.scores); err == nil {
		ev = ev.Float64("mean_score", mean)
	}
	if p95, err := stats.Percentile(s.scores, 95); err == nil {
		ev = ev.Float64("p95_score", p95)
	}
	top := zerolog.Arr()
	for _, e := range s.top {
		top.Dict(zerolog.Dict().Uint64("id", e.id).Float64("score", e.score))
	}
	ev.Array("top_scores", top).Msg("corpus scan summary")
}
