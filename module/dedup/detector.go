// Package dedup decides whether a submitted image duplicates an accepted
// one: first by content fingerprint, then by perceptual similarity against
// the whole corpus.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gammazero/workerpool"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/pixanchor/pixanchor/model/provenance"
	"github.com/pixanchor/pixanchor/module"
	"github.com/pixanchor/pixanchor/module/features"
	"github.com/pixanchor/pixanchor/module/metrics"
	"github.com/pixanchor/pixanchor/module/similarity"
	"github.com/pixanchor/pixanchor/storage"
	"github.com/pixanchor/pixanchor/utils/logging"
)

const (
	// DefaultThreshold is the similarity at or above which a submission is a
	// near duplicate.
	DefaultThreshold = 0.6
	DefaultChunkSize = 256
	DefaultCacheSize = 10_000
)

// CompareFunc scores two feature sets in [0, 1].
type CompareFunc func(a, b *provenance.FeatureSet) float64

type Config struct {
	Threshold float64
	// Workers scoring a chunk of the corpus concurrently. With one worker the
	// scan is sequential and stops at the first match.
	Workers   int
	ChunkSize int
	// CacheSize bounds the number of parsed corpus feature sets kept in
	// memory, 0 disables the cache.
	CacheSize int
}

func DefaultConfig() Config {
	return Config{
		Threshold: DefaultThreshold,
		Workers:   1,
		ChunkSize: DefaultChunkSize,
		CacheSize: DefaultCacheSize,
	}
}

type Option func(*Detector)

// WithComparator replaces the similarity function.
func WithComparator(compare CompareFunc) Option {
	return func(d *Detector) {
		d.compare = compare
	}
}

// Detector implements module.DuplicateDetector.
type Detector struct {
	log          zerolog.Logger
	metrics      module.DetectionMetrics
	cacheMetrics module.CacheMetrics
	corpus       module.Corpus
	extractor    module.FeatureExtractor
	compare      CompareFunc
	cache        *lru.Cache[provenance.ImageID, *provenance.FeatureSet]
	pool         *workerpool.WorkerPool
	cfg          Config
}

var _ module.DuplicateDetector = (*Detector)(nil)

func NewDetector(
	log zerolog.Logger,
	detectionMetrics module.DetectionMetrics,
	cacheMetrics module.CacheMetrics,
	corpus module.Corpus,
	extractor module.FeatureExtractor,
	cfg Config,
	opts ...Option,
) (*Detector, error) {
	if cfg.Threshold <= 0 || cfg.Threshold > 1 {
		return nil, fmt.Errorf("similarity threshold must be in (0, 1], got %v", cfg.Threshold)
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}

	d := &Detector{
		log:          log.With().Str("component", "duplicate_detector").Logger(),
		metrics:      detectionMetrics,
		cacheMetrics: cacheMetrics,
		corpus:       corpus,
		extractor:    extractor,
		compare:      similarity.Score,
		cfg:          cfg,
	}
	for _, apply := range opts {
		apply(d)
	}

	if cfg.CacheSize > 0 {
		cache, err := lru.New[provenance.ImageID, *provenance.FeatureSet](cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("could not create feature cache: %w", err)
		}
		d.cache = cache
	}
	if cfg.Workers > 1 {
		d.pool = workerpool.New(cfg.Workers)
	}

	return d, nil
}

// Stop releases the scan workers. The detector must not be used afterwards.
func (d *Detector) Stop() {
	if d.pool != nil {
		d.pool.StopWait()
	}
}

// Detect checks the image against the corpus. An exact fingerprint match
// ends the check before any feature extraction. Otherwise the image's
// features are compared against every corpus entry with stored features,
// and the entry earliest in scan order that reaches the threshold wins.
//
// Undecodable images fail with a wrapped features.ExtractionError. Images
// without keypoints cannot be compared and yield a NoMatch verdict. Failures
// to read the corpus are returned; failures to compare individual entries
// are logged and the entries skipped.
func (d *Detector) Detect(ctx context.Context, image []byte) (*provenance.DetectionReport, error) {
	start := time.Now()
	report := &provenance.DetectionReport{
		Fingerprint: features.FingerprintBytes(image),
		Verdict:     provenance.NoMatchVerdict(),
	}
	log := d.log.With().Str("fingerprint", logging.Fingerprint(report.Fingerprint)).Logger()

	id, found, err := d.corpus.LookupFingerprint(report.Fingerprint)
	if err != nil {
		return nil, fmt.Errorf("could not look up fingerprint: %w", err)
	}
	if found {
		report.Verdict = provenance.ExactDuplicateVerdict(id)
		log.Info().Uint64("matched_id", uint64(id)).Msg("exact duplicate found")
		d.metrics.DuplicateCheckCompleted(report.Verdict.Kind.String(), time.Since(start))
		return report, nil
	}

	query, err := d.extractor.Extract(image)
	if err != nil {
		return nil, fmt.Errorf("could not extract features: %w", err)
	}
	report.Features = query
	if query.Empty() {
		log.Info().Msg("image has no keypoints, skipping perceptual check")
		d.metrics.DuplicateCheckCompleted(report.Verdict.Kind.String(), time.Since(start))
		return report, nil
	}

	report.Verdict, err = d.scan(ctx, log, query)
	if err != nil {
		return nil, fmt.Errorf("could not scan corpus: %w", err)
	}

	log.Info().
		Str("verdict", report.Verdict.String()).
		Dur("duration", time.Since(start)).
		Msg("duplicate check completed")
	d.metrics.DuplicateCheckCompleted(report.Verdict.Kind.String(), time.Since(start))
	return report, nil
}

// scan streams the corpus in chunks and scores each chunk, stopping after
// the first chunk that holds a match.
func (d *Detector) scan(ctx context.Context, log zerolog.Logger, query *provenance.FeatureSet) (provenance.Verdict, error) {
	summary := newScanSummary()
	chunk := make([]provenance.CorpusEntry, 0, d.cfg.ChunkSize)
	var verdict *provenance.Verdict

	flush := func() error {
		outcome := d.scoreChunk(query, chunk)
		summary.merge(chunk, outcome)
		chunk = chunk[:0]
		if outcome.matched >= 0 {
			verdict = &outcome.verdict
			return storage.ErrStopIteration
		}
		return ctx.Err()
	}

	err := d.corpus.IterateFeatures(func(entry provenance.CorpusEntry) error {
		if entry.Features == nil {
			summary.skipped++
			return nil
		}
		chunk = append(chunk, entry)
		if len(chunk) < d.cfg.ChunkSize {
			return nil
		}
		return flush()
	})
	if err != nil && !errors.Is(err, storage.ErrStopIteration) {
		return provenance.Verdict{}, err
	}
	if verdict == nil && len(chunk) > 0 {
		err = flush()
		if err != nil && !errors.Is(err, storage.ErrStopIteration) {
			return provenance.Verdict{}, err
		}
	}

	summary.report(log, d.metrics)
	if verdict == nil {
		return provenance.NoMatchVerdict(), nil
	}
	return *verdict, nil
}

// chunkOutcome holds per-entry results in scan order. scores[i] is negative
// for entries that were not scored.
type chunkOutcome struct {
	scores  []float64
	errs    []error
	matched int
	verdict provenance.Verdict
}

const notScored = -1.0

func (d *Detector) scoreChunk(query *provenance.FeatureSet, chunk []provenance.CorpusEntry) chunkOutcome {
	outcome := chunkOutcome{
		scores:  make([]float64, len(chunk)),
		errs:    make([]error, len(chunk)),
		matched: -1,
	}
	for i := range outcome.scores {
		outcome.scores[i] = notScored
	}

	if d.pool == nil {
		for i, entry := range chunk {
			outcome.scores[i], outcome.errs[i] = d.score(query, entry)
			if outcome.errs[i] == nil && outcome.scores[i] >= d.cfg.Threshold {
				outcome.matched = i
				break
			}
		}
	} else {
		outcome.matched = d.scoreParallel(query, chunk, outcome.scores, outcome.errs)
	}

	if outcome.matched >= 0 {
		outcome.verdict = provenance.NearDuplicateVerdict(chunk[outcome.matched].ID, outcome.scores[outcome.matched])
	}
	return outcome
}

// score compares the query against one corpus entry. Panics raised while
// comparing a malformed entry are converted into errors so that a single
// entry cannot take down the scan.
func (d *Detector) score(query *provenance.FeatureSet, entry provenance.CorpusEntry) (score float64, err error) {
	candidate, err := d.parsed(entry)
	if err != nil {
		return notScored, err
	}

	defer func() {
		if r := recover(); r != nil {
			score, err = notScored, fmt.Errorf("comparison panicked: %v", r)
		}
	}()
	return d.compare(query, candidate), nil
}

func (d *Detector) parsed(entry provenance.CorpusEntry) (*provenance.FeatureSet, error) {
	if d.cache != nil {
		if fs, ok := d.cache.Get(entry.ID); ok {
			d.cacheMetrics.CacheHit(metrics.ResourceImageFeatures)
			return fs, nil
		}
		d.cacheMetrics.CacheMiss(metrics.ResourceImageFeatures)
	}

	fs, err := features.Parse(entry.Features)
	if err != nil {
		return nil, err
	}

	if d.cache != nil {
		d.cache.Add(entry.ID, fs)
		d.cacheMetrics.CacheEntries(metrics.ResourceImageFeatures, uint(d.cache.Len()))
	}
	return fs, nil
}
