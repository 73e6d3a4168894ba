package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pixanchor/pixanchor/module"
)

type DetectionCollector struct {
	checkDuration     *prometheus.HistogramVec
	entriesScanned    prometheus.Counter
	comparisonFailure prometheus.Counter
}

var _ module.DetectionMetrics = (*DetectionCollector)(nil)

func NewDetectionCollector(registerer prometheus.Registerer) *DetectionCollector {
	r := NewRegisterer(registerer)
	return &DetectionCollector{
		checkDuration: r.RegisterNewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespacePixanchor,
			Subsystem: subsystemDetection,
			Name:      "check_duration_seconds",
			Help:      "duration of duplicate checks, by verdict",
			Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{LabelVerdict}),
		entriesScanned: r.RegisterNewCounter(prometheus.CounterOpts{
			Namespace: namespacePixanchor,
			Subsystem: subsystemDetection,
			Name:      "corpus_entries_scanned_total",
			Help:      "number of corpus entries scored by perceptual scans",
		}),
		comparisonFailure: r.RegisterNewCounter(prometheus.CounterOpts{
			Namespace: namespacePixanchor,
			Subsystem: subsystemDetection,
			Name:      "comparison_failures_total",
			Help:      "number of corpus entries skipped because their features could not be compared",
		}),
	}
}

func (dc *DetectionCollector) DuplicateCheckCompleted(verdict string, duration time.Duration) {
	dc.checkDuration.WithLabelValues(verdict).Observe(duration.Seconds())
}

func (dc *DetectionCollector) CorpusEntriesScanned(entries int) {
	dc.entriesScanned.Add(float64(entries))
}

func (dc *DetectionCollector) ComparisonFailed() {
	dc.comparisonFailure.Inc()
}
