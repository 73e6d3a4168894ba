package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pixanchor/pixanchor/module"
)

type IngestionCollector struct {
	submissions *prometheus.HistogramVec
	backfills   *prometheus.CounterVec
}

var _ module.IngestionMetrics = (*IngestionCollector)(nil)

func NewIngestionCollector(registerer prometheus.Registerer) *IngestionCollector {
	r := NewRegisterer(registerer)
	return &IngestionCollector{
		submissions: r.RegisterNewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespacePixanchor,
			Subsystem: subsystemIngestion,
			Name:      "submission_duration_seconds",
			Help:      "duration of processed submissions, by outcome",
			Buckets:   []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60, 120},
		}, []string{LabelOutcome}),
		backfills: r.RegisterNewCounterVec(prometheus.CounterOpts{
			Namespace: namespacePixanchor,
			Subsystem: subsystemIngestion,
			Name:      "anchor_backfills_total",
			Help:      "number of backfill attempts of records missing a ledger anchor",
		}, []string{LabelOutcome}),
	}
}

func (ic *IngestionCollector) SubmissionProcessed(outcome string, duration time.Duration) {
	ic.submissions.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (ic *IngestionCollector) AnchorBackfilled(success bool) {
	outcome := OutcomeFailure
	if success {
		outcome = OutcomeSuccess
	}
	ic.backfills.WithLabelValues(outcome).Inc()
}
