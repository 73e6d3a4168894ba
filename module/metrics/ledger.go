package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pixanchor/pixanchor/module"
)

// LedgerCollector implements metric collection for the ledger client and
// its signing account.
type LedgerCollector struct {
	submitted        *prometheus.CounterVec
	confirmed        *prometheus.CounterVec
	confirmationTime *prometheus.HistogramVec
	pending          *prometheus.CounterVec
	failed           *prometheus.CounterVec
	storeRetries     prometheus.Counter
	alreadyAnchored  prometheus.Counter
	reconnects       prometheus.Counter

	accountBalance      prometheus.Gauge
	insufficientBalance prometheus.Gauge
}

var _ module.LedgerMetrics = (*LedgerCollector)(nil)

func NewLedgerCollector(registerer prometheus.Registerer) *LedgerCollector {
	r := NewRegisterer(registerer)
	return &LedgerCollector{
		submitted: r.RegisterNewCounterVec(prometheus.CounterOpts{
			Namespace: namespacePixanchor,
			Subsystem: subsystemLedger,
			Name:      "transactions_submitted_total",
			Help:      "number of transactions broadcast, by contract operation",
		}, []string{LabelOperation}),
		confirmed: r.RegisterNewCounterVec(prometheus.CounterOpts{
			Namespace: namespacePixanchor,
			Subsystem: subsystemLedger,
			Name:      "transactions_confirmed_total",
			Help:      "number of transactions mined successfully, by contract operation",
		}, []string{LabelOperation}),
		confirmationTime: r.RegisterNewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespacePixanchor,
			Subsystem: subsystemLedger,
			Name:      "confirmation_duration_seconds",
			Help:      "time from broadcast to receipt",
			Buckets:   []float64{.1, .5, 1, 2, 5, 10, 20, 30, 60},
		}, []string{LabelOperation}),
		pending: r.RegisterNewCounterVec(prometheus.CounterOpts{
			Namespace: namespacePixanchor,
			Subsystem: subsystemLedger,
			Name:      "transactions_pending_total",
			Help:      "number of transactions without receipt within the confirmation timeout",
		}, []string{LabelOperation}),
		failed: r.RegisterNewCounterVec(prometheus.CounterOpts{
			Namespace: namespacePixanchor,
			Subsystem: subsystemLedger,
			Name:      "transactions_failed_total",
			Help:      "number of failed transaction attempts, by contract operation",
		}, []string{LabelOperation}),
		storeRetries: r.RegisterNewCounter(prometheus.CounterOpts{
			Namespace: namespacePixanchor,
			Subsystem: subsystemLedger,
			Name:      "store_retries_total",
			Help:      "number of store attempts after the first one",
		}),
		alreadyAnchored: r.RegisterNewCounter(prometheus.CounterOpts{
			Namespace: namespacePixanchor,
			Subsystem: subsystemLedger,
			Name:      "store_already_anchored_total",
			Help:      "number of stores resolved without write because the record existed",
		}),
		reconnects: r.RegisterNewCounter(prometheus.CounterOpts{
			Namespace: namespacePixanchor,
			Subsystem: subsystemLedger,
			Name:      "connections_total",
			Help:      "number of established ledger connections",
		}),
		accountBalance: r.RegisterNewGauge(prometheus.GaugeOpts{
			Namespace: namespacePixanchor,
			Subsystem: subsystemAccount,
			Name:      "balance",
			Help:      "the last observed balance of the signing account, in ether",
		}),
		insufficientBalance: r.RegisterNewGauge(prometheus.GaugeOpts{
			Namespace: namespacePixanchor,
			Subsystem: subsystemAccount,
			Name:      "is_underfunded",
			Help:      "reported as a non-zero value when the balance does not cover the gas budget of one transaction; refill the account",
		}),
	}
}

func (lc *LedgerCollector) TransactionSubmitted(operation string) {
	lc.submitted.WithLabelValues(operation).Inc()
}

func (lc *LedgerCollector) TransactionConfirmed(operation string, duration time.Duration) {
	lc.confirmed.WithLabelValues(operation).Inc()
	lc.confirmationTime.WithLabelValues(operation).Observe(duration.Seconds())
}

func (lc *LedgerCollector) TransactionPending(operation string) {
	lc.pending.WithLabelValues(operation).Inc()
}

func (lc *LedgerCollector) TransactionFailed(operation string) {
	lc.failed.WithLabelValues(operation).Inc()
}

func (lc *LedgerCollector) StoreRetried() {
	lc.storeRetries.Inc()
}

func (lc *LedgerCollector) StoreAlreadyAnchored() {
	lc.alreadyAnchored.Inc()
}

func (lc *LedgerCollector) Reconnected() {
	lc.reconnects.Inc()
}

func (lc *LedgerCollector) SigningAccountBalance(balance float64) {
	lc.accountBalance.Set(balance)
}

func (lc *LedgerCollector) InsufficientBalance(insufficient bool) {
	if insufficient {
		lc.insufficientBalance.Set(1)
	} else {
		lc.insufficientBalance.Set(0)
	}
}
