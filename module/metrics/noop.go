package metrics

import (
	"time"

	"github.com/pixanchor/pixanchor/module"
)

type NoopCollector struct{}

var _ module.DetectionMetrics = (*NoopCollector)(nil)
var _ module.LedgerMetrics = (*NoopCollector)(nil)
var _ module.IngestionMetrics = (*NoopCollector)(nil)
var _ module.CacheMetrics = (*NoopCollector)(nil)

func NewNoopCollector() *NoopCollector {
	nc := &NoopCollector{}
	return nc
}

func (nc *NoopCollector) DuplicateCheckCompleted(verdict string, duration time.Duration) {}
func (nc *NoopCollector) CorpusEntriesScanned(entries int)                               {}
func (nc *NoopCollector) ComparisonFailed()                                              {}
func (nc *NoopCollector) TransactionSubmitted(operation string)                          {}
func (nc *NoopCollector) TransactionConfirmed(operation string, duration time.Duration)  {}
func (nc *NoopCollector) TransactionPending(operation string)                            {}
func (nc *NoopCollector) TransactionFailed(operation string)                             {}
func (nc *NoopCollector) StoreRetried()                                                  {}
func (nc *NoopCollector) StoreAlreadyAnchored()                                          {}
func (nc *NoopCollector) Reconnected()                                                   {}
func (nc *NoopCollector) SigningAccountBalance(balance float64)                          {}
func (nc *NoopCollector) InsufficientBalance(insufficient bool)                          {}
func (nc *NoopCollector) SubmissionProcessed(outcome string, duration time.Duration)     {}
func (nc *NoopCollector) AnchorBackfilled(success bool)                                  {}
func (nc *NoopCollector) CacheEntries(resource string, entries uint)                     {}
func (nc *NoopCollector) CacheHit(resource string)                                       {}
func (nc *NoopCollector) CacheNotFound(resource string)                                  {}
func (nc *NoopCollector) CacheMiss(resource string)                                      {}
