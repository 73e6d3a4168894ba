package module

import (
	"time"
)

// DetectionMetrics encapsulates the metrics collectors of the duplicate
// detector.
type DetectionMetrics interface {
	// DuplicateCheckCompleted records the outcome and duration of one check.
	DuplicateCheckCompleted(verdict string, duration time.Duration)

	// CorpusEntriesScanned records the number of corpus entries scored during
	// one perceptual scan.
	CorpusEntriesScanned(entries int)

	// ComparisonFailed counts corpus entries skipped because their stored
	// features could not be parsed or compared.
	ComparisonFailed()
}

// LedgerMetrics encapsulates the metrics collectors of the ledger client.
type LedgerMetrics interface {
	// TransactionSubmitted counts transactions broadcast, per contract operation.
	TransactionSubmitted(operation string)

	// TransactionConfirmed records the time from broadcast to receipt.
	TransactionConfirmed(operation string, duration time.Duration)

	// TransactionPending counts transactions without a receipt within the
	// confirmation timeout.
	TransactionPending(operation string)

	// TransactionFailed counts attempts that failed before or after broadcast.
	TransactionFailed(operation string)

	// StoreRetried counts store attempts after the first one.
	StoreRetried()

	// StoreAlreadyAnchored counts stores resolved without a write because
	// the record already existed.
	StoreAlreadyAnchored()

	// Reconnected counts (re)established ledger connections.
	Reconnected()

	// SigningAccountBalance reports the last observed balance of the signing
	// account, in ether.
	SigningAccountBalance(balance float64)

	// InsufficientBalance is reported as true while the balance does not
	// cover the configured gas budget of a single transaction.
	InsufficientBalance(insufficient bool)
}

// IngestionMetrics encapsulates the metrics collectors of the ingestion
// coordinator.
type IngestionMetrics interface {
	// SubmissionProcessed records the outcome and duration of a submission.
	SubmissionProcessed(outcome string, duration time.Duration)

	// AnchorBackfilled counts backfill attempts of unanchored records.
	AnchorBackfilled(success bool)
}

type CacheMetrics interface {
	// CacheEntries report the total number of cached items
	CacheEntries(resource string, entries uint)
	// CacheHit report the number of times the queried item is found in the cache
	CacheHit(resource string)
	// CacheNotFound records the number of times the queried item was not found in either cache or database.
	CacheNotFound(resource string)
	// CacheMiss report the number of times the queried item is not found in the cache, but found in the database.
	CacheMiss(resource string)
}
