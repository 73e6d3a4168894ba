package metrics

const (
	namespacePixanchor = "pixanchor"
)

const (
	subsystemDetection = "detection"
	subsystemLedger    = "ledger"
	subsystemAccount   = "signing_account"
	subsystemIngestion = "ingestion"
	subsystemCache     = "cache"
)
