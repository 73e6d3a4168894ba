package storage

// All includes all the storage modules
type All struct {
	Images    Images
	AuditLogs AuditLogs
}
