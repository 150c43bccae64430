package shared

// RequestMetadata carries transport-level details about the caller.
type RequestMetadata struct {
	IPAddress string
	UserAgent string
	Endpoint  string
}

// TransactionContext describes one logical operation on behalf of a user.
// It is created per request by the caller, is immutable, and is threaded
// through query execution and audit logging.
type TransactionContext struct {
	UserID        string
	SessionID     string
	Action        string
	AuditRequired bool
	Metadata      RequestMetadata
}

// NewTransactionContext creates a TransactionContext for one operation.
func NewTransactionContext(userID, sessionID, action string, auditRequired bool, meta RequestMetadata) TransactionContext {
	return TransactionContext{
		UserID:        userID,
		SessionID:     sessionID,
		Action:        action,
		AuditRequired: auditRequired,
		Metadata:      meta,
	}
}

// SystemContext returns a TransactionContext for internal operations that
// are not performed on behalf of a user.
func SystemContext(action string) TransactionContext {
	return TransactionContext{
		Action:        action,
		AuditRequired: false,
	}
}
