package audit

import (
	"time"
)

// AuthenticationEvent describes a login or logout attempt.
type AuthenticationEvent struct {
	UserID    string
	SessionID string
	Action    Action // ActionLogin or ActionLogout
	Success   bool
	Reason    string
	IPAddress string
	UserAgent string
}

// DataAccessEvent describes a read against a resource.
type DataAccessEvent struct {
	Resource      string
	ResourceID    string
	RedactedQuery string
	RowCount      int
	ExecutionTime time.Duration
	Success       bool
	ErrorDetail   string
}

// DataModificationEvent describes a mutation with before/after values.
type DataModificationEvent struct {
	Action     Action // ActionCreate, ActionUpdate or ActionDelete
	Resource   string
	ResourceID string
	OldValues  map[string]interface{}
	NewValues  map[string]interface{}
}

// SecurityEvent describes a security-relevant occurrence (lockout, alert,
// tamper detection) with an inherent severity.
type SecurityEvent struct {
	Event     string
	UserID    string
	SessionID string
	Severity  Severity
	Detail    map[string]interface{}
	IPAddress string
}

// SystemEvent describes an internal lifecycle occurrence.
type SystemEvent struct {
	Event  string
	Detail map[string]interface{}
}

// TransactionEvent describes one phase of a database transaction.
type TransactionEvent struct {
	Phase    Action // ActionBegin, ActionCommit or ActionRollback
	Resource string
	Detail   string
}

// PerformanceEvent describes a slow or otherwise degraded operation.
type PerformanceEvent struct {
	Operation     string
	RedactedQuery string
	ExecutionTime time.Duration
	Threshold     time.Duration
}

// ExportEvent describes a compliance export of audit data.
type ExportEvent struct {
	Resource string
	Format   string
	From     time.Time
	To       time.Time
	Rows     int
}
