// Package audit provides domain types for the tamper-evident audit trail.
package audit

import (
	"time"

	"github.com/google/uuid"

	"github.com/Riareddie/CHAKSHU-sub001/internal/domain/shared"
)

// Action represents the type of audited operation.
type Action string

// Audit action constants.
const (
	ActionCreate   Action = "CREATE"
	ActionRead     Action = "READ"
	ActionUpdate   Action = "UPDATE"
	ActionDelete   Action = "DELETE"
	ActionLogin    Action = "LOGIN"
	ActionLogout   Action = "LOGOUT"
	ActionExport   Action = "EXPORT"
	ActionBegin    Action = "TX_BEGIN"
	ActionCommit   Action = "TX_COMMIT"
	ActionRollback Action = "TX_ROLLBACK"
	ActionQuery    Action = "QUERY"
)

// Category classifies the audited event.
type Category string

// Audit category constants.
const (
	CategoryAuthentication   Category = "authentication"
	CategoryDataAccess       Category = "data_access"
	CategoryDataModification Category = "data_modification"
	CategorySystemEvent      Category = "system_event"
	CategorySecurityEvent    Category = "security_event"
)

// Severity grades how sensitive an audited event is.
type Severity string

// Severity constants, ordered from least to most sensitive.
const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AtLeast reports whether s is at or above the given severity.
func (s Severity) AtLeast(min Severity) bool {
	return severityRank(s) >= severityRank(min)
}

func severityRank(s Severity) int {
	switch s {
	case SeverityLow:
		return 0
	case SeverityMedium:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	default:
		return 0
	}
}

// Entry represents one immutable audit log entry. Once flushed it is never
// mutated except for soft-delete marking by the retention job.
type Entry struct {
	ID         uuid.UUID
	UserID     string
	SessionID  string
	Action     Action
	Resource   string
	ResourceID string
	Details    map[string]interface{}
	IPAddress  string
	UserAgent  string
	Timestamp  time.Time
	Severity   Severity
	Category   Category
	Tags       []string

	Bookkeeping shared.AuditInfo
}

// NewEntry builds an Entry with id, timestamp and bookkeeping assigned.
func NewEntry(category Category, action Action, resource string) *Entry {
	return &Entry{
		ID:          uuid.New(),
		Action:      action,
		Resource:    resource,
		Category:    category,
		Timestamp:   time.Now(),
		Severity:    DetermineSeverity(action, resource),
		Details:     map[string]interface{}{},
		Bookkeeping: shared.NewAuditInfo("audit-logger"),
	}
}

// WithContext fills caller identity from a transaction context.
func (e *Entry) WithContext(tc shared.TransactionContext) *Entry {
	e.UserID = tc.UserID
	e.SessionID = tc.SessionID
	e.IPAddress = tc.Metadata.IPAddress
	e.UserAgent = tc.Metadata.UserAgent
	if tc.Metadata.Endpoint != "" {
		e.Details["endpoint"] = tc.Metadata.Endpoint
	}
	return e
}

// highRiskResources are resources where destructive actions escalate severity.
var highRiskResources = map[string]bool{
	"users":         true,
	"fraud_reports": true,
}

// elevatedResources are resources where mutations are at least medium severity.
var elevatedResources = map[string]bool{
	"users":                true,
	"system_configuration": true,
}

// DetermineSeverity applies the deterministic severity policy for an
// action/resource pair. Callers may still override the result for events
// with inherent severity (security events, performance issues).
func DetermineSeverity(action Action, resource string) Severity {
	switch action {
	case ActionDelete:
		if highRiskResources[resource] {
			return SeverityHigh
		}
		return SeverityMedium
	case ActionCreate, ActionUpdate:
		if elevatedResources[resource] {
			return SeverityMedium
		}
		return SeverityLow
	default:
		return SeverityLow
	}
}
