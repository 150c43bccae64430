// Package alert provides the fixed catalog of audit alert rules and their
// evaluation logic.
package alert

import (
	"github.com/Riareddie/CHAKSHU-sub001/internal/domain/audit"
)

// Kind identifies one of the closed set of rule conditions. Conditions are
// a fixed catalog, not a DSL: each kind has a dedicated evaluator.
type Kind int

// Rule kind constants.
const (
	KindFailedLoginBurst Kind = iota
	KindRoleChange
	KindLargeRead
	KindOffHoursAccess
	KindSensitiveExport
)

func (k Kind) String() string {
	switch k {
	case KindFailedLoginBurst:
		return "failed_login_burst"
	case KindRoleChange:
		return "role_change"
	case KindLargeRead:
		return "large_read"
	case KindOffHoursAccess:
		return "off_hours_access"
	case KindSensitiveExport:
		return "sensitive_export"
	default:
		return "unknown"
	}
}

// ActionType identifies a response to a fired rule.
type ActionType string

// Action type constants.
const (
	ActionLogOnly         ActionType = "log_only"
	ActionEmail           ActionType = "email"
	ActionLockAccount     ActionType = "lock_account"
	ActionDisableSessions ActionType = "disable_sessions"
	ActionImmediateAlert  ActionType = "immediate_alert"
)

// Rule is one entry in the static alert catalog, loaded at startup and not
// editable at runtime.
type Rule struct {
	ID       string
	Name     string
	Kind     Kind
	Severity audit.Severity
	Actions  []ActionType
	Enabled  bool
}

// DefaultCatalog returns the fixed rule catalog.
func DefaultCatalog() []Rule {
	return []Rule{
		{
			ID:       "RULE-001",
			Name:     "Multiple failed login attempts",
			Kind:     KindFailedLoginBurst,
			Severity: audit.SeverityHigh,
			Actions:  []ActionType{ActionEmail, ActionLockAccount},
			Enabled:  true,
		},
		{
			ID:       "RULE-002",
			Name:     "Privilege change on user account",
			Kind:     KindRoleChange,
			Severity: audit.SeverityCritical,
			Actions:  []ActionType{ActionImmediateAlert, ActionDisableSessions},
			Enabled:  true,
		},
		{
			ID:       "RULE-003",
			Name:     "Bulk data read",
			Kind:     KindLargeRead,
			Severity: audit.SeverityMedium,
			Actions:  []ActionType{ActionLogOnly},
			Enabled:  true,
		},
		{
			ID:       "RULE-004",
			Name:     "Off-hours access",
			Kind:     KindOffHoursAccess,
			Severity: audit.SeverityMedium,
			Actions:  []ActionType{ActionEmail},
			Enabled:  true,
		},
		{
			ID:       "RULE-005",
			Name:     "Sensitive data export",
			Kind:     KindSensitiveExport,
			Severity: audit.SeverityHigh,
			Actions:  []ActionType{ActionImmediateAlert, ActionLogOnly},
			Enabled:  true,
		},
	}
}
