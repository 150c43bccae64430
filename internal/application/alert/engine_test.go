// Package alert provides tests for alert rule evaluation and actions.
package alert_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	appalert "github.com/Riareddie/CHAKSHU-sub001/internal/application/alert"
	domainalert "github.com/Riareddie/CHAKSHU-sub001/internal/domain/alert"
	"github.com/Riareddie/CHAKSHU-sub001/internal/domain/audit"
)

// MockNotifier is a mock implementation of the Notifier interface.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendAlert(ctx context.Context, ruleName, severity, detail string) error {
	args := m.Called(ctx, ruleName, severity, detail)
	return args.Error(0)
}

// MockSecurityGate is a mock implementation of the SecurityGate interface.
type MockSecurityGate struct {
	mock.Mock
}

func (m *MockSecurityGate) LockAccount(ctx context.Context, userID string, duration time.Duration) error {
	args := m.Called(ctx, userID, duration)
	return args.Error(0)
}

func (m *MockSecurityGate) DisableSessions(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func largeReadEntry(rows int) *audit.Entry {
	e := audit.NewEntry(audit.CategoryDataAccess, audit.ActionQuery, "transactions")
	e.Timestamp = time.Date(2026, 3, 10, 14, 0, 0, 0, time.Local)
	e.Details["row_count"] = rows
	return e
}

func TestEvaluateReturnsFirings(t *testing.T) {
	engine := appalert.NewEngine(domainalert.DefaultCatalog(), nil, nil, 30*time.Minute)

	firings := engine.Evaluate(context.Background(), largeReadEntry(5000))

	require.Len(t, firings, 1)
	assert.Equal(t, "RULE-003", firings[0].Rule.ID)
	assert.Equal(t, 5000, firings[0].Detail["row_count"])
}

func TestEvaluateNoMatch(t *testing.T) {
	engine := appalert.NewEngine(domainalert.DefaultCatalog(), nil, nil, 30*time.Minute)

	firings := engine.Evaluate(context.Background(), largeReadEntry(10))
	assert.Empty(t, firings)
}

func TestEvaluateSkipsDisabledRules(t *testing.T) {
	rules := []domainalert.Rule{
		{ID: "RULE-003", Kind: domainalert.KindLargeRead, Actions: []domainalert.ActionType{domainalert.ActionLogOnly}, Enabled: false},
	}
	engine := appalert.NewEngine(rules, nil, nil, 30*time.Minute)

	firings := engine.Evaluate(context.Background(), largeReadEntry(5000))
	assert.Empty(t, firings)
}

func TestEvaluateExecutesEmailAction(t *testing.T) {
	notifier := new(MockNotifier)
	notifier.On("SendAlert", mock.Anything, "Bulk data read", "medium", mock.Anything).Return(nil)

	rules := []domainalert.Rule{
		{
			ID:       "RULE-003",
			Name:     "Bulk data read",
			Kind:     domainalert.KindLargeRead,
			Severity: audit.SeverityMedium,
			Actions:  []domainalert.ActionType{domainalert.ActionEmail},
			Enabled:  true,
		},
	}
	engine := appalert.NewEngine(rules, notifier, nil, 30*time.Minute)

	firings := engine.Evaluate(context.Background(), largeReadEntry(5000))

	require.Len(t, firings, 1)
	notifier.AssertExpectations(t)
}

func TestEvaluateLocksAccountOnFailedLoginBurst(t *testing.T) {
	gate := new(MockSecurityGate)
	gate.On("LockAccount", mock.Anything, "user-7", 30*time.Minute).Return(nil)

	rules := []domainalert.Rule{
		{
			ID:      "RULE-001",
			Name:    "Multiple failed login attempts",
			Kind:    domainalert.KindFailedLoginBurst,
			Actions: []domainalert.ActionType{domainalert.ActionLockAccount},
			Enabled: true,
		},
	}
	engine := appalert.NewEngine(rules, nil, gate, 30*time.Minute)

	for i := 0; i < 5; i++ {
		e := audit.NewEntry(audit.CategoryAuthentication, audit.ActionLogin, "auth")
		e.UserID = "user-7"
		e.Details["success"] = false
		engine.Evaluate(context.Background(), e)
	}

	gate.AssertExpectations(t)
}

func TestEvaluateDisablesSessionsOnRoleChange(t *testing.T) {
	gate := new(MockSecurityGate)
	gate.On("DisableSessions", mock.Anything, "target-user").Return(nil)

	rules := []domainalert.Rule{
		{
			ID:      "RULE-002",
			Name:    "Privilege change on user account",
			Kind:    domainalert.KindRoleChange,
			Actions: []domainalert.ActionType{domainalert.ActionDisableSessions},
			Enabled: true,
		},
	}
	engine := appalert.NewEngine(rules, nil, gate, 30*time.Minute)

	e := audit.NewEntry(audit.CategoryDataModification, audit.ActionUpdate, "users")
	e.UserID = "admin-1"
	e.ResourceID = "target-user"
	e.Details["changes"] = map[string]interface{}{"role": map[string]interface{}{"old": "viewer", "new": "admin"}}

	firings := engine.Evaluate(context.Background(), e)

	require.Len(t, firings, 1)
	gate.AssertExpectations(t)
}

func TestEvaluateActionFailureDoesNotPropagate(t *testing.T) {
	notifier := new(MockNotifier)
	notifier.On("SendAlert", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("smtp unreachable"))
	gate := new(MockSecurityGate)
	gate.On("DisableSessions", mock.Anything, mock.Anything).Return(nil)

	rules := []domainalert.Rule{
		{
			ID:      "RULE-002",
			Kind:    domainalert.KindRoleChange,
			Actions: []domainalert.ActionType{domainalert.ActionEmail, domainalert.ActionDisableSessions},
			Enabled: true,
		},
	}
	engine := appalert.NewEngine(rules, notifier, gate, 30*time.Minute)

	e := audit.NewEntry(audit.CategoryDataModification, audit.ActionUpdate, "users")
	e.ResourceID = "target-user"
	e.Details["changes"] = map[string]interface{}{"role": "x"}

	// The failed email action must not stop the session disable.
	firings := engine.Evaluate(context.Background(), e)

	require.Len(t, firings, 1)
	gate.AssertExpectations(t)
}

func TestEvaluateNilCollaboratorsDegrade(t *testing.T) {
	engine := appalert.NewEngine(domainalert.DefaultCatalog(), nil, nil, 30*time.Minute)

	// RULE-001 wants email + lock; with no notifier and no gate the rule
	// still fires and only logs.
	for i := 0; i < 5; i++ {
		e := audit.NewEntry(audit.CategoryAuthentication, audit.ActionLogin, "auth")
		e.IPAddress = "10.0.0.9"
		e.Details["success"] = false
		firings := engine.Evaluate(context.Background(), e)
		if i == 4 {
			require.Len(t, firings, 1)
			assert.Equal(t, "RULE-001", firings[0].Rule.ID)
		}
	}
}
