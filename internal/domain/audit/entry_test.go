// Package audit provides domain layer tests for audit entries.
package audit_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Riareddie/CHAKSHU-sub001/internal/domain/audit"
	"github.com/Riareddie/CHAKSHU-sub001/internal/domain/shared"
)

func TestDetermineSeverity(t *testing.T) {
	tests := []struct {
		name     string
		action   audit.Action
		resource string
		want     audit.Severity
	}{
		{name: "delete high risk resource", action: audit.ActionDelete, resource: "users", want: audit.SeverityHigh},
		{name: "delete fraud report", action: audit.ActionDelete, resource: "fraud_reports", want: audit.SeverityHigh},
		{name: "delete ordinary resource", action: audit.ActionDelete, resource: "contacts", want: audit.SeverityMedium},
		{name: "update elevated resource", action: audit.ActionUpdate, resource: "system_configuration", want: audit.SeverityMedium},
		{name: "create user", action: audit.ActionCreate, resource: "users", want: audit.SeverityMedium},
		{name: "create ordinary resource", action: audit.ActionCreate, resource: "contacts", want: audit.SeverityLow},
		{name: "read", action: audit.ActionRead, resource: "users", want: audit.SeverityLow},
		{name: "login", action: audit.ActionLogin, resource: "auth", want: audit.SeverityLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, audit.DetermineSeverity(tt.action, tt.resource))
		})
	}
}

func TestSeverityAtLeast(t *testing.T) {
	assert.True(t, audit.SeverityCritical.AtLeast(audit.SeverityMedium))
	assert.True(t, audit.SeverityMedium.AtLeast(audit.SeverityMedium))
	assert.False(t, audit.SeverityLow.AtLeast(audit.SeverityMedium))
}

func TestNewEntryWithContext(t *testing.T) {
	tc := shared.NewTransactionContext("user-1", "session-9", "update_profile", true, shared.RequestMetadata{
		IPAddress: "10.0.0.7",
		UserAgent: "cli/1.0",
		Endpoint:  "/v1/users/user-1",
	})

	entry := audit.NewEntry(audit.CategoryDataModification, audit.ActionUpdate, "users").WithContext(tc)

	require.NotEqual(t, "", entry.ID.String())
	assert.Equal(t, "user-1", entry.UserID)
	assert.Equal(t, "session-9", entry.SessionID)
	assert.Equal(t, "10.0.0.7", entry.IPAddress)
	assert.Equal(t, audit.SeverityMedium, entry.Severity)
	assert.Equal(t, "/v1/users/user-1", entry.Details["endpoint"])
	assert.False(t, entry.Timestamp.IsZero())
}

func TestRedactSensitive(t *testing.T) {
	payload := map[string]interface{}{
		"email":         "alice@example.com",
		"password_hash": "abc123",
		"apiToken":      "tok_xyz",
		"profile": map[string]interface{}{
			"secret_answer": "blue",
			"city":          "Jakarta",
		},
	}

	out := audit.RedactSensitive(payload)

	assert.Equal(t, "alice@example.com", out["email"])
	assert.Equal(t, audit.Redacted, out["password_hash"])
	assert.Equal(t, audit.Redacted, out["apiToken"])

	nested, ok := out["profile"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, audit.Redacted, nested["secret_answer"])
	assert.Equal(t, "Jakarta", nested["city"])

	// The original payload is untouched.
	assert.Equal(t, "abc123", payload["password_hash"])
}

func TestRedactSensitiveNil(t *testing.T) {
	assert.Nil(t, audit.RedactSensitive(nil))
}
