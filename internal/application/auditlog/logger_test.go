// Package auditlog provides tests for the buffered audit logger.
package auditlog_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appalert "github.com/Riareddie/CHAKSHU-sub001/internal/application/alert"
	"github.com/Riareddie/CHAKSHU-sub001/internal/application/auditlog"
	domainalert "github.com/Riareddie/CHAKSHU-sub001/internal/domain/alert"
	"github.com/Riareddie/CHAKSHU-sub001/internal/domain/audit"
	"github.com/Riareddie/CHAKSHU-sub001/internal/domain/shared"
	"github.com/Riareddie/CHAKSHU-sub001/internal/infrastructure/config"
	"github.com/Riareddie/CHAKSHU-sub001/internal/infrastructure/crypto"
)

// fakeRepository records batches in memory and can be told to fail.
type fakeRepository struct {
	mu       sync.Mutex
	batches  [][]*audit.Entry
	failNext int
	flushed  chan struct{}

	rangeEntries []*audit.Entry
	softDeleted  int64
	softDeleteBy string
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{flushed: make(chan struct{}, 16)}
}

func (r *fakeRepository) CreateBatch(ctx context.Context, entries []*audit.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNext > 0 {
		r.failNext--
		return shared.ErrFlushFailed
	}
	copied := make([]*audit.Entry, len(entries))
	copy(copied, entries)
	r.batches = append(r.batches, copied)
	select {
	case r.flushed <- struct{}{}:
	default:
	}
	return nil
}

func (r *fakeRepository) List(ctx context.Context, params audit.ListParams) ([]*audit.Entry, int64, error) {
	return nil, 0, nil
}

func (r *fakeRepository) Range(ctx context.Context, from, to time.Time) ([]*audit.Entry, error) {
	return r.rangeEntries, nil
}

func (r *fakeRepository) SoftDeleteOlderThan(ctx context.Context, cutoff time.Time, deletedBy string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.softDeleteBy = deletedBy
	return r.softDeleted, nil
}

func (r *fakeRepository) stored() []*audit.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*audit.Entry
	for _, b := range r.batches {
		out = append(out, b...)
	}
	return out
}

func testConfig() config.AuditConfig {
	return config.AuditConfig{
		RetentionDays: 2555,
		FlushInterval: time.Minute,
		BufferSize:    1000,
	}
}

func TestLogBuffersUntilFlush(t *testing.T) {
	repo := newFakeRepository()
	logger := auditlog.New(repo, nil, nil, testConfig())

	logger.LogAuthentication(audit.AuthenticationEvent{UserID: "u1", Action: audit.ActionLogin, Success: true})
	logger.LogSystemEvent(audit.SystemEvent{Event: "configuration_reloaded"})

	assert.Empty(t, repo.stored(), "nothing persists before a flush")

	require.NoError(t, logger.Close())

	stored := repo.stored()
	require.Len(t, stored, 2)
	assert.Equal(t, audit.CategoryAuthentication, stored[0].Category)
	assert.Equal(t, audit.CategorySystemEvent, stored[1].Category)
}

func TestFailedFlushRequeuesInOrder(t *testing.T) {
	repo := newFakeRepository()
	repo.failNext = 1
	logger := auditlog.New(repo, nil, nil, testConfig())

	logger.LogSystemEvent(audit.SystemEvent{Event: "first"})
	logger.LogSystemEvent(audit.SystemEvent{Event: "second"})

	// First drain attempt fails; the batch goes back to the buffer front.
	require.ErrorIs(t, logger.Close(), shared.ErrFlushFailed)
	assert.Empty(t, repo.stored())

	logger.LogSystemEvent(audit.SystemEvent{Event: "third"})

	require.NoError(t, logger.Close())
	stored := repo.stored()
	require.Len(t, stored, 3)
	assert.Equal(t, "first", stored[0].Details["event"])
	assert.Equal(t, "second", stored[1].Details["event"])
	assert.Equal(t, "third", stored[2].Details["event"])
}

func TestCriticalEntryFlushesImmediately(t *testing.T) {
	repo := newFakeRepository()
	logger := auditlog.New(repo, nil, nil, testConfig())
	logger.Start()
	defer logger.Close()

	logger.LogSecurityEvent(audit.SecurityEvent{
		Event:    "tamper_detected",
		Severity: audit.SeverityCritical,
	})

	select {
	case <-repo.flushed:
	case <-time.After(2 * time.Second):
		t.Fatal("critical entry was not flushed ahead of the interval")
	}

	stored := repo.stored()
	require.Len(t, stored, 1)
	assert.Equal(t, audit.SeverityCritical, stored[0].Severity)
}

func TestFailedLoginRecordedAtMediumSeverity(t *testing.T) {
	repo := newFakeRepository()
	logger := auditlog.New(repo, nil, nil, testConfig())

	logger.LogAuthentication(audit.AuthenticationEvent{
		UserID:  "u1",
		Action:  audit.ActionLogin,
		Success: false,
		Reason:  "bad credentials",
	})
	require.NoError(t, logger.Close())

	stored := repo.stored()
	require.Len(t, stored, 1)
	assert.Equal(t, audit.SeverityMedium, stored[0].Severity)
	assert.Equal(t, false, stored[0].Details["success"])
	assert.Equal(t, "bad credentials", stored[0].Details["reason"])
}

func TestLogDataModificationRedactsAndDiffs(t *testing.T) {
	repo := newFakeRepository()
	logger := auditlog.New(repo, nil, nil, testConfig())

	tc := shared.NewTransactionContext("admin-1", "s1", "update_user", true, shared.RequestMetadata{})
	logger.LogDataModification(tc, audit.DataModificationEvent{
		Action:     audit.ActionUpdate,
		Resource:   "users",
		ResourceID: "u9",
		OldValues:  map[string]interface{}{"email": "old@example.com", "password": "hunter2"},
		NewValues:  map[string]interface{}{"email": "new@example.com", "password": "hunter3"},
	})
	require.NoError(t, logger.Close())

	stored := repo.stored()
	require.Len(t, stored, 1)
	e := stored[0]

	oldValues := e.Details["old_values"].(map[string]interface{})
	assert.Equal(t, audit.Redacted, oldValues["password"])
	assert.Equal(t, "old@example.com", oldValues["email"])

	changes := e.Details["changes"].(map[string]interface{})
	require.Contains(t, changes, "email")
	// Redaction happens before the diff, so an unchanged secret never
	// shows up as changed and a changed one diffs as redacted markers.
	assert.NotContains(t, changes, "password")
}

func TestEncryptDetailsWrapsPayloads(t *testing.T) {
	kr := crypto.NewKeyring()
	require.NoError(t, kr.GenerateKey("default"))
	enc := crypto.NewService(kr)

	cfg := testConfig()
	cfg.EncryptDetails = true

	repo := newFakeRepository()
	logger := auditlog.New(repo, nil, enc, cfg)

	tc := shared.SystemContext("update_config")
	logger.LogDataModification(tc, audit.DataModificationEvent{
		Action:    audit.ActionUpdate,
		Resource:  "system_configuration",
		OldValues: map[string]interface{}{"value": "off"},
		NewValues: map[string]interface{}{"value": "on"},
	})
	require.NoError(t, logger.Close())

	stored := repo.stored()
	require.Len(t, stored, 1)

	envelope, ok := stored[0].Details["old_values"].(*crypto.EncryptedData)
	require.True(t, ok, "payload fields are stored as encrypted envelopes")

	plain, err := enc.Decrypt(envelope)
	require.NoError(t, err)
	assert.Contains(t, plain, `"value":"off"`)
}

func TestAlertFiringRecordsSecurityEntry(t *testing.T) {
	repo := newFakeRepository()
	engine := appalert.NewEngine(domainalert.DefaultCatalog(), nil, nil, 30*time.Minute)
	logger := auditlog.New(repo, engine, nil, testConfig())

	tc := shared.NewTransactionContext("u1", "s1", "list_transactions", true, shared.RequestMetadata{})
	logger.LogDataAccess(tc, audit.DataAccessEvent{
		Resource:      "transactions",
		RedactedQuery: "SELECT * FROM transactions WHERE amount > '?'",
		RowCount:      5000,
		Success:       true,
	})
	require.NoError(t, logger.Close())

	stored := repo.stored()
	require.Len(t, stored, 2, "the read plus the firing it triggered")

	firing := stored[1]
	assert.Equal(t, audit.CategorySecurityEvent, firing.Category)
	assert.Contains(t, firing.Tags, "alert")
	assert.Equal(t, "RULE-003", firing.Details["rule_id"])
	assert.Equal(t, stored[0].ID.String(), firing.Details["triggering_entry"])
}

func TestExportJSON(t *testing.T) {
	repo := newFakeRepository()
	e := audit.NewEntry(audit.CategoryDataAccess, audit.ActionRead, "contacts")
	e.UserID = "u1"
	repo.rangeEntries = []*audit.Entry{e}

	logger := auditlog.New(repo, nil, nil, testConfig())

	out, err := logger.Export(context.Background(), time.Now().Add(-time.Hour), time.Now(), auditlog.FormatJSON)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"resource": "contacts"`)

	// The export itself is recorded.
	require.NoError(t, logger.Close())
	stored := repo.stored()
	require.Len(t, stored, 1)
	assert.Equal(t, audit.ActionExport, stored[0].Action)
	assert.Equal(t, "audit_logs", stored[0].Resource)
	assert.Equal(t, 1, stored[0].Details["row_count"])
}

func TestExportCSV(t *testing.T) {
	repo := newFakeRepository()
	e := audit.NewEntry(audit.CategoryDataAccess, audit.ActionRead, "contacts")
	repo.rangeEntries = []*audit.Entry{e}

	logger := auditlog.New(repo, nil, nil, testConfig())
	defer logger.Close()

	out, err := logger.Export(context.Background(), time.Now().Add(-time.Hour), time.Now(), auditlog.FormatCSV)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "id,user_id,session_id,action,resource"))
	assert.Contains(t, lines[1], "contacts")
}

func TestExportXLSX(t *testing.T) {
	repo := newFakeRepository()
	repo.rangeEntries = []*audit.Entry{audit.NewEntry(audit.CategoryDataAccess, audit.ActionRead, "contacts")}

	logger := auditlog.New(repo, nil, nil, testConfig())
	defer logger.Close()

	out, err := logger.Export(context.Background(), time.Now().Add(-time.Hour), time.Now(), auditlog.FormatXLSX)
	require.NoError(t, err)
	assert.NotEmpty(t, out)
	// XLSX files are zip archives.
	assert.Equal(t, "PK", string(out[:2]))
}

func TestExportUnsupportedFormat(t *testing.T) {
	repo := newFakeRepository()
	logger := auditlog.New(repo, nil, nil, testConfig())
	defer logger.Close()

	_, err := logger.Export(context.Background(), time.Now().Add(-time.Hour), time.Now(), "pdf")
	assert.Error(t, err)
}

func TestRunRetention(t *testing.T) {
	repo := newFakeRepository()
	repo.softDeleted = 42
	logger := auditlog.New(repo, nil, nil, testConfig())

	require.NoError(t, logger.RunRetention(context.Background()))
	require.NoError(t, logger.Close())

	assert.Equal(t, "retention-job", repo.softDeleteBy)
	stored := repo.stored()
	require.Len(t, stored, 1)
	assert.Equal(t, "audit_retention_cleanup", stored[0].Details["event"])
	assert.Equal(t, int64(42), stored[0].Details["soft_deleted"])
}

func TestRunRetentionNothingDeleted(t *testing.T) {
	repo := newFakeRepository()
	logger := auditlog.New(repo, nil, nil, testConfig())

	require.NoError(t, logger.RunRetention(context.Background()))
	require.NoError(t, logger.Close())

	assert.Empty(t, repo.stored(), "no system event when nothing was cleaned up")
}
