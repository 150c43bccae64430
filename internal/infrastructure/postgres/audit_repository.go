package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Riareddie/CHAKSHU-sub001/internal/domain/audit"
	"github.com/Riareddie/CHAKSHU-sub001/internal/domain/shared"
)

const auditColumnList = `id, user_id, session_id, action, resource, resource_id, details,
	ip_address, user_agent, timestamp, severity, category, tags,
	created_at, updated_at, created_by, version, is_deleted`

const auditColumnCount = 18

// AuditRepository implements audit.Repository against the primary pool.
// Its statements deliberately bypass the audited query path.
type AuditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates an AuditRepository over the manager's primary.
func NewAuditRepository(m *Manager) *AuditRepository {
	return &AuditRepository{db: m.Primary()}
}

// CreateBatch persists a batch of entries in one multi-row insert.
func (r *AuditRepository) CreateBatch(ctx context.Context, entries []*audit.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	placeholders := make([]string, 0, len(entries))
	args := make([]interface{}, 0, len(entries)*auditColumnCount)

	for i, e := range entries {
		base := i * auditColumnCount
		group := make([]string, auditColumnCount)
		for j := range group {
			group[j] = fmt.Sprintf("$%d", base+j+1)
		}
		placeholders = append(placeholders, "("+strings.Join(group, ", ")+")")

		details, err := json.Marshal(e.Details)
		if err != nil {
			details = []byte("null")
		}
		tags, err := json.Marshal(e.Tags)
		if err != nil {
			tags = []byte("null")
		}

		args = append(args,
			e.ID,
			nullableString(e.UserID),
			nullableString(e.SessionID),
			string(e.Action),
			e.Resource,
			nullableString(e.ResourceID),
			details,
			nullableString(e.IPAddress),
			nullableString(e.UserAgent),
			e.Timestamp,
			string(e.Severity),
			string(e.Category),
			tags,
			e.Bookkeeping.CreatedAt,
			e.Bookkeeping.UpdatedAt,
			e.Bookkeeping.CreatedBy,
			e.Bookkeeping.Version,
			e.Bookkeeping.IsDeleted(),
		)
	}

	query := fmt.Sprintf(
		"INSERT INTO audit_logs (%s) VALUES %s",
		auditColumnList, strings.Join(placeholders, ", "),
	)

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrFlushFailed, err)
	}
	return nil
}

// List returns entries matching the filters along with the total count.
func (r *AuditRepository) List(ctx context.Context, params audit.ListParams) ([]*audit.Entry, int64, error) {
	whereClause, args, argPos := buildAuditListFilters(params)

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM audit_logs WHERE %s", whereClause)
	var total int64
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count audit logs: %w", err)
	}

	sortBy := "timestamp"
	if params.SortBy != "" {
		sortBy = params.SortBy
	}
	sortOrder := "DESC"
	if strings.EqualFold(params.SortOrder, "asc") {
		sortOrder = "ASC"
	}

	page := params.Page
	if page < 1 {
		page = 1
	}
	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = 50
	}
	offset := (page - 1) * pageSize

	query := fmt.Sprintf(`
		SELECT %s, deleted_at, deleted_by
		FROM audit_logs
		WHERE %s
		ORDER BY %s %s
		LIMIT $%d OFFSET $%d
	`, auditColumnList, whereClause, sortBy, sortOrder, argPos, argPos+1)

	args = append(args, pageSize, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("failed to close rows in audit log list")
		}
	}()

	entries, err := scanAuditEntries(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// Range returns all non-deleted entries within [from, to] in timestamp order.
func (r *AuditRepository) Range(ctx context.Context, from, to time.Time) ([]*audit.Entry, error) {
	query := fmt.Sprintf(`
		SELECT %s, deleted_at, deleted_by
		FROM audit_logs
		WHERE timestamp >= $1 AND timestamp <= $2 AND is_deleted = false
		ORDER BY timestamp ASC
	`, auditColumnList)

	rows, err := r.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit range: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("failed to close rows in audit range")
		}
	}()

	return scanAuditEntries(rows)
}

// SoftDeleteOlderThan marks entries older than the cutoff as deleted.
// Entries are never hard-deleted inside the retention window.
func (r *AuditRepository) SoftDeleteOlderThan(ctx context.Context, cutoff time.Time, deletedBy string) (int64, error) {
	query := `
		UPDATE audit_logs
		SET is_deleted = true, deleted_at = $1, deleted_by = $2, updated_at = $1
		WHERE timestamp < $3 AND is_deleted = false
	`

	res, err := r.db.ExecContext(ctx, query, time.Now(), deletedBy, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to soft-delete expired audit logs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return affected, nil
}

func buildAuditListFilters(params audit.ListParams) (string, []interface{}, int) {
	var conditions []string
	var args []interface{}
	argPos := 1

	if params.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", argPos))
		args = append(args, params.UserID)
		argPos++
	}
	if params.Action != "" {
		conditions = append(conditions, fmt.Sprintf("action = $%d", argPos))
		args = append(args, string(params.Action))
		argPos++
	}
	if params.Category != "" {
		conditions = append(conditions, fmt.Sprintf("category = $%d", argPos))
		args = append(args, string(params.Category))
		argPos++
	}
	if params.Severity != "" {
		conditions = append(conditions, fmt.Sprintf("severity = $%d", argPos))
		args = append(args, string(params.Severity))
		argPos++
	}
	if params.Resource != "" {
		conditions = append(conditions, fmt.Sprintf("resource = $%d", argPos))
		args = append(args, params.Resource)
		argPos++
	}
	if params.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("timestamp >= $%d", argPos))
		args = append(args, *params.DateFrom)
		argPos++
	}
	if params.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("timestamp <= $%d", argPos))
		args = append(args, *params.DateTo)
		argPos++
	}

	whereClause := "1=1"
	if len(conditions) > 0 {
		whereClause = strings.Join(conditions, " AND ")
	}
	return whereClause, args, argPos
}

// auditRow is the scan target for audit_logs rows.
type auditRow struct {
	ID         uuid.UUID
	UserID     sql.NullString
	SessionID  sql.NullString
	Action     string
	Resource   string
	ResourceID sql.NullString
	Details    []byte
	IPAddress  sql.NullString
	UserAgent  sql.NullString
	Timestamp  time.Time
	Severity   string
	Category   string
	Tags       []byte
	CreatedAt  time.Time
	UpdatedAt  sql.NullTime
	CreatedBy  string
	Version    int
	IsDeleted  bool
	DeletedAt  sql.NullTime
	DeletedBy  sql.NullString
}

func scanAuditEntries(rows *sql.Rows) ([]*audit.Entry, error) {
	var entries []*audit.Entry
	for rows.Next() {
		var row auditRow
		if err := rows.Scan(
			&row.ID, &row.UserID, &row.SessionID, &row.Action, &row.Resource,
			&row.ResourceID, &row.Details, &row.IPAddress, &row.UserAgent,
			&row.Timestamp, &row.Severity, &row.Category, &row.Tags,
			&row.CreatedAt, &row.UpdatedAt, &row.CreatedBy, &row.Version,
			&row.IsDeleted, &row.DeletedAt, &row.DeletedBy,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		entries = append(entries, row.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *auditRow) toDomain() *audit.Entry {
	e := &audit.Entry{
		ID:         r.ID,
		UserID:     r.UserID.String,
		SessionID:  r.SessionID.String,
		Action:     audit.Action(r.Action),
		Resource:   r.Resource,
		ResourceID: r.ResourceID.String,
		IPAddress:  r.IPAddress.String,
		UserAgent:  r.UserAgent.String,
		Timestamp:  r.Timestamp,
		Severity:   audit.Severity(r.Severity),
		Category:   audit.Category(r.Category),
	}
	if len(r.Details) > 0 {
		if err := json.Unmarshal(r.Details, &e.Details); err != nil {
			e.Details = nil
		}
	}
	if len(r.Tags) > 0 {
		if err := json.Unmarshal(r.Tags, &e.Tags); err != nil {
			e.Tags = nil
		}
	}
	e.Bookkeeping = shared.AuditInfo{
		CreatedAt: r.CreatedAt,
		CreatedBy: r.CreatedBy,
		Version:   r.Version,
	}
	if r.UpdatedAt.Valid {
		t := r.UpdatedAt.Time
		e.Bookkeeping.UpdatedAt = &t
	}
	if r.DeletedAt.Valid {
		t := r.DeletedAt.Time
		e.Bookkeeping.DeletedAt = &t
	}
	if r.DeletedBy.Valid {
		s := r.DeletedBy.String
		e.Bookkeeping.DeletedBy = &s
	}
	return e
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
