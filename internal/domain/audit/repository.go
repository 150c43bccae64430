package audit

import (
	"context"
	"time"
)

// ListParams filters audit log queries.
type ListParams struct {
	UserID    string
	Action    Action
	Category  Category
	Severity  Severity
	Resource  string
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Repository defines persistence for audit log entries. Implementations
// write directly against the primary pool and never route through the
// audited query path.
type Repository interface {
	// CreateBatch persists a batch of entries in one multi-row insert.
	// Either the whole batch is stored or none of it is.
	CreateBatch(ctx context.Context, entries []*Entry) error

	// List returns entries matching the filters along with the total count.
	List(ctx context.Context, params ListParams) ([]*Entry, int64, error)

	// Range returns all non-deleted entries within [from, to] in timestamp order.
	Range(ctx context.Context, from, to time.Time) ([]*Entry, error)

	// SoftDeleteOlderThan marks entries older than the cutoff as deleted
	// and returns the number of entries affected.
	SoftDeleteOlderThan(ctx context.Context, cutoff time.Time, deletedBy string) (int64, error)
}
