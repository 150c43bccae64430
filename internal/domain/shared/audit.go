package shared

import (
	"time"
)

// AuditInfo contains common bookkeeping fields for retained entities.
type AuditInfo struct {
	CreatedAt time.Time
	CreatedBy string
	UpdatedAt *time.Time
	UpdatedBy *string
	DeletedAt *time.Time
	DeletedBy *string
	Version   int
}

// NewAuditInfo creates a new AuditInfo with creation data.
func NewAuditInfo(createdBy string) AuditInfo {
	return AuditInfo{
		CreatedAt: time.Now(),
		CreatedBy: createdBy,
		Version:   1,
	}
}

// Update marks the entity as updated.
func (a *AuditInfo) Update(updatedBy string) {
	now := time.Now()
	a.UpdatedAt = &now
	a.UpdatedBy = &updatedBy
	a.Version++
}

// SoftDelete marks the entity as deleted. Retained entities are never
// hard-deleted inside the retention window.
func (a *AuditInfo) SoftDelete(deletedBy string) {
	now := time.Now()
	a.DeletedAt = &now
	a.DeletedBy = &deletedBy
}

// IsDeleted returns true if the entity has been soft deleted.
func (a *AuditInfo) IsDeleted() bool {
	return a.DeletedAt != nil
}
