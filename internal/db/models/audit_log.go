package models

import "time"

// AuditLog records a member-management action for compliance review.
// Rows are built from rbac.AuditLogData by the web handlers and are append
// only; there is no update path.
type AuditLog struct {
	// ID is the unique identifier for the audit entry.
	ID uint64 `gorm:"primaryKey"`
	// OrganizationID is the tenant the action happened in.
	OrganizationID string `gorm:"size:36;not null;index"`
	// Action names what happened (e.g. "member_updated").
	Action string `gorm:"size:100;not null"`
	// ResourceType is the kind of resource acted on.
	ResourceType string `gorm:"size:50;not null"`
	// ResourceID identifies the target resource, empty when not applicable.
	ResourceID string `gorm:"size:36"`
	// PerformedBy is the acting member's user id.
	PerformedBy string `gorm:"size:36;not null;index"`
	// Details carries structured context (acting role, timestamp, handler fields).
	Details map[string]any `gorm:"serializer:json"`
	// CreatedAt is the timestamp when the entry was written (managed by GORM).
	CreatedAt time.Time
}

// TableName specifies the database table name for the AuditLog model.
func (AuditLog) TableName() string {
	return "audit_logs"
}
