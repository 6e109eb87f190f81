package models

import "time"

// Organization represents a tenant. All affiliate programs, networks, and
// memberships hang off an organization; cross-organization access is never
// allowed.
type Organization struct {
	// ID is the unique identifier for the organization.
	ID string `gorm:"primaryKey;size:36"`
	// Name is the organization's display name.
	Name string `gorm:"size:255;not null"`
	// Slug is the unique URL-safe identifier.
	Slug string `gorm:"unique;size:100;not null"`
	// CreatedAt is the timestamp when the organization was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the organization was last updated (managed by GORM).
	UpdatedAt time.Time
	// DeletedAt is the soft delete timestamp (nil if not deleted, managed by GORM).
	DeletedAt *time.Time
}

// TableName specifies the database table name for the Organization model.
func (Organization) TableName() string {
	return "organizations"
}
