package models

import "time"

// Member status values.
const (
	// MemberStatusActive marks a membership whose invitation was accepted.
	MemberStatusActive = "active"
	// MemberStatusInvited marks a membership that is still pending acceptance.
	MemberStatusInvited = "invited"
)

// OrganizationMember links a user to an organization with a role and
// optional explicit permission overrides. The role id references the closed
// rbac catalog; overrides are additive grants on top of the role and are
// stored as a JSON list.
type OrganizationMember struct {
	// ID is the unique identifier for the membership.
	ID string `gorm:"primaryKey;size:36"`
	// OrganizationID is the organization this membership belongs to.
	OrganizationID string `gorm:"size:36;not null;uniqueIndex:idx_org_user"`
	// UserID is the member's user id.
	UserID string `gorm:"size:36;not null;uniqueIndex:idx_org_user"`
	// Role is the member's role id within the organization (rbac catalog slug).
	Role string `gorm:"size:50;not null;default:'member'"`
	// Permissions are explicit additive permission overrides.
	Permissions []string `gorm:"serializer:json"`
	// Status is the membership status (active or invited).
	Status string `gorm:"size:20;not null;default:'active'"`
	// Organization is the associated organization (loaded via foreign key).
	Organization Organization `gorm:"foreignKey:OrganizationID;constraint:OnDelete:CASCADE"`
	// User is the associated user (loaded via foreign key).
	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	// InvitedAt is the timestamp the invitation was sent.
	InvitedAt *time.Time
	// AcceptedAt is the timestamp the invitation was accepted.
	AcceptedAt *time.Time
	// CreatedAt is the timestamp when the membership was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the membership was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the OrganizationMember model.
func (OrganizationMember) TableName() string {
	return "organization_members"
}
