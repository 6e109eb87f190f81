package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NewID returns a fresh identifier for primary keys.
func NewID() string {
	return uuid.NewString()
}

// BeforeCreate assigns an id when none was set by the caller.
func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = NewID()
	}

	return nil
}

// BeforeCreate assigns an id when none was set by the caller.
func (o *Organization) BeforeCreate(*gorm.DB) error {
	if o.ID == "" {
		o.ID = NewID()
	}

	return nil
}

// BeforeCreate assigns an id when none was set by the caller.
func (m *OrganizationMember) BeforeCreate(*gorm.DB) error {
	if m.ID == "" {
		m.ID = NewID()
	}

	return nil
}
