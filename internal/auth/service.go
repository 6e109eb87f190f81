package auth

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/AffiliateAggregator/AffiliateAggregator/internal/db/models"
	"github.com/AffiliateAggregator/AffiliateAggregator/internal/rbac"
)

// Service resolves organization memberships into rbac contexts.
type Service struct {
	db *gorm.DB
}

// NewService creates a new auth service.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

const whereActiveMembership = "organization_id = ? AND user_id = ? AND status = ?"

// ContextFor loads the user's active membership in the organization and
// builds an rbac.Context from it. Invited but not yet accepted memberships do
// not grant access.
func (s *Service) ContextFor(userID, organizationID string) (*rbac.Context, error) {
	member, err := s.Membership(userID, organizationID)
	if err != nil {
		return nil, err
	}

	ctx := rbac.NewContext(member.UserID, member.OrganizationID, member.Role, member.Permissions)

	return &ctx, nil
}

// Membership loads the user's active membership record in the organization.
func (s *Service) Membership(userID, organizationID string) (*models.OrganizationMember, error) {
	var member models.OrganizationMember

	err := s.db.Where(whereActiveMembership, organizationID, userID, models.MemberStatusActive).
		First(&member).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotAMember
	}

	if err != nil {
		return nil, fmt.Errorf("failed to query membership: %w", err)
	}

	return &member, nil
}

// Memberships lists all active memberships of a user across organizations.
func (s *Service) Memberships(userID string) ([]models.OrganizationMember, error) {
	var members []models.OrganizationMember

	err := s.db.Preload("Organization").
		Where("user_id = ? AND status = ?", userID, models.MemberStatusActive).
		Find(&members).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}

	return members, nil
}

// HasPermission checks if a user holds a permission within an organization.
// A missing membership is an ordinary denial, not an error.
func (s *Service) HasPermission(userID, organizationID string, permission rbac.Permission) (bool, error) {
	ctx, err := s.ContextFor(userID, organizationID)
	if errors.Is(err, ErrNotAMember) {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	return rbac.HasPermission(*ctx, permission).Allowed, nil
}
