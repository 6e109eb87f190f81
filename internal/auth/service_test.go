package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/AffiliateAggregator/AffiliateAggregator/internal/db/models"
	"github.com/AffiliateAggregator/AffiliateAggregator/internal/rbac"
)

func seedMembership(t *testing.T, db *gorm.DB, userID, orgID, role, status string, overrides []string) {
	t.Helper()

	require.NoError(t, db.Create(&models.Organization{ID: orgID, Name: orgID, Slug: orgID}).Error)
	require.NoError(t, db.Create(&models.User{ID: userID, Active: true, Email: userID + "@example.com"}).Error)
	require.NoError(t, db.Create(&models.OrganizationMember{
		OrganizationID: orgID,
		UserID:         userID,
		Role:           role,
		Permissions:    overrides,
		Status:         status,
	}).Error)
}

func TestService_ContextFor(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)

	seedMembership(t, db, "user-1", "org-1", rbac.RoleManager, models.MemberStatusActive,
		[]string{string(rbac.PermManageUsers)})

	ctx, err := svc.ContextFor("user-1", "org-1")
	require.NoError(t, err)

	assert.Equal(t, "user-1", ctx.UserID)
	assert.Equal(t, "org-1", ctx.OrganizationID)
	assert.Equal(t, rbac.RoleManager, ctx.Role)
	assert.Equal(t, []string{string(rbac.PermManageUsers)}, ctx.Permissions)
}

func TestService_ContextFor_NotAMember(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)

	_, err := svc.ContextFor("user-1", "org-1")
	assert.ErrorIs(t, err, ErrNotAMember)
}

func TestService_ContextFor_InvitedDoesNotGrantAccess(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)

	seedMembership(t, db, "user-1", "org-1", rbac.RoleAdmin, models.MemberStatusInvited, nil)

	_, err := svc.ContextFor("user-1", "org-1")
	assert.ErrorIs(t, err, ErrNotAMember)
}

func TestService_HasPermission(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)

	seedMembership(t, db, "user-1", "org-1", rbac.RoleViewer, models.MemberStatusActive, nil)

	ok, err := svc.HasPermission("user-1", "org-1", rbac.PermViewAnalytics)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.HasPermission("user-1", "org-1", rbac.PermManagePrograms)
	require.NoError(t, err)
	assert.False(t, ok)

	// No membership at all is a denial, not an error.
	ok, err = svc.HasPermission("stranger", "org-1", rbac.PermViewAnalytics)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_Memberships(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)

	seedMembership(t, db, "user-1", "org-1", rbac.RoleOwner, models.MemberStatusActive, nil)
	require.NoError(t, db.Create(&models.Organization{ID: "org-2", Name: "org-2", Slug: "org-2"}).Error)
	require.NoError(t, db.Create(&models.OrganizationMember{
		OrganizationID: "org-2",
		UserID:         "user-1",
		Role:           rbac.RoleMember,
		Status:         models.MemberStatusInvited,
	}).Error)

	members, err := svc.Memberships("user-1")
	require.NoError(t, err)
	require.Len(t, members, 1, "invited memberships are excluded")
	assert.Equal(t, "org-1", members[0].OrganizationID)
	assert.Equal(t, "org-1", members[0].Organization.Slug)
}
