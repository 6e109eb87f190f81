package rbac

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ownerCtx() Context {
	return NewContext("user-1", "org-1", RoleOwner, nil)
}

func viewerCtx() Context {
	return NewContext("user-2", "org-1", RoleViewer, nil)
}

func TestHasPermission_RoleGrant(t *testing.T) {
	// Every permission in owner's set must evaluate as allowed.
	for _, p := range GetRolePermissions(RoleOwner) {
		res := HasPermission(ownerCtx(), p)
		assert.True(t, res.Allowed, "owner should hold %s", p)
		assert.Empty(t, res.Reason)
	}
}

func TestHasPermission_Denied(t *testing.T) {
	res := HasPermission(viewerCtx(), PermManageBilling)
	assert.False(t, res.Allowed)
	assert.Contains(t, res.Reason, "manage_billing")
}

func TestHasPermission_ExplicitOverride(t *testing.T) {
	ctx := NewContext("user-2", "org-1", RoleViewer, []string{string(PermExportData)})

	assert.True(t, HasPermission(ctx, PermExportData).Allowed)

	// Overrides are additive only; the role's own grants stay intact.
	assert.True(t, HasPermission(ctx, PermViewAnalytics).Allowed)
}

func TestHasPermission_UnknownRoleHasNoGrants(t *testing.T) {
	ctx := NewContext("user-3", "org-1", "no-such-role", nil)

	for _, p := range GetRolePermissions(RoleOwner) {
		assert.False(t, HasPermission(ctx, p).Allowed)
	}
}

func TestHasAnyPermission(t *testing.T) {
	ctx := viewerCtx()

	res := HasAnyPermission(ctx, []Permission{PermManageBilling, PermViewReports})
	assert.True(t, res.Allowed)

	res = HasAnyPermission(ctx, []Permission{PermManageBilling, PermDeletePrograms})
	assert.False(t, res.Allowed)
	assert.NotEmpty(t, res.Reason)

	// Empty candidate list can never pass.
	assert.False(t, HasAnyPermission(ctx, nil).Allowed)
}

func TestHasAllPermissions(t *testing.T) {
	ctx := viewerCtx()

	assert.True(t, HasAllPermissions(ctx, []Permission{PermViewAnalytics, PermViewReports}).Allowed)

	res := HasAllPermissions(ctx, []Permission{PermViewAnalytics, PermManageBilling, PermExportData})
	assert.False(t, res.Allowed)
	// The first missing permission is named.
	assert.Contains(t, res.Reason, "manage_billing")
}

func TestHasAllPermissions_EmptyListVacuouslyTrue(t *testing.T) {
	assert.True(t, HasAllPermissions(viewerCtx(), nil).Allowed)
	assert.True(t, HasAllPermissions(Context{}, []Permission{}).Allowed)
}

func TestHasMinimumRole(t *testing.T) {
	ctx := NewContext("user-4", "org-1", RoleManager, nil)

	assert.True(t, HasMinimumRole(ctx, RoleMember).Allowed)
	assert.True(t, HasMinimumRole(ctx, RoleManager).Allowed)

	res := HasMinimumRole(ctx, RoleAdmin)
	assert.False(t, res.Allowed)
	assert.Contains(t, res.Reason, RoleManager)
	assert.Contains(t, res.Reason, RoleAdmin)
}

func TestValidateAction_RoleGateShortCircuitsFirst(t *testing.T) {
	// Manager holds manage_programs, but the admin minimum-role gate must
	// fail before the permission check runs.
	ctx := NewContext("user-4", "org-1", RoleManager, nil)

	res := ValidateAction(ctx, []Permission{PermManagePrograms}, RoleAdmin)
	require.False(t, res.Allowed)
	assert.Contains(t, res.Reason, "below required role")
}

func TestValidateAction_PermissionGate(t *testing.T) {
	ctx := NewContext("user-4", "org-1", RoleManager, nil)

	res := ValidateAction(ctx, []Permission{PermManageBilling}, RoleMember)
	assert.False(t, res.Allowed)
	assert.Contains(t, res.Reason, "manage_billing")
}

func TestValidateAction_OmittedArgumentsAllow(t *testing.T) {
	assert.True(t, ValidateAction(viewerCtx(), nil, "").Allowed)
	assert.True(t, ValidateAction(Context{Role: "bogus"}, nil, "").Allowed)
}

func TestCan(t *testing.T) {
	ctx := viewerCtx()

	// Zero permissions always allows.
	assert.True(t, Can(ctx))

	assert.True(t, Can(ctx, PermViewAnalytics))
	assert.False(t, Can(ctx, PermManageUsers))

	// Multiple permissions require all of them.
	assert.True(t, Can(ctx, PermViewAnalytics, PermViewReports))
	assert.False(t, Can(ctx, PermViewAnalytics, PermManageUsers))
}

func TestIsRole(t *testing.T) {
	ctx := NewContext("user-5", "org-1", RoleAdmin, nil)

	assert.True(t, IsRole(ctx, RoleAdmin))
	assert.True(t, IsRole(ctx, RoleOwner, RoleAdmin))

	// Literal match only, no hierarchy.
	assert.False(t, IsRole(ctx, RoleOwner))
	assert.False(t, IsRole(ctx))
}

func TestIsOwnerAndIsAdminOrAbove(t *testing.T) {
	assert.True(t, IsOwner(ownerCtx()))
	assert.False(t, IsOwner(NewContext("u", "o", RoleAdmin, nil)))

	assert.True(t, IsAdminOrAbove(ownerCtx()))
	assert.True(t, IsAdminOrAbove(NewContext("u", "o", RoleAdmin, nil)))
	assert.False(t, IsAdminOrAbove(NewContext("u", "o", RoleManager, nil)))
}

func TestCanManageUser_CrossOrganizationDenied(t *testing.T) {
	// Organization mismatch denies regardless of role.
	res := CanManageUser(ownerCtx(), RoleMember, "org-2")
	assert.False(t, res.Allowed)
	assert.Contains(t, res.Reason, "different organization")
}

func TestCanManageUser_RequiresManageUsersPermission(t *testing.T) {
	res := CanManageUser(viewerCtx(), RoleViewer, "org-1")
	assert.False(t, res.Allowed)
	assert.Contains(t, res.Reason, "manage_users")
}

func TestCanManageUser_RankComparison(t *testing.T) {
	admin := NewContext("user-5", "org-1", RoleAdmin, nil)

	assert.True(t, CanManageUser(admin, RoleMember, "org-1").Allowed)

	// Same rank is allowed here (>= comparison) even though CanManageRole
	// special-cases viewer. The asymmetry is intentional and pinned.
	assert.True(t, CanManageUser(admin, RoleAdmin, "org-1").Allowed)

	res := CanManageUser(admin, RoleOwner, "org-1")
	assert.False(t, res.Allowed)
	assert.Contains(t, res.Reason, RoleOwner)
}

func TestCanManageUser_ExplicitGrantSuffices(t *testing.T) {
	// A member with an explicit manage_users override may manage lower roles.
	ctx := NewContext("user-6", "org-1", RoleMember, []string{string(PermManageUsers)})

	assert.True(t, CanManageUser(ctx, RoleViewer, "org-1").Allowed)
	assert.False(t, CanManageUser(ctx, RoleAdmin, "org-1").Allowed)
}

func TestGetAvailablePermissions_DeduplicatedUnion(t *testing.T) {
	ctx := NewContext("user-7", "org-1", RoleViewer, []string{
		string(PermViewAnalytics), // duplicate of a role grant
		string(PermExportData),
		"custom_flag",
	})

	got := GetAvailablePermissions(ctx)

	assert.Contains(t, got, string(PermViewAnalytics))
	assert.Contains(t, got, string(PermViewReports))
	assert.Contains(t, got, string(PermExportData))
	assert.Contains(t, got, "custom_flag")

	seen := make(map[string]int)
	for _, p := range got {
		seen[p]++
	}
	for p, n := range seen {
		assert.Equal(t, 1, n, "permission %s duplicated", p)
	}
}

func TestGetGrantablePermissions_IgnoresOverrides(t *testing.T) {
	ctx := NewContext("user-7", "org-1", RoleViewer, []string{string(PermManageBilling)})

	got := GetGrantablePermissions(ctx)

	assert.ElementsMatch(t, GetRolePermissions(RoleViewer), got)
	assert.NotContains(t, got, PermManageBilling)
}

func TestNewAuditLogData(t *testing.T) {
	ctx := NewContext("actor-1", "org-1", RoleAdmin, nil)

	entry := NewAuditLogData("member_updated", ctx, "target-1", map[string]any{
		"oldRole": RoleMember,
		"newRole": RoleManager,
	})

	assert.Equal(t, "member_updated", entry.Action)
	assert.Equal(t, "user", entry.ResourceType)
	assert.Equal(t, "target-1", entry.ResourceID)
	assert.Equal(t, "actor-1", entry.PerformedBy)
	assert.Equal(t, RoleAdmin, entry.Details["role"])
	assert.Equal(t, RoleMember, entry.Details["oldRole"])

	ts, ok := entry.Details["timestamp"].(string)
	require.True(t, ok)

	_, err := time.Parse(time.RFC3339, ts)
	assert.NoError(t, err)
}

func TestNewAuditLogData_NoTarget(t *testing.T) {
	entry := NewAuditLogData("member_removed", ownerCtx(), "", nil)

	assert.Empty(t, entry.ResourceID)
	assert.Equal(t, "user-1", entry.PerformedBy)
}
