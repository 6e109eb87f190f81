package rbac

// Permission is an atomic capability tag checked by the evaluator.
// The namespace is flat; grouping happens only through roles.
type Permission string

// Permission constants define the available permissions in the system.
// These are used for role-based access control (RBAC) to restrict access
// to specific resources and actions.
const (
	// PermManageUsers allows managing organization members.
	PermManageUsers Permission = "manage_users"
	// PermInviteUsers allows inviting new members to the organization.
	PermInviteUsers Permission = "invite_users"
	// PermRemoveUsers allows removing members from the organization.
	PermRemoveUsers Permission = "remove_users"
	// PermChangeUserRole allows changing another member's role.
	PermChangeUserRole Permission = "change_user_role"

	// PermManagePrograms allows managing affiliate programs.
	PermManagePrograms Permission = "manage_programs"
	// PermCreatePrograms allows creating affiliate programs.
	PermCreatePrograms Permission = "create_programs"
	// PermEditPrograms allows editing affiliate programs.
	PermEditPrograms Permission = "edit_programs"
	// PermDeletePrograms allows deleting affiliate programs.
	PermDeletePrograms Permission = "delete_programs"

	// PermManageNetworks allows managing affiliate networks.
	PermManageNetworks Permission = "manage_networks"
	// PermCreateNetworks allows creating affiliate networks.
	PermCreateNetworks Permission = "create_networks"
	// PermEditNetworks allows editing affiliate networks.
	PermEditNetworks Permission = "edit_networks"
	// PermDeleteNetworks allows deleting affiliate networks.
	PermDeleteNetworks Permission = "delete_networks"

	// PermViewAnalytics allows viewing analytics dashboards.
	PermViewAnalytics Permission = "view_analytics"
	// PermViewReports allows viewing generated reports.
	PermViewReports Permission = "view_reports"
	// PermExportData allows exporting organization data.
	PermExportData Permission = "export_data"

	// PermManageOrganization allows managing the organization itself.
	PermManageOrganization Permission = "manage_organization"
	// PermEditOrganization allows editing organization settings.
	PermEditOrganization Permission = "edit_organization"
	// PermDeleteOrganization allows deleting the organization.
	PermDeleteOrganization Permission = "delete_organization"
	// PermManageBilling allows managing billing and subscriptions.
	PermManageBilling Permission = "manage_billing"

	// PermViewAuditLog allows viewing the organization audit log.
	PermViewAuditLog Permission = "view_audit_log"
)

// Role ids of the five roles shipped with the application.
const (
	RoleOwner   = "owner"
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleMember  = "member"
	RoleViewer  = "viewer"
)

// Role is an immutable named bundle of permissions.
type Role struct {
	// ID is the role slug used in storage and contexts (e.g. "owner").
	ID string
	// Name is the human readable display name.
	Name string
	// Description explains the role's purpose.
	Description string
	// Permissions is the set of permissions the role grants.
	Permissions []Permission
}

// roles is the closed role catalog, highest rank first.
// Each role's permission set is a subset of the roles ranked above it,
// except for owner-only grants like delete_organization and manage_billing.
var roles = []Role{
	{
		ID:          RoleOwner,
		Name:        "Owner",
		Description: "Full access to organization and all resources",
		Permissions: []Permission{
			PermManageUsers, PermInviteUsers, PermRemoveUsers, PermChangeUserRole,
			PermManagePrograms, PermCreatePrograms, PermEditPrograms, PermDeletePrograms,
			PermManageNetworks, PermCreateNetworks, PermEditNetworks, PermDeleteNetworks,
			PermViewAnalytics, PermViewReports, PermExportData,
			PermManageOrganization, PermEditOrganization, PermDeleteOrganization, PermManageBilling,
			PermViewAuditLog,
		},
	},
	{
		ID:          RoleAdmin,
		Name:        "Administrator",
		Description: "High-level access to manage users and resources",
		Permissions: []Permission{
			PermManageUsers, PermInviteUsers, PermRemoveUsers, PermChangeUserRole,
			PermManagePrograms, PermCreatePrograms, PermEditPrograms, PermDeletePrograms,
			PermManageNetworks, PermCreateNetworks, PermEditNetworks, PermDeleteNetworks,
			PermViewAnalytics, PermViewReports, PermExportData,
			PermEditOrganization,
			PermViewAuditLog,
		},
	},
	{
		ID:          RoleManager,
		Name:        "Manager",
		Description: "Can manage programs and networks, view analytics",
		Permissions: []Permission{
			PermManagePrograms, PermCreatePrograms, PermEditPrograms,
			PermManageNetworks, PermCreateNetworks, PermEditNetworks,
			PermViewAnalytics, PermViewReports, PermExportData,
			PermViewAuditLog,
		},
	},
	{
		ID:          RoleMember,
		Name:        "Member",
		Description: "Can view and edit programs and networks",
		Permissions: []Permission{
			PermManagePrograms, PermEditPrograms,
			PermViewAnalytics, PermViewReports, PermExportData,
		},
	},
	{
		ID:          RoleViewer,
		Name:        "Viewer",
		Description: "Read-only access to programs and analytics",
		Permissions: []Permission{
			PermViewAnalytics, PermViewReports,
		},
	},
}

// roleHierarchy assigns every role a rank. Higher number means more access.
var roleHierarchy = map[string]int{
	RoleViewer:  0,
	RoleMember:  1,
	RoleManager: 2,
	RoleAdmin:   3,
	RoleOwner:   4,
}

// GetRole returns the role with the given id, or nil if the id is unknown.
// Lookup is case-sensitive.
func GetRole(roleID string) *Role {
	for i := range roles {
		if roles[i].ID == roleID {
			return &roles[i]
		}
	}

	return nil
}

// GetAllRoles returns all roles in catalog declaration order (owner first).
func GetAllRoles() []Role {
	out := make([]Role, len(roles))
	copy(out, roles)

	return out
}

// IsValidRole reports whether the given id names a role in the catalog.
func IsValidRole(roleID string) bool {
	return GetRole(roleID) != nil
}

// GetRolePermissions returns the permissions granted by the given role.
// Unknown roles yield an empty list, not an error.
func GetRolePermissions(roleID string) []Permission {
	role := GetRole(roleID)
	if role == nil {
		return []Permission{}
	}

	out := make([]Permission, len(role.Permissions))
	copy(out, role.Permissions)

	return out
}

// GetRoleName returns the display name of the given role,
// or "Unknown Role" if the id is not in the catalog.
func GetRoleName(roleID string) string {
	role := GetRole(roleID)
	if role == nil {
		return "Unknown Role"
	}

	return role.Name
}

// GetRoleDescription returns the description of the given role,
// or an empty string if the id is not in the catalog.
func GetRoleDescription(roleID string) string {
	role := GetRole(roleID)
	if role == nil {
		return ""
	}

	return role.Description
}

// roleRank returns the hierarchy rank of a role id. Unknown roles rank -1,
// below every catalog role.
func roleRank(roleID string) int {
	rank, ok := roleHierarchy[roleID]
	if !ok {
		return -1
	}

	return rank
}

// HasHigherOrEqualRole reports whether userRole ranks at least as high as
// requiredRole. The comparison is reflexive for catalog roles. Unknown roles
// rank -1 on both sides, so an unknown role never satisfies a catalog role,
// but two unknown roles do compare as higher-or-equal to each other.
func HasHigherOrEqualRole(userRole, requiredRole string) bool {
	return roleRank(userRole) >= roleRank(requiredRole)
}

// CanManageRole reports whether managerRole may act on targetRole.
// A manager must rank at least as high as the target, and viewer can never
// manage any role, itself included.
func CanManageRole(managerRole, targetRole string) bool {
	return HasHigherOrEqualRole(managerRole, targetRole) && managerRole != RoleViewer
}
