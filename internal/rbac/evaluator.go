package rbac

import (
	"fmt"
	"time"
)

// Context is a request-scoped value carrying a member's identity, tenant,
// role, and explicit permission overrides. Callers build it from data they
// already fetched from storage; the evaluator never loads anything itself.
type Context struct {
	// UserID identifies the member being evaluated.
	UserID string
	// OrganizationID identifies the tenant the evaluation happens in.
	OrganizationID string
	// Role is the member's role id within the organization.
	Role string
	// Permissions are explicit, additive grants independent of the role.
	// There is no deny mechanism; overrides can only widen access.
	Permissions []string
}

// CheckResult is the structured outcome of a permission check.
// Denials carry a human readable Reason and never an error.
type CheckResult struct {
	// Allowed reports whether the check passed.
	Allowed bool
	// Reason explains a denial; empty when Allowed is true.
	Reason string
}

var allowed = CheckResult{Allowed: true}

// NewContext builds an evaluation context. Role and permission values are
// not validated: an unknown role simply evaluates to no role permissions
// downstream.
func NewContext(userID, organizationID, role string, permissions []string) Context {
	return Context{
		UserID:         userID,
		OrganizationID: organizationID,
		Role:           role,
		Permissions:    permissions,
	}
}

// HasPermission checks whether the context holds a single permission,
// either as an explicit override or through its role. Explicit grants are
// checked first; they can add access but never revoke what the role grants.
func HasPermission(ctx Context, permission Permission) CheckResult {
	for _, p := range ctx.Permissions {
		if p == string(permission) {
			return allowed
		}
	}

	for _, p := range GetRolePermissions(ctx.Role) {
		if p == permission {
			return allowed
		}
	}

	return CheckResult{
		Allowed: false,
		Reason:  fmt.Sprintf("User does not have permission: %s", permission),
	}
}

// HasAnyPermission checks whether the context holds at least one of the
// given permissions. It short-circuits on the first success.
func HasAnyPermission(ctx Context, permissions []Permission) CheckResult {
	for _, permission := range permissions {
		if HasPermission(ctx, permission).Allowed {
			return allowed
		}
	}

	return CheckResult{
		Allowed: false,
		Reason:  "User does not have any of the required permissions",
	}
}

// HasAllPermissions checks whether the context holds every given permission.
// It short-circuits on the first failure and names the missing permission.
func HasAllPermissions(ctx Context, permissions []Permission) CheckResult {
	for _, permission := range permissions {
		if !HasPermission(ctx, permission).Allowed {
			return CheckResult{
				Allowed: false,
				Reason:  fmt.Sprintf("User missing required permission: %s", permission),
			}
		}
	}

	return allowed
}

// HasMinimumRole checks whether the context's role ranks at least as high
// as minimumRole.
func HasMinimumRole(ctx Context, minimumRole string) CheckResult {
	if HasHigherOrEqualRole(ctx.Role, minimumRole) {
		return allowed
	}

	return CheckResult{
		Allowed: false,
		Reason:  fmt.Sprintf("User role %s is below required role %s", ctx.Role, minimumRole),
	}
}

// ValidateAction is the composite gate for an action. When minimumRole is
// non-empty it must pass first; only then are requiredPermissions checked,
// all of which must hold. Passing an empty role and no permissions always
// allows.
func ValidateAction(ctx Context, requiredPermissions []Permission, minimumRole string) CheckResult {
	if minimumRole != "" {
		if res := HasMinimumRole(ctx, minimumRole); !res.Allowed {
			return res
		}
	}

	if len(requiredPermissions) > 0 {
		if res := HasAllPermissions(ctx, requiredPermissions); !res.Allowed {
			return res
		}
	}

	return allowed
}

// Can is the ergonomic boolean gate for handlers. With no permissions it
// allows, with one it behaves like HasPermission, with several it requires
// all of them.
func Can(ctx Context, permissions ...Permission) bool {
	switch len(permissions) {
	case 0:
		return true
	case 1:
		return HasPermission(ctx, permissions[0]).Allowed
	default:
		return HasAllPermissions(ctx, permissions).Allowed
	}
}

// IsRole reports whether the context's role is literally one of the given
// ids. No hierarchy is applied.
func IsRole(ctx Context, roleIDs ...string) bool {
	for _, id := range roleIDs {
		if ctx.Role == id {
			return true
		}
	}

	return false
}

// IsOwner reports whether the context belongs to the organization owner.
func IsOwner(ctx Context) bool {
	return ctx.Role == RoleOwner
}

// IsAdminOrAbove reports whether the context's role ranks admin or higher.
func IsAdminOrAbove(ctx Context) bool {
	return HasHigherOrEqualRole(ctx.Role, RoleAdmin)
}

// CanManageUser checks whether the manager context may act on a member with
// the given role in the given organization. Cross-tenant management is
// always denied, the manager must hold manage_users, and the manager's role
// must rank at least as high as the target's. Note the asymmetry with
// CanManageRole: the rank comparison here is >=, so managing a same-ranked
// member is allowed, and viewer is not special-cased beyond lacking
// manage_users.
func CanManageUser(managerCtx Context, targetRole, targetOrgID string) CheckResult {
	if managerCtx.OrganizationID != targetOrgID {
		return CheckResult{
			Allowed: false,
			Reason:  "Cannot manage users in different organization",
		}
	}

	if res := HasPermission(managerCtx, PermManageUsers); !res.Allowed {
		return res
	}

	if !HasHigherOrEqualRole(managerCtx.Role, targetRole) {
		return CheckResult{
			Allowed: false,
			Reason: fmt.Sprintf("Cannot manage user with role %s while having role %s",
				targetRole, managerCtx.Role),
		}
	}

	return allowed
}

// GetAvailablePermissions returns the deduplicated union of role-derived and
// explicit permissions. Intended for UI feature flagging, not enforcement.
func GetAvailablePermissions(ctx Context) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(ctx.Permissions))

	for _, p := range GetRolePermissions(ctx.Role) {
		if !seen[string(p)] {
			seen[string(p)] = true
			out = append(out, string(p))
		}
	}

	for _, p := range ctx.Permissions {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	return out
}

// GetGrantablePermissions returns the permissions the context could in
// principle hand to someone else. Only the role's own set counts; explicit
// overrides are not grantable.
func GetGrantablePermissions(ctx Context) []Permission {
	return GetRolePermissions(ctx.Role)
}

// AuditLogData is a structured audit entry describing an RBAC-relevant
// action. The evaluator only formats it; persisting is the caller's job.
type AuditLogData struct {
	// Action names what happened (e.g. "member_updated").
	Action string
	// ResourceType is the kind of resource acted on, fixed to "user".
	ResourceType string
	// ResourceID identifies the target user, empty when not applicable.
	ResourceID string
	// PerformedBy is the acting member's user id.
	PerformedBy string
	// Details carries the acting role, an RFC 3339 timestamp, and any
	// caller supplied fields.
	Details map[string]any
}

// NewAuditLogData builds an audit entry for an action performed under the
// given context. Caller supplied details are merged with the acting role and
// the current timestamp; caller keys win on collision.
func NewAuditLogData(action string, ctx Context, targetUserID string, details map[string]any) AuditLogData {
	merged := map[string]any{
		"role":      ctx.Role,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range details {
		merged[k] = v
	}

	return AuditLogData{
		Action:       action,
		ResourceType: "user",
		ResourceID:   targetUserID,
		PerformedBy:  ctx.UserID,
		Details:      merged,
	}
}
