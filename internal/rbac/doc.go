// Package rbac implements role-based access control for organization members.
//
// The package is split in two layers:
//
//   - A closed catalog of roles and permissions. Five roles ship with the
//     application (owner, admin, manager, member, viewer), each bundling a
//     fixed set of permissions, ordered by a total hierarchy rank. The
//     catalog is built once at package initialization and never mutated.
//
//   - A pure evaluator operating on a caller supplied Context. Request
//     handlers load a member's role and explicit permission overrides from
//     the database, build a Context, and ask boolean or structured
//     questions: does this member hold a permission, any of a set, all of a
//     set, at least a role, may it manage another member.
//
// Nothing in this package touches storage or the network, and no function
// returns an error for a business negative. Denials come back as a
// CheckResult with Allowed set to false and a human readable Reason, unknown
// identifiers come back as zero values ("Unknown Role", empty permission
// lists, nil roles). Callers must check these results explicitly.
//
// Example usage:
//
//	ctx := rbac.NewContext(userID, orgID, member.Role, member.Permissions)
//
//	if !rbac.Can(ctx, rbac.PermManagePrograms) {
//	    return fiber.ErrForbidden
//	}
//
//	if res := rbac.CanManageUser(ctx, target.Role, target.OrganizationID); !res.Allowed {
//	    log.Warn().Str("reason", res.Reason).Msg("member management denied")
//	}
package rbac
