// Package auth provides authentication and authorization for the application.
//
// Two authentication sources are supported:
//   - Local database authentication with Argon2id password hashing
//   - OpenID Connect (OIDC) authentication with external identity providers
//
// # Authorization
//
// Authorization is organization scoped. A user acts in an organization
// through an OrganizationMember record carrying a role and optional explicit
// permission overrides. The Service loads the active membership and builds an
// rbac.Context; all permission decisions are delegated to the rbac package.
//
// # Middleware
//
// Fiber middleware functions are provided for route protection:
//   - RequirePermission: protect routes requiring a specific permission
//   - RequireAnyPermission: protect routes requiring any of several permissions
//   - RequireAllPermissions: protect routes requiring all of several permissions
//   - RequireMinimumRole: protect routes requiring a role rank
//
// The middleware stores the resolved rbac.Context in fiber locals under
// LocalsContextKey so handlers can run further checks without a second
// database round trip.
//
// Example usage:
//
//	authService := auth.NewService(db)
//
//	app.Get("/api/organization/members",
//	    auth.RequirePermission(authService, rbac.PermManageUsers),
//	    handler,
//	)
package auth
