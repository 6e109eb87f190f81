// Package auth provides authentication middleware for the web application.
//
// The middleware handles session validation and automatic redirection for
// unauthenticated requests. It also adds the current user to the request
// context for use in handlers and templates.
//
// The middleware performs the following tasks:
//   - Validates session cookies and redirects to login if invalid
//   - Returns 401 instead of redirecting for /api routes
//   - Keeps sessions awaiting a two-factor code away from everything but the
//     code entry page
//   - Adds current user information to fiber.Locals for template access
//   - Allows public access to login, logout, OIDC and health endpoints
//   - Prevents redirect loops on authentication pages
//
// Usage:
//
//	app.Use(authmiddleware.Middleware)
//
// The middleware expects sessions to be managed by the session package
// and will redirect unauthenticated users to the login handler path.
package auth
