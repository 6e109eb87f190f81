// Package main provides the entry point for the AffiliateAggregator backend.
// It runs a Fiber based web server with session login, TOTP two-factor
// authentication and organization scoped role-based access control. The
// application uses gorm for data persistence and exposes JSON APIs for
// member management, audit logs and two-factor settings.
package main
