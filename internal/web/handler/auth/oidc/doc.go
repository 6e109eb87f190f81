// Package oidc provides the sign-in flow against an external OpenID Connect
// provider.
//
// The flow follows the standard authorization code grant: /auth/oidc/login
// redirects to the provider with a short-lived state token, the provider
// calls back to /auth/oidc/callback, and a successful callback signs the user
// in. Accounts are matched by the token's subject claim; unknown subjects get
// a fresh user record.
//
// Multi-factor enforcement is the identity provider's job for these accounts,
// so the local two-factor prompt is skipped.
package oidc
