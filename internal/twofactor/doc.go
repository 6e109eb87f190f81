// Package twofactor implements time-based one-time password (TOTP) second
// factor authentication for user accounts, per RFC 6238.
//
// The algorithmic core is pure: secret generation, base32 codec, HMAC-SHA1
// code derivation with dynamic truncation, a verification window of one
// period in either direction, backup code generation, and the otpauth://
// provisioning URI consumed by authenticator apps. The URI shape is a wire
// contract with Google Authenticator, Authy, and friends and must not
// change.
//
// Around the core, Service drives the per-user state machine
//
//	Disabled -> PendingVerification -> Enabled -> Disabled
//
// persisting the encrypted secret, encrypted single-use backup codes, and
// trusted-device session tokens through GORM. Misuse (enabling twice,
// confirming a setup that was never started) surfaces as a domain error;
// authentication failures (wrong code, unknown user at login, expired
// session) degrade silently to false so callers cannot tell the failure
// modes apart.
//
// Secrets are stored AES-256-CBC encrypted with a fixed all-zero IV and a
// key derived by padding the configured key string to 32 bytes. This scheme
// is deliberately weak (equal plaintexts yield equal ciphertexts, no
// authentication tag) but is kept for compatibility with already stored
// ciphertexts; see SecretCipher.
package twofactor
