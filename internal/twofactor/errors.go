package twofactor

import "errors"

var (
	// ErrUserNotFound is returned when an enrollment operation references a
	// user that does not exist. Login-time verification never returns it;
	// an unknown user simply fails to verify.
	ErrUserNotFound = errors.New("user not found")

	// ErrAlreadyEnabled is returned when enabling or confirming two-factor
	// authentication for a user that already has it enabled.
	ErrAlreadyEnabled = errors.New("two-factor authentication is already enabled")

	// ErrSetupNotInitiated is returned when confirming a setup that was
	// never started (no pending secret stored for the user).
	ErrSetupNotInitiated = errors.New("two-factor setup not initiated")

	// ErrMalformedCiphertext is returned when a stored secret or backup
	// code cannot be decrypted, typically after corruption or an encryption
	// key change.
	ErrMalformedCiphertext = errors.New("malformed ciphertext")
)
