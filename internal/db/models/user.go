package models

import (
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/rs/zerolog/log"
)

// AuthSource represents the authentication source for a user account.
type AuthSource string

const (
	// AuthSourceLocal indicates the user authenticates with a local database password.
	AuthSourceLocal AuthSource = "local"
	// AuthSourceOIDC indicates the user authenticates via OpenID Connect (OIDC).
	AuthSourceOIDC AuthSource = "oidc"
)

// User represents a user account. A user can belong to several organizations
// through OrganizationMember records; roles and permission overrides live on
// the membership, not here. The two-factor fields hold the encrypted TOTP
// secret and the encrypted single-use backup codes managed by the twofactor
// package.
type User struct {
	// ID is the unique identifier for the user.
	ID string `gorm:"primaryKey;size:36"`
	// Active indicates whether the user account can log in.
	Active bool
	// Email is the user's unique email address, also the login identifier.
	Email string `gorm:"unique;size:255;not null"`
	// Name is the user's display name.
	Name string `gorm:"size:255"`
	// Password is the Argon2id hashed password (only used for local authentication).
	Password string `gorm:"size:255"`
	// AuthSource indicates how this user authenticates (local or oidc).
	AuthSource AuthSource `gorm:"type:varchar(20);not null;default:'local'"`
	// ExternalID is the external identifier for OIDC users (sub claim).
	ExternalID string `gorm:"size:255"`
	// TwoFactorEnabled indicates whether a confirmed TOTP enrollment exists.
	// It stays false between setup initiation and setup confirmation.
	TwoFactorEnabled bool
	// TwoFactorSecret is the AES encrypted TOTP secret, nil while 2FA is disabled.
	TwoFactorSecret *string `gorm:"size:255"`
	// BackupCodes are the remaining encrypted single-use recovery codes.
	// The list only shrinks until a new enrollment regenerates it.
	BackupCodes []string `gorm:"serializer:json"`
	// CreatedAt is the timestamp when the user was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the user was last updated (managed by GORM).
	UpdatedAt time.Time
	// DeletedAt is the soft delete timestamp (nil if not deleted, managed by GORM).
	DeletedAt *time.Time
}

// HashPassword hashes a plaintext password using the Argon2id algorithm.
// This function should be used when creating or updating local user passwords.
func HashPassword(password string) string {
	hashedPassword, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		log.Fatal().Msgf("failed to hash password: %v", err)
	}

	return hashedPassword
}

// VerifyPassword verifies a plaintext password against the user's stored
// hashed password. It uses constant-time comparison to prevent timing attacks.
func (u *User) VerifyPassword(password string) bool {
	match, err := argon2id.ComparePasswordAndHash(password, u.Password)
	if err != nil {
		log.Error().Msgf("failed to verify password: %v", err)
		return false
	}

	return match
}
