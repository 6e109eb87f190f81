package twofactor

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/AffiliateAggregator/AffiliateAggregator/internal/db/models"
	"github.com/AffiliateAggregator/AffiliateAggregator/internal/uniuri"
)

// SessionDuration is how long a trusted-device session stays valid.
const SessionDuration = 30 * 24 * time.Hour

// hexLower is the charset for trusted-device tokens (256 bits as 64 hex chars).
var hexLower = []byte("0123456789abcdef")

// Enrollment is the material returned when 2FA setup is initiated. The
// secret and backup codes are shown to the user exactly once; only their
// encrypted forms are stored.
type Enrollment struct {
	// Secret is the plaintext base32 TOTP secret.
	Secret string
	// BackupCodes are the plaintext single-use recovery codes.
	BackupCodes []string
	// URI is the otpauth:// provisioning URI for QR display.
	URI string
}

// Service drives per-user two-factor state over the database. Misuse of the
// state machine returns domain errors; failed verifications return false
// with a nil error so callers cannot leak which failure mode occurred.
//
// The service performs read-modify-write on the user row (secret, enabled
// flag, backup codes). Callers get per-user isolation from the wrapping
// transaction used for backup-code consumption; concurrent setup requests
// for the same user are not additionally serialized here.
type Service struct {
	db     *gorm.DB
	cipher *SecretCipher
	issuer string
	now    func() time.Time
}

// NewService creates a two-factor service. An empty issuer falls back to
// DefaultIssuer.
func NewService(db *gorm.DB, cipher *SecretCipher, issuer string) *Service {
	if issuer == "" {
		issuer = DefaultIssuer
	}

	return &Service{
		db:     db,
		cipher: cipher,
		issuer: issuer,
		now:    time.Now,
	}
}

// Enable initiates 2FA setup for a user: generates a secret and backup
// codes, stores them encrypted, and returns the plaintext enrollment for
// one-time display. The enabled flag is NOT set yet; the user must confirm
// with VerifySetup first. Returns ErrAlreadyEnabled if 2FA is already on and
// ErrUserNotFound for an unknown user.
func (s *Service) Enable(userID string) (*Enrollment, error) {
	var user models.User

	err := s.db.First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if user.TwoFactorEnabled {
		return nil, ErrAlreadyEnabled
	}

	secret := GenerateSecret()
	backupCodes := GenerateBackupCodes()
	uri := ProvisioningURI(secret, user.Email, s.issuer)

	encSecret, err := s.cipher.Encrypt(secret)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt secret: %w", err)
	}

	encCodes := make([]string, 0, len(backupCodes))

	for _, code := range backupCodes {
		enc, encErr := s.cipher.Encrypt(code)
		if encErr != nil {
			return nil, fmt.Errorf("failed to encrypt backup code: %w", encErr)
		}

		encCodes = append(encCodes, enc)
	}

	err = s.db.Model(&models.User{}).
		Where("id = ?", userID).
		Select("two_factor_secret", "backup_codes").
		Updates(models.User{TwoFactorSecret: &encSecret, BackupCodes: encCodes}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to store enrollment: %w", err)
	}

	log.Info().Str("user_id", userID).Msg("2FA setup initiated")

	return &Enrollment{
		Secret:      secret,
		BackupCodes: backupCodes,
		URI:         uri,
	}, nil
}

// VerifySetup confirms a pending enrollment. On a valid code the enabled
// flag is set and 2FA becomes active. Returns ErrSetupNotInitiated if no
// pending secret exists and ErrAlreadyEnabled if the enrollment was already
// confirmed; a wrong code just returns false.
func (s *Service) VerifySetup(userID, code string) (bool, error) {
	var user models.User

	err := s.db.First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, ErrSetupNotInitiated
	}

	if err != nil {
		return false, fmt.Errorf("failed to load user: %w", err)
	}

	if user.TwoFactorSecret == nil {
		return false, ErrSetupNotInitiated
	}

	if user.TwoFactorEnabled {
		return false, ErrAlreadyEnabled
	}

	secret, err := s.cipher.Decrypt(*user.TwoFactorSecret)
	if err != nil {
		return false, fmt.Errorf("failed to decrypt secret: %w", err)
	}

	if !verifyAt(secret, code, s.now()) {
		return false, nil
	}

	err = s.db.Model(&models.User{}).
		Where("id = ?", userID).
		Update("two_factor_enabled", true).Error
	if err != nil {
		return false, fmt.Errorf("failed to enable 2FA: %w", err)
	}

	log.Info().Str("user_id", userID).Msg("2FA enabled successfully")

	return true, nil
}

// Verify checks a second factor at login: the TOTP code first, then the
// remaining backup codes. A matching backup code is removed before the
// check reports success, so it can never be accepted twice. Returns false
// with no error when the user is unknown or 2FA is not enabled; the caller
// only learns "not authenticated".
func (s *Service) Verify(userID, code string) (bool, error) {
	var user models.User

	err := s.db.First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("failed to load user: %w", err)
	}

	if !user.TwoFactorEnabled || user.TwoFactorSecret == nil {
		return false, nil
	}

	secret, err := s.cipher.Decrypt(*user.TwoFactorSecret)
	if err != nil {
		return false, fmt.Errorf("failed to decrypt secret: %w", err)
	}

	if verifyAt(secret, code, s.now()) {
		return true, nil
	}

	return s.consumeBackupCode(userID, code)
}

// consumeBackupCode scans the user's encrypted backup codes for a match
// against the normalized input and removes the matched code. The
// read-modify-write runs in one transaction so two concurrent attempts
// cannot both spend the same code.
func (s *Service) consumeBackupCode(userID, code string) (bool, error) {
	formatted := normalizeBackupCode(code)
	matched := false

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var user models.User

		if err := tx.First(&user, "id = ?", userID).Error; err != nil {
			return fmt.Errorf("failed to load user: %w", err)
		}

		for i, encrypted := range user.BackupCodes {
			backupCode, err := s.cipher.Decrypt(encrypted)
			if err != nil {
				return fmt.Errorf("failed to decrypt backup code: %w", err)
			}

			if backupCode != formatted {
				continue
			}

			remaining := make([]string, 0, len(user.BackupCodes)-1)
			remaining = append(remaining, user.BackupCodes[:i]...)
			remaining = append(remaining, user.BackupCodes[i+1:]...)

			if err := tx.Model(&models.User{}).
				Where("id = ?", userID).
				Select("backup_codes").
				Updates(models.User{BackupCodes: remaining}).Error; err != nil {
				return fmt.Errorf("failed to remove backup code: %w", err)
			}

			matched = true

			log.Info().Str("user_id", userID).Int("remaining_codes", len(remaining)).
				Msg("backup code used")

			return nil
		}

		return nil
	})
	if err != nil {
		return false, err
	}

	return matched, nil
}

// Disable turns 2FA off after a successful Verify with the supplied code.
// On success the secret is cleared, the flag reset, and all backup codes
// dropped. A failed verification returns false without touching anything.
func (s *Service) Disable(userID, code string) (bool, error) {
	ok, err := s.Verify(userID, code)
	if err != nil || !ok {
		return false, err
	}

	err = s.db.Model(&models.User{}).
		Where("id = ?", userID).
		Select("two_factor_enabled", "two_factor_secret", "backup_codes").
		Updates(models.User{TwoFactorEnabled: false, TwoFactorSecret: nil, BackupCodes: []string{}}).Error
	if err != nil {
		return false, fmt.Errorf("failed to disable 2FA: %w", err)
	}

	log.Info().Str("user_id", userID).Msg("2FA disabled")

	return true, nil
}

// CreateSession mints a trusted-device token for a user who just passed a
// second-factor check, valid for SessionDuration. The device presents the
// token to skip future 2FA prompts.
func (s *Service) CreateSession(userID, userAgent, ipAddress string) (string, error) {
	token := uniuri.NewLenChars(64, hexLower)

	session := models.TwoFactorSession{
		UserID:    userID,
		Token:     token,
		ExpiresAt: s.now().Add(SessionDuration),
		UserAgent: userAgent,
		IPAddress: ipAddress,
	}

	if err := s.db.Create(&session).Error; err != nil {
		return "", fmt.Errorf("failed to create 2FA session: %w", err)
	}

	return token, nil
}

// VerifySession reports whether a matching, non-expired trusted-device
// session exists. Missing and expired sessions are indistinguishable to the
// caller.
func (s *Service) VerifySession(userID, token string) (bool, error) {
	var count int64

	err := s.db.Model(&models.TwoFactorSession{}).
		Where("user_id = ? AND token = ? AND expires_at > ?", userID, token, s.now()).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to query 2FA session: %w", err)
	}

	return count > 0, nil
}

// Sessions lists the user's non-expired trusted-device sessions, newest
// first.
func (s *Service) Sessions(userID string) ([]models.TwoFactorSession, error) {
	var sessions []models.TwoFactorSession

	err := s.db.Where("user_id = ? AND expires_at > ?", userID, s.now()).
		Order("created_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list 2FA sessions: %w", err)
	}

	return sessions, nil
}

// RevokeSessions deletes all trusted-device sessions of a user and returns
// how many were removed. Every device will be asked for a code on its next
// login.
func (s *Service) RevokeSessions(userID string) (int64, error) {
	res := s.db.Where("user_id = ?", userID).Delete(&models.TwoFactorSession{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to revoke 2FA sessions: %w", res.Error)
	}

	log.Info().Str("user_id", userID).Int64("count", res.RowsAffected).Msg("trusted devices revoked")

	return res.RowsAffected, nil
}

// CleanupSessions deletes all expired trusted-device sessions and returns
// how many were removed. It is meant to run from the cleanup-sessions
// command on a schedule, not from an internal loop.
func (s *Service) CleanupSessions() (int64, error) {
	res := s.db.Where("expires_at < ?", s.now()).Delete(&models.TwoFactorSession{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete expired 2FA sessions: %w", res.Error)
	}

	return res.RowsAffected, nil
}
