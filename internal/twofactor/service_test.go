package twofactor

import (
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/AffiliateAggregator/AffiliateAggregator/internal/db/models"
)

// setupTestDB creates an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "failed to create test database")

	err = db.AutoMigrate(&models.User{}, &models.TwoFactorSession{})
	require.NoError(t, err, "failed to migrate test database")

	return db
}

func setupService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db := setupTestDB(t)
	svc := NewService(db, NewSecretCipher("test-encryption-key"), "AffiliateAggregator")

	return svc, db
}

func createTestUser(t *testing.T, db *gorm.DB, id string) {
	t.Helper()

	err := db.Create(&models.User{
		ID:     id,
		Active: true,
		Email:  id + "@example.com",
	}).Error
	require.NoError(t, err)
}

func loadUser(t *testing.T, db *gorm.DB, id string) models.User {
	t.Helper()

	var user models.User
	require.NoError(t, db.First(&user, "id = ?", id).Error)

	return user
}

// enrollAndConfirm walks a user through the full setup flow and returns the
// plaintext enrollment.
func enrollAndConfirm(t *testing.T, svc *Service, userID string) *Enrollment {
	t.Helper()

	enrollment, err := svc.Enable(userID)
	require.NoError(t, err)

	ok, err := svc.VerifySetup(userID, GenerateCode(enrollment.Secret, time.Now()))
	require.NoError(t, err)
	require.True(t, ok)

	return enrollment
}

func TestService_Enable(t *testing.T) {
	svc, db := setupService(t)
	createTestUser(t, db, "user-1")

	enrollment, err := svc.Enable("user-1")
	require.NoError(t, err)

	assert.Len(t, enrollment.Secret, 32)
	assert.Len(t, enrollment.BackupCodes, BackupCodeCount)
	assert.Contains(t, enrollment.URI, "otpauth://totp/AffiliateAggregator:user-1%40example.com")
	assert.Contains(t, enrollment.URI, "secret="+enrollment.Secret)

	user := loadUser(t, db, "user-1")

	// Setup is pending: secret stored encrypted, flag still off.
	assert.False(t, user.TwoFactorEnabled)
	require.NotNil(t, user.TwoFactorSecret)
	assert.NotEqual(t, enrollment.Secret, *user.TwoFactorSecret)
	assert.Len(t, user.BackupCodes, BackupCodeCount)
	assert.NotContains(t, user.BackupCodes, enrollment.BackupCodes[0])
}

func TestService_Enable_UserNotFound(t *testing.T) {
	svc, _ := setupService(t)

	_, err := svc.Enable("ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestService_Enable_AlreadyEnabled(t *testing.T) {
	svc, db := setupService(t)
	createTestUser(t, db, "user-1")
	enrollAndConfirm(t, svc, "user-1")

	_, err := svc.Enable("user-1")
	assert.ErrorIs(t, err, ErrAlreadyEnabled)
}

func TestService_VerifySetup(t *testing.T) {
	svc, db := setupService(t)
	createTestUser(t, db, "user-1")

	enrollment, err := svc.Enable("user-1")
	require.NoError(t, err)

	ok, err := svc.VerifySetup("user-1", GenerateCode(enrollment.Secret, time.Now()))
	require.NoError(t, err)
	assert.True(t, ok)

	assert.True(t, loadUser(t, db, "user-1").TwoFactorEnabled)
}

func TestService_VerifySetup_WrongCodeLeavesSetupPending(t *testing.T) {
	svc, db := setupService(t)
	createTestUser(t, db, "user-1")

	_, err := svc.Enable("user-1")
	require.NoError(t, err)

	ok, err := svc.VerifySetup("user-1", "000000")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.False(t, loadUser(t, db, "user-1").TwoFactorEnabled)
}

func TestService_VerifySetup_NotInitiated(t *testing.T) {
	svc, db := setupService(t)
	createTestUser(t, db, "user-1")

	_, err := svc.VerifySetup("user-1", "123456")
	assert.ErrorIs(t, err, ErrSetupNotInitiated)

	_, err = svc.VerifySetup("ghost", "123456")
	assert.ErrorIs(t, err, ErrSetupNotInitiated)
}

func TestService_VerifySetup_AlreadyEnabled(t *testing.T) {
	svc, db := setupService(t)
	createTestUser(t, db, "user-1")
	enrollment := enrollAndConfirm(t, svc, "user-1")

	_, err := svc.VerifySetup("user-1", GenerateCode(enrollment.Secret, time.Now()))
	assert.ErrorIs(t, err, ErrAlreadyEnabled)
}

func TestService_Verify_TOTP(t *testing.T) {
	svc, db := setupService(t)
	createTestUser(t, db, "user-1")
	enrollment := enrollAndConfirm(t, svc, "user-1")

	ok, err := svc.Verify("user-1", GenerateCode(enrollment.Secret, time.Now()))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Verify("user-1", "000000")
	require.NoError(t, err)
	assert.False(t, ok)
}

// Security-relevant negatives return false, never an error: callers must
// not be able to distinguish "no such user" from "2FA off" from "bad code".
func TestService_Verify_SilentNegatives(t *testing.T) {
	svc, db := setupService(t)
	createTestUser(t, db, "user-1")

	ok, err := svc.Verify("user-1", "123456")
	require.NoError(t, err)
	assert.False(t, ok, "2FA not enabled")

	ok, err = svc.Verify("ghost", "123456")
	require.NoError(t, err)
	assert.False(t, ok, "unknown user")
}

func TestService_Verify_BackupCodeSingleUse(t *testing.T) {
	svc, db := setupService(t)
	createTestUser(t, db, "user-1")
	enrollment := enrollAndConfirm(t, svc, "user-1")

	code := enrollment.BackupCodes[3]

	ok, err := svc.Verify("user-1", code)
	require.NoError(t, err)
	assert.True(t, ok)

	// The used code is gone from storage.
	assert.Len(t, loadUser(t, db, "user-1").BackupCodes, BackupCodeCount-1)

	// And cannot be spent twice.
	ok, err = svc.Verify("user-1", code)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_Verify_BackupCodeNormalization(t *testing.T) {
	svc, db := setupService(t)
	createTestUser(t, db, "user-1")
	enrollment := enrollAndConfirm(t, svc, "user-1")

	// Lowercase without the dash must still match.
	raw := enrollment.BackupCodes[0]
	sloppy := strings.ToLower(raw[:4] + raw[5:])

	ok, err := svc.Verify("user-1", sloppy)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestService_Disable(t *testing.T) {
	svc, db := setupService(t)
	createTestUser(t, db, "user-1")
	enrollment := enrollAndConfirm(t, svc, "user-1")

	// A wrong code leaves everything in place.
	ok, err := svc.Disable("user-1", "000000")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, loadUser(t, db, "user-1").TwoFactorEnabled)

	ok, err = svc.Disable("user-1", GenerateCode(enrollment.Secret, time.Now()))
	require.NoError(t, err)
	assert.True(t, ok)

	user := loadUser(t, db, "user-1")
	assert.False(t, user.TwoFactorEnabled)
	assert.Nil(t, user.TwoFactorSecret)
	assert.Empty(t, user.BackupCodes)

	// Once disabled, verification degrades to false.
	ok, err = svc.Verify("user-1", GenerateCode(enrollment.Secret, time.Now()))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_Sessions(t *testing.T) {
	svc, db := setupService(t)
	createTestUser(t, db, "user-1")

	token, err := svc.CreateSession("user-1", "test-agent", "203.0.113.7")
	require.NoError(t, err)
	assert.Regexp(t, "^[0-9a-f]{64}$", token)

	ok, err := svc.VerifySession("user-1", token)
	require.NoError(t, err)
	assert.True(t, ok)

	// Wrong token and wrong user both fail silently.
	ok, err = svc.VerifySession("user-1", "deadbeef")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.VerifySession("user-2", token)
	require.NoError(t, err)
	assert.False(t, ok)

	var session models.TwoFactorSession
	require.NoError(t, db.First(&session, "token = ?", token).Error)
	assert.Equal(t, "test-agent", session.UserAgent)
	assert.Equal(t, "203.0.113.7", session.IPAddress)
	assert.WithinDuration(t, time.Now().Add(SessionDuration), session.ExpiresAt, time.Minute)
}

func TestService_Sessions_Expiry(t *testing.T) {
	svc, _ := setupService(t)

	token, err := svc.CreateSession("user-1", "", "")
	require.NoError(t, err)

	// Jump past the 30-day lifetime.
	svc.now = func() time.Time { return time.Now().Add(SessionDuration + time.Hour) }

	ok, err := svc.VerifySession("user-1", token)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_SessionsAndRevoke(t *testing.T) {
	svc, _ := setupService(t)

	first, err := svc.CreateSession("user-1", "agent-a", "")
	require.NoError(t, err)
	_, err = svc.CreateSession("user-1", "agent-b", "")
	require.NoError(t, err)
	_, err = svc.CreateSession("user-2", "agent-c", "")
	require.NoError(t, err)

	sessions, err := svc.Sessions("user-1")
	require.NoError(t, err)
	assert.Len(t, sessions, 2)

	count, err := svc.RevokeSessions("user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	ok, err := svc.VerifySession("user-1", first)
	require.NoError(t, err)
	assert.False(t, ok)

	// other users keep their devices
	sessions, err = svc.Sessions("user-2")
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestService_CleanupSessions(t *testing.T) {
	svc, db := setupService(t)

	expired, err := svc.CreateSession("user-1", "", "")
	require.NoError(t, err)

	// Age the first session past its expiry, then mint a fresh one.
	err = db.Model(&models.TwoFactorSession{}).
		Where("token = ?", expired).
		Update("expires_at", time.Now().Add(-time.Hour)).Error
	require.NoError(t, err)

	fresh, err := svc.CreateSession("user-2", "", "")
	require.NoError(t, err)

	count, err := svc.CleanupSessions()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	ok, err := svc.VerifySession("user-2", fresh)
	require.NoError(t, err)
	assert.True(t, ok)

	var remaining int64
	require.NoError(t, db.Model(&models.TwoFactorSession{}).Count(&remaining).Error)
	assert.Equal(t, int64(1), remaining)
}
