package auth

import (
	"testing"

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

	err = db.AutoMigrate(&models.User{}, &models.Organization{}, &models.OrganizationMember{})
	require.NoError(t, err, "failed to migrate test database")

	return db
}

func TestLocalProvider_CreateAndAuthenticate(t *testing.T) {
	db := setupTestDB(t)
	provider := NewLocalProvider(db)

	user, err := provider.CreateUser("alice@example.com", "Alice", "s3cret-pass")
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, models.AuthSourceLocal, user.AuthSource)
	assert.NotEqual(t, "s3cret-pass", user.Password, "password must be stored hashed")

	got, err := provider.Authenticate("alice@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
}

func TestLocalProvider_AuthenticateFailures(t *testing.T) {
	db := setupTestDB(t)
	provider := NewLocalProvider(db)

	_, err := provider.CreateUser("alice@example.com", "Alice", "s3cret-pass")
	require.NoError(t, err)

	_, err = provider.Authenticate("alice@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidPassword)

	_, err = provider.Authenticate("ghost@example.com", "s3cret-pass")
	assert.ErrorIs(t, err, ErrUserNotFound)

	require.NoError(t, provider.DeactivateUser(mustUserID(t, db, "alice@example.com")))

	_, err = provider.Authenticate("alice@example.com", "s3cret-pass")
	assert.ErrorIs(t, err, ErrUserAccountDisabled)
}

func TestLocalProvider_DuplicateEmail(t *testing.T) {
	db := setupTestDB(t)
	provider := NewLocalProvider(db)

	_, err := provider.CreateUser("alice@example.com", "Alice", "s3cret-pass")
	require.NoError(t, err)

	_, err = provider.CreateUser("alice@example.com", "Other Alice", "other-pass")
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestLocalProvider_ChangePassword(t *testing.T) {
	db := setupTestDB(t)
	provider := NewLocalProvider(db)

	user, err := provider.CreateUser("alice@example.com", "Alice", "old-pass")
	require.NoError(t, err)

	err = provider.ChangePassword(user.ID, "wrong", "new-pass")
	assert.ErrorIs(t, err, ErrInvalidOldPassword)

	require.NoError(t, provider.ChangePassword(user.ID, "old-pass", "new-pass"))

	_, err = provider.Authenticate("alice@example.com", "old-pass")
	assert.ErrorIs(t, err, ErrInvalidPassword)

	_, err = provider.Authenticate("alice@example.com", "new-pass")
	assert.NoError(t, err)
}

func mustUserID(t *testing.T, db *gorm.DB, email string) string {
	t.Helper()

	var user models.User
	require.NoError(t, db.First(&user, "email = ?", email).Error)

	return user.ID
}
