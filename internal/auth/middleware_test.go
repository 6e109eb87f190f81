package auth

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/AffiliateAggregator/AffiliateAggregator/internal/db/models"
	"github.com/AffiliateAggregator/AffiliateAggregator/internal/rbac"
	"github.com/AffiliateAggregator/AffiliateAggregator/internal/web/session"
)

// memStorage is a map backed session storage for tests.
type memStorage struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStorage() *memStorage {
	return &memStorage{data: map[string][]byte{}}
}

func (m *memStorage) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.data[key], nil
}

func (m *memStorage) Set(key string, val []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = val

	return nil
}

func (m *memStorage) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)

	return nil
}

func (m *memStorage) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = map[string][]byte{}

	return nil
}

func (m *memStorage) Close() error { return nil }

// signIn writes a signed in session and returns the session id.
func signIn(t *testing.T, userID, orgID string) string {
	t.Helper()

	sessionID, err := session.GenerateSessionID()
	require.NoError(t, err)

	data := session.Data{
		User:           models.User{ID: userID},
		OrganizationID: orgID,
	}
	require.NoError(t, data.Write(sessionID, time.Hour))

	return sessionID
}

func setupMiddlewareApp(t *testing.T, db *gorm.DB) *fiber.App {
	t.Helper()

	session.Init(newMemStorage())

	svc := NewService(db)
	app := fiber.New()

	app.Get("/members", RequirePermission(svc, rbac.PermManageUsers), func(c *fiber.Ctx) error {
		ctx := ContextFromLocals(c)
		require.NotNil(t, ctx)

		return c.SendString("role:" + ctx.Role)
	})
	app.Delete("/organization", RequireMinimumRole(svc, rbac.RoleOwner), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	return app
}

func doRequest(t *testing.T, app *fiber.App, method, target, sessionID string) (int, string) {
	t.Helper()

	req := httptest.NewRequest(method, target, nil)
	if sessionID != "" {
		req.AddCookie(&http.Cookie{Name: "session", Value: sessionID})
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, string(body)
}

func TestRequirePermission_NoSession(t *testing.T) {
	app := setupMiddlewareApp(t, setupTestDB(t))

	status, _ := doRequest(t, app, fiber.MethodGet, "/members", "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestRequirePermission_Allowed(t *testing.T) {
	db := setupTestDB(t)
	app := setupMiddlewareApp(t, db)

	seedMembership(t, db, "user-1", "org-1", rbac.RoleAdmin, models.MemberStatusActive, nil)

	status, body := doRequest(t, app, fiber.MethodGet, "/members", signIn(t, "user-1", "org-1"))
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "role:admin", body)
}

func TestRequirePermission_DeniedWithReason(t *testing.T) {
	db := setupTestDB(t)
	app := setupMiddlewareApp(t, db)

	// A bare member has no manage_users permission.
	seedMembership(t, db, "user-1", "org-1", rbac.RoleMember, models.MemberStatusActive, nil)

	status, body := doRequest(t, app, fiber.MethodGet, "/members", signIn(t, "user-1", "org-1"))
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Contains(t, body, "does not have permission")
}

func TestRequirePermission_NotAMember(t *testing.T) {
	db := setupTestDB(t)
	app := setupMiddlewareApp(t, db)

	require.NoError(t, db.Create(&models.User{ID: "user-1", Active: true, Email: "u@example.com"}).Error)

	status, _ := doRequest(t, app, fiber.MethodGet, "/members", signIn(t, "user-1", "org-1"))
	assert.Equal(t, fiber.StatusForbidden, status)
}

func TestRequireMinimumRole(t *testing.T) {
	db := setupTestDB(t)
	app := setupMiddlewareApp(t, db)

	seedMembership(t, db, "admin-1", "org-1", rbac.RoleAdmin, models.MemberStatusActive, nil)
	seedMembership(t, db, "owner-1", "org-2", rbac.RoleOwner, models.MemberStatusActive, nil)

	status, _ := doRequest(t, app, fiber.MethodDelete, "/organization", signIn(t, "admin-1", "org-1"))
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = doRequest(t, app, fiber.MethodDelete, "/organization", signIn(t, "owner-1", "org-2"))
	assert.Equal(t, fiber.StatusOK, status)
}
