package auth

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/AffiliateAggregator/AffiliateAggregator/internal/rbac"
	"github.com/AffiliateAggregator/AffiliateAggregator/internal/web/session"
)

// LocalsContextKey is the fiber locals key holding the resolved rbac.Context.
const LocalsContextKey = "rbacContext"

// ContextFromLocals returns the rbac.Context a Require* middleware stored for
// this request, or nil when no middleware ran.
func ContextFromLocals(c *fiber.Ctx) *rbac.Context {
	ctx, _ := c.Locals(LocalsContextKey).(*rbac.Context)

	return ctx
}

// resolveContext reads the session cookie and loads the rbac context for the
// user's current organization. A non-nil error is already a completed fiber
// response.
func resolveContext(c *fiber.Ctx, authService *Service) (*rbac.Context, error) {
	sessionID := c.Cookies("session")
	if sessionID == "" {
		return nil, c.Status(fiber.StatusUnauthorized).SendString("Unauthorized")
	}

	sessionData := new(session.Data)
	if err := sessionData.Read(sessionID); err != nil {
		return nil, c.Status(fiber.StatusUnauthorized).SendString("Unauthorized")
	}

	if !sessionData.SignedIn() || sessionData.OrganizationID == "" {
		return nil, c.Status(fiber.StatusUnauthorized).SendString("Unauthorized")
	}

	ctx, err := authService.ContextFor(sessionData.User.ID, sessionData.OrganizationID)
	if errors.Is(err, ErrNotAMember) {
		log.Warn().Str("user_id", sessionData.User.ID).Str("organization_id", sessionData.OrganizationID).
			Msg("user has no active membership")

		return nil, c.Status(fiber.StatusForbidden).SendString("Forbidden: You are not a member of this organization")
	}

	if err != nil {
		log.Error().Err(err).Str("user_id", sessionData.User.ID).
			Msg("failed to load membership")

		return nil, c.Status(fiber.StatusInternalServerError).SendString("Internal Server Error")
	}

	c.Locals(LocalsContextKey, ctx)

	return ctx, nil
}

// deny writes a 403 carrying the evaluator's reason.
func deny(c *fiber.Ctx, ctx *rbac.Context, result rbac.CheckResult) error {
	log.Warn().Str("user_id", ctx.UserID).Str("role", ctx.Role).Str("reason", result.Reason).
		Msg("access denied")

	return c.Status(fiber.StatusForbidden).SendString("Forbidden: " + result.Reason)
}

// RequirePermission creates Fiber middleware that requires a specific permission.
func RequirePermission(authService *Service, permission rbac.Permission) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, err := resolveContext(c, authService)
		if err != nil {
			return err
		}

		if result := rbac.HasPermission(*ctx, permission); !result.Allowed {
			return deny(c, ctx, result)
		}

		return c.Next()
	}
}

// RequireAnyPermission creates Fiber middleware that requires at least one of the given permissions.
func RequireAnyPermission(authService *Service, permissions ...rbac.Permission) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, err := resolveContext(c, authService)
		if err != nil {
			return err
		}

		if result := rbac.HasAnyPermission(*ctx, permissions); !result.Allowed {
			return deny(c, ctx, result)
		}

		return c.Next()
	}
}

// RequireAllPermissions creates Fiber middleware that requires all the given permissions.
func RequireAllPermissions(authService *Service, permissions ...rbac.Permission) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, err := resolveContext(c, authService)
		if err != nil {
			return err
		}

		if result := rbac.HasAllPermissions(*ctx, permissions); !result.Allowed {
			return deny(c, ctx, result)
		}

		return c.Next()
	}
}

// RequireMinimumRole creates Fiber middleware that requires a role rank.
func RequireMinimumRole(authService *Service, minimumRole string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, err := resolveContext(c, authService)
		if err != nil {
			return err
		}

		if result := rbac.HasMinimumRole(*ctx, minimumRole); !result.Allowed {
			return deny(c, ctx, result)
		}

		return c.Next()
	}
}
