package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/AffiliateAggregator/AffiliateAggregator/internal/web/handler/login"
	"github.com/AffiliateAggregator/AffiliateAggregator/internal/web/session"
)

// publicPrefixes are reachable without a session.
var publicPrefixes = []string{
	"/static",
	"/logout",
	"/auth/oidc",
	"/checkalive",
	"/metrics",
}

// Middleware is a Fiber middleware that checks for user authentication.
func Middleware(c *fiber.Ctx) error {
	var (
		isLoginPage = IsLoginPage(c)
		isAPI       = IsAPIRequest(c)
	)

	originalURL := strings.ToLower(c.OriginalURL())
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(originalURL, prefix) {
			return c.Next()
		}
	}

	// get session cookie
	loginCookie := c.Cookies("session")

	// if no session cookie, redirect to login page
	if loginCookie == "" && !isLoginPage {
		if isAPI {
			return c.Status(fiber.StatusUnauthorized).SendString("Unauthorized")
		}

		return c.Redirect(login.Path)
	}

	// check session validity
	sessData := new(session.Data)
	if err := sessData.Read(loginCookie); err != nil {
		// If we're already on the login page, don't redirect (would cause loop)
		if isLoginPage {
			return c.Next()
		}

		if isAPI {
			return c.Status(fiber.StatusUnauthorized).SendString("Unauthorized")
		}

		return c.Redirect(login.Path)
	}

	// a session awaiting its two-factor code may only reach the code page
	if sessData.User.ID != "" && sessData.PendingTwoFactor {
		if strings.HasPrefix(originalURL, login.TwoFactorPath) {
			return c.Next()
		}

		if isAPI {
			return c.Status(fiber.StatusUnauthorized).SendString("Unauthorized")
		}

		return c.Redirect(login.TwoFactorPath)
	}

	if sessData.SignedIn() {
		// Add the current user to locals for template access
		c.Locals("CurrentUser", sessData.User)

		if isLoginPage {
			return c.Redirect("/")
		}
	}

	return c.Next()
}

// IsLoginPage checks if the current request is for the login page.
func IsLoginPage(c *fiber.Ctx) bool {
	originalURL := strings.ToLower(c.OriginalURL())
	return strings.HasPrefix(originalURL, login.Path)
}

// IsAPIRequest checks if the current request targets the JSON API.
func IsAPIRequest(c *fiber.Ctx) bool {
	originalURL := strings.ToLower(c.OriginalURL())
	return strings.HasPrefix(originalURL, "/api")
}
