// Package twofactor provides the self-service JSON API for managing a user's
// two-factor authentication: enrollment, confirmation, disabling and trusted
// devices.
package twofactor

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/AffiliateAggregator/AffiliateAggregator/internal/config"
	"github.com/AffiliateAggregator/AffiliateAggregator/internal/db/models"
	tfa "github.com/AffiliateAggregator/AffiliateAggregator/internal/twofactor"
	"github.com/AffiliateAggregator/AffiliateAggregator/internal/web/handler"
	"github.com/AffiliateAggregator/AffiliateAggregator/internal/web/session"
)

const (
	// Path is the base path for the two-factor settings API.
	Path = handler.APIPath + "/settings/two-factor"
)

// Service provides the two-factor settings API.
type Service struct {
	handler.Service
	cfg       *config.Config
	db        *gorm.DB
	twoFactor *tfa.Service
	validator *validator.Validate
}

// Handler is the exported instance.
var Handler = Service{}

// Init registers routes.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB) {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	s.db = db
	s.cfg = cfg
	s.validator = validator.New()

	issuer := cfg.TwoFactor.Issuer
	if issuer == "" {
		issuer = tfa.DefaultIssuer
	}

	s.twoFactor = tfa.NewService(db, tfa.NewSecretCipher(cfg.TwoFactor.EncryptionKey), issuer)

	app.Route(Path, func(router fiber.Router) {
		router.Get(handler.RouterRootPath, s.Status)
		router.Post("/enable", s.Enable)
		router.Post("/verify", s.Verify)
		router.Post("/disable", s.Disable)
		router.Get("/devices", s.Devices)
		router.Delete("/devices", s.RevokeDevices)
	})
}

// currentUser resolves the signed in user from the session cookie.
func currentUser(c *fiber.Ctx) (*models.User, error) {
	sessionID := c.Cookies("session")
	if sessionID == "" {
		return nil, errors.New("no session")
	}

	sessData := new(session.Data)
	if err := sessData.Read(sessionID); err != nil {
		return nil, err
	}

	if !sessData.SignedIn() {
		return nil, errors.New("not signed in")
	}

	return &sessData.User, nil
}

// statusResponse is the JSON shape of the two-factor status.
type statusResponse struct {
	Enabled              bool `json:"enabled"`
	BackupCodesRemaining int  `json:"backup_codes_remaining"`
}

// Status returns whether two-factor is enabled and how many backup codes are
// left.
func (s *Service) Status(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).SendString("Unauthorized")
	}

	var dbUser models.User
	if err := s.db.First(&dbUser, "id = ?", user.ID).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("Internal Server Error")
	}

	return c.JSON(statusResponse{
		Enabled:              dbUser.TwoFactorEnabled,
		BackupCodesRemaining: len(dbUser.BackupCodes),
	})
}

// enrollmentResponse is the JSON shape of a fresh enrollment. The secret and
// backup codes are only ever shown here, once.
type enrollmentResponse struct {
	Secret      string   `json:"secret"`
	BackupCodes []string `json:"backup_codes"`
	URI         string   `json:"uri"`
}

// Enable starts a two-factor enrollment and returns the provisioning data.
func (s *Service) Enable(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).SendString("Unauthorized")
	}

	enrollment, err := s.twoFactor.Enable(user.ID)
	if err != nil {
		if errors.Is(err, tfa.ErrAlreadyEnabled) {
			return c.Status(fiber.StatusConflict).SendString("Two-factor authentication is already enabled")
		}

		log.Error().Err(err).Str("user_id", user.ID).Msg("failed to start 2FA enrollment")

		return c.Status(fiber.StatusInternalServerError).SendString("Internal Server Error")
	}

	return c.JSON(enrollmentResponse{
		Secret:      enrollment.Secret,
		BackupCodes: enrollment.BackupCodes,
		URI:         enrollment.URI,
	})
}

// codeRequest is the JSON body carrying a TOTP or backup code.
type codeRequest struct {
	Code string `json:"code" validate:"required"`
}

// Verify confirms a pending enrollment with a first TOTP code.
func (s *Service) Verify(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).SendString("Unauthorized")
	}

	in := new(codeRequest)
	if err := c.BodyParser(in); err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("Invalid request body")
	}

	if err := s.validator.Struct(in); err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("Code is required")
	}

	ok, err := s.twoFactor.VerifySetup(user.ID, in.Code)
	if err != nil {
		switch {
		case errors.Is(err, tfa.ErrSetupNotInitiated):
			return c.Status(fiber.StatusConflict).SendString("Two-factor setup was not initiated")
		case errors.Is(err, tfa.ErrAlreadyEnabled):
			return c.Status(fiber.StatusConflict).SendString("Two-factor authentication is already enabled")
		}

		log.Error().Err(err).Str("user_id", user.ID).Msg("failed to verify 2FA setup")

		return c.Status(fiber.StatusInternalServerError).SendString("Internal Server Error")
	}

	if !ok {
		return c.Status(fiber.StatusBadRequest).SendString("Invalid code")
	}

	return c.JSON(fiber.Map{"enabled": true})
}

// Disable turns two-factor off. A valid TOTP or backup code is required so a
// hijacked session alone cannot weaken the account.
func (s *Service) Disable(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).SendString("Unauthorized")
	}

	in := new(codeRequest)
	if err := c.BodyParser(in); err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("Invalid request body")
	}

	if err := s.validator.Struct(in); err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("Code is required")
	}

	ok, err := s.twoFactor.Disable(user.ID, in.Code)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("failed to disable 2FA")
		return c.Status(fiber.StatusInternalServerError).SendString("Internal Server Error")
	}

	if !ok {
		return c.Status(fiber.StatusBadRequest).SendString("Invalid code")
	}

	// trusted devices are meaningless without an enrollment
	if _, err := s.twoFactor.RevokeSessions(user.ID); err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("failed to revoke trusted devices")
	}

	return c.JSON(fiber.Map{"enabled": false})
}

// deviceResponse is the JSON shape of a trusted device session.
type deviceResponse struct {
	UserAgent string    `json:"user_agent"`
	IPAddress string    `json:"ip_address"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Devices lists the trusted devices that skip the two-factor prompt.
func (s *Service) Devices(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).SendString("Unauthorized")
	}

	sessions, err := s.twoFactor.Sessions(user.ID)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("failed to list trusted devices")
		return c.Status(fiber.StatusInternalServerError).SendString("Internal Server Error")
	}

	out := make([]deviceResponse, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, deviceResponse{
			UserAgent: sess.UserAgent,
			IPAddress: sess.IPAddress,
			CreatedAt: sess.CreatedAt,
			ExpiresAt: sess.ExpiresAt,
		})
	}

	return c.JSON(out)
}

// RevokeDevices removes all trusted devices of the user.
func (s *Service) RevokeDevices(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).SendString("Unauthorized")
	}

	count, err := s.twoFactor.RevokeSessions(user.ID)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("failed to revoke trusted devices")
		return c.Status(fiber.StatusInternalServerError).SendString("Internal Server Error")
	}

	return c.JSON(fiber.Map{"revoked": count})
}
