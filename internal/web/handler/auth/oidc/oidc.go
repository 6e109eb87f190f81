package oidc

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/AffiliateAggregator/AffiliateAggregator/internal/auth"
	"github.com/AffiliateAggregator/AffiliateAggregator/internal/config"
	"github.com/AffiliateAggregator/AffiliateAggregator/internal/web/handler"
	"github.com/AffiliateAggregator/AffiliateAggregator/internal/web/session"
)

const (
	// LoginPath is the path to initiate OIDC login.
	LoginPath = handler.RootPath + "auth/oidc/login"

	// CallbackPath is the path for OIDC callback.
	CallbackPath = handler.RootPath + "auth/oidc/callback"

	// stateTTL limits how long an authorization round trip may take.
	stateTTL = 5 * time.Minute
)

// Service is the OIDC handler service.
type Service struct {
	handler.Service
	cfg          *config.Config
	db           *gorm.DB
	oidcProvider *auth.OIDCProvider
	authService  *auth.Service

	mu         sync.Mutex
	stateStore map[string]time.Time
}

// Handler is the OIDC handler.
var Handler = Service{
	stateStore: make(map[string]time.Time),
}

// Init initializes the OIDC handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB) {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	s.db = db
	s.cfg = cfg
	s.authService = auth.NewService(db)

	if !cfg.OIDC.Enabled {
		return
	}

	oidcProvider, err := auth.NewOIDCProvider(context.Background(), &cfg.OIDC, db)
	if err != nil {
		if errors.Is(err, auth.ErrOIDCDisabled) {
			log.Info().Msg("OIDC authentication is disabled by configuration")
		} else {
			log.Warn().Err(err).Msg("Failed to initialize OIDC provider - OIDC authentication will be disabled")
		}

		return // Don't fail, just disable OIDC
	}

	s.oidcProvider = oidcProvider

	log.Info().Msg("OIDC authentication provider initialized")

	app.Get(LoginPath, s.Login)
	app.Get(CallbackPath, s.Callback)
}

// Login initiates the OIDC login flow.
func (s *Service) Login(c *fiber.Ctx) error {
	if s.oidcProvider == nil {
		return c.Status(fiber.StatusServiceUnavailable).SendString("OIDC authentication is not available")
	}

	// Generate state token for CSRF protection
	state, err := auth.GenerateStateToken()
	if err != nil {
		log.Error().Err(err).Msg("failed to generate state token")
		return c.Status(fiber.StatusInternalServerError).SendString("Internal server error")
	}

	s.mu.Lock()
	s.stateStore[state] = time.Now().Add(stateTTL)
	s.mu.Unlock()

	return c.Redirect(s.oidcProvider.GetAuthURL(state))
}

// Callback handles the OIDC callback.
func (s *Service) Callback(c *fiber.Ctx) error {
	if s.oidcProvider == nil {
		return c.Status(fiber.StatusServiceUnavailable).SendString("OIDC authentication is not available")
	}

	code := c.Query("code")
	state := c.Query("state")

	if code == "" || state == "" {
		log.Error().Msg("missing code or state in OIDC callback")
		return c.Status(fiber.StatusBadRequest).SendString("Invalid callback parameters")
	}

	if !s.consumeState(state) {
		log.Error().Msg("invalid or expired state token")
		return c.Status(fiber.StatusBadRequest).SendString("Invalid state token")
	}

	authenticatedUser, err := s.oidcProvider.HandleCallback(context.Background(), code)
	if err != nil {
		log.Error().Err(err).Msg("OIDC authentication failed")
		return c.Status(fiber.StatusUnauthorized).SendString("Authentication failed")
	}

	sessionID, errSession := session.GenerateSessionID()
	if errSession != nil {
		log.Error().Err(errSession).Msg("failed to generate session ID")
		return c.Status(fiber.StatusInternalServerError).SendString("Internal server error")
	}

	var organizationID string

	memberships, err := s.authService.Memberships(authenticatedUser.ID)
	if err != nil {
		log.Error().Err(err).Str("user_id", authenticatedUser.ID).Msg("failed to load memberships")
	} else if len(memberships) > 0 {
		organizationID = memberships[0].OrganizationID
	}

	userSession := &session.Data{
		User:           *authenticatedUser,
		OrganizationID: organizationID,
	}

	if err = userSession.Write(sessionID, s.cfg.Webserver.Session.ExpiryTime); err != nil {
		log.Error().Err(err).Msg("failed to write session")
		return c.Status(fiber.StatusInternalServerError).SendString("Internal server error")
	}

	cookieSettings := &fiber.Cookie{
		Name:     "session",
		Value:    sessionID,
		MaxAge:   int(s.cfg.Webserver.Session.ExpiryTime.Seconds()),
		Secure:   true,
		HTTPOnly: true,
		SameSite: "Lax",
	}

	if s.cfg.DevMode {
		cookieSettings.Secure = false
	}

	c.Cookie(cookieSettings)

	log.Info().Str("user_id", authenticatedUser.ID).Msg("user logged in via OIDC")

	return c.Redirect("/")
}

// consumeState checks and removes a state token. Expired and unknown tokens
// both fail; expired leftovers are dropped while holding the lock.
func (s *Service) consumeState(state string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiration, exists := s.stateStore[state]
	if !exists {
		return false
	}

	delete(s.stateStore, state)

	for k, exp := range s.stateStore {
		if time.Now().After(exp) {
			delete(s.stateStore, k)
		}
	}

	return !time.Now().After(expiration)
}
