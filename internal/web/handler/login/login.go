package login

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/AffiliateAggregator/AffiliateAggregator/internal/auth"
	"github.com/AffiliateAggregator/AffiliateAggregator/internal/config"
	"github.com/AffiliateAggregator/AffiliateAggregator/internal/db/models"
	"github.com/AffiliateAggregator/AffiliateAggregator/internal/twofactor"
	"github.com/AffiliateAggregator/AffiliateAggregator/internal/web/handler"
	"github.com/AffiliateAggregator/AffiliateAggregator/internal/web/session"
)

const (
	// Path is the path to the login page.
	Path = "/login"

	// TwoFactorPath is the path to the two-factor code entry page.
	TwoFactorPath = Path + "/two-factor"

	// TrustedDeviceCookie carries the trusted device token that lets a
	// browser skip the two-factor prompt.
	TrustedDeviceCookie = "trusted_device"
)

// Service is the login handler service.
type Service struct {
	handler.Service
	cfg         *config.Config
	db          *gorm.DB
	authService *auth.Service
	twoFactor   *twofactor.Service
}

// Handler is the login handler.
var Handler = Service{}

// Init initializes the login handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB) error {
	if app == nil || cfg == nil || db == nil {
		return errors.New("app or db is nil")
	}

	s.db = db
	s.cfg = cfg
	s.authService = auth.NewService(db)

	issuer := cfg.TwoFactor.Issuer
	if issuer == "" {
		issuer = twofactor.DefaultIssuer
	}

	s.twoFactor = twofactor.NewService(db, twofactor.NewSecretCipher(cfg.TwoFactor.EncryptionKey), issuer)

	// register routes
	app.Route(Path, func(router fiber.Router) {
		router.Get(handler.RouterRootPath, s.Get)
		router.Post(handler.RouterRootPath, s.Post)
	})
	app.Route(TwoFactorPath, func(router fiber.Router) {
		router.Get(handler.RouterRootPath, s.GetTwoFactor)
		router.Post(handler.RouterRootPath, s.PostTwoFactor)
	})

	return nil
}

// Get handles the login page rendering.
func (s *Service) Get(c *fiber.Ctx) error {
	return c.Render("login", fiber.Map{
		"oidc_enabled": s.cfg.OIDC.Enabled,
	})
}

// loginForm is the login page form payload.
type loginForm struct {
	Email    string `form:"email"`
	Password string `form:"password"`
}

// Post handles the login form submission.
func (s *Service) Post(c *fiber.Ctx) error {
	form := new(loginForm)

	if err := c.BodyParser(form); err != nil {
		return s.renderLoginError(c, "Invalid form data")
	}

	dbUser, err := auth.NewLocalProvider(s.db).Authenticate(form.Email, form.Password)
	if err != nil {
		if errors.Is(err, auth.ErrUserAccountDisabled) {
			return s.renderLoginError(c, "Account is inactive")
		}

		return s.renderLoginError(c, "Invalid email or password")
	}

	// a confirmed enrollment demands a code unless this device is trusted
	if dbUser.TwoFactorEnabled && !s.isTrustedDevice(c, dbUser.ID) {
		return s.beginTwoFactor(c, dbUser)
	}

	return s.finishLogin(c, dbUser)
}

// GetTwoFactor handles the two-factor code page rendering.
func (s *Service) GetTwoFactor(c *fiber.Ctx) error {
	return c.Render("twofactor", fiber.Map{})
}

// twoFactorForm is the two-factor page form payload.
type twoFactorForm struct {
	Code     string `form:"code"`
	Remember bool   `form:"remember"`
}

// PostTwoFactor handles the two-factor code submission. It accepts TOTP codes
// and single-use backup codes.
func (s *Service) PostTwoFactor(c *fiber.Ctx) error {
	sessionID := c.Cookies("session")
	if sessionID == "" {
		return c.Redirect(Path)
	}

	sessData := new(session.Data)
	if err := sessData.Read(sessionID); err != nil || !sessData.PendingTwoFactor {
		return c.Redirect(Path)
	}

	form := new(twoFactorForm)
	if err := c.BodyParser(form); err != nil {
		return s.renderTwoFactorError(c, "Invalid form data")
	}

	ok, err := s.twoFactor.Verify(sessData.User.ID, form.Code)
	if err != nil {
		log.Error().Err(err).Str("user_id", sessData.User.ID).Msg("two-factor verification failed")
		return s.renderTwoFactorError(c, "Internal server error")
	}

	if !ok {
		return s.renderTwoFactorError(c, "Invalid code")
	}

	if form.Remember {
		s.rememberDevice(c, sessData.User.ID)
	}

	var dbUser models.User
	if err := s.db.First(&dbUser, "id = ?", sessData.User.ID).Error; err != nil {
		log.Error().Err(err).Str("user_id", sessData.User.ID).Msg("failed to reload user")
		return s.renderTwoFactorError(c, "Internal server error")
	}

	return s.finishLogin(c, &dbUser)
}

// beginTwoFactor parks the login in a pending session and sends the user to
// the code entry page.
func (s *Service) beginTwoFactor(c *fiber.Ctx, dbUser *models.User) error {
	sessionID, err := session.GenerateSessionID()
	if err != nil {
		log.Error().Err(err).Msg("failed to generate session ID")
		return s.renderLoginError(c, "Internal server error")
	}

	pending := &session.Data{
		User:             *dbUser,
		PendingTwoFactor: true,
	}

	if err = pending.Write(sessionID, s.cfg.Webserver.Session.ExpiryTime); err != nil {
		log.Error().Err(err).Msg("failed to write session")
		return s.renderLoginError(c, "Internal server error")
	}

	s.setSessionCookie(c, sessionID)

	return c.Redirect(TwoFactorPath)
}

// finishLogin writes the signed in session and picks the user's first active
// organization as the current one.
func (s *Service) finishLogin(c *fiber.Ctx, dbUser *models.User) error {
	sessionID, err := session.GenerateSessionID()
	if err != nil {
		log.Error().Err(err).Msg("failed to generate session ID")
		return s.renderLoginError(c, "Internal server error")
	}

	var organizationID string

	memberships, err := s.authService.Memberships(dbUser.ID)
	if err != nil {
		log.Error().Err(err).Str("user_id", dbUser.ID).Msg("failed to load memberships")
	} else if len(memberships) > 0 {
		organizationID = memberships[0].OrganizationID
	}

	userSession := &session.Data{
		User:           *dbUser,
		OrganizationID: organizationID,
	}

	if err = userSession.Write(sessionID, s.cfg.Webserver.Session.ExpiryTime); err != nil {
		log.Error().Err(err).Msg("failed to write session")
		return s.renderLoginError(c, "Internal server error")
	}

	s.setSessionCookie(c, sessionID)

	log.Info().Str("user_id", dbUser.ID).Str("organization_id", organizationID).Msg("user logged in")

	return c.Redirect("/")
}

// isTrustedDevice checks the trusted device cookie against stored sessions.
func (s *Service) isTrustedDevice(c *fiber.Ctx, userID string) bool {
	token := c.Cookies(TrustedDeviceCookie)
	if token == "" {
		return false
	}

	ok, err := s.twoFactor.VerifySession(userID, token)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("failed to verify trusted device")
		return false
	}

	return ok
}

// rememberDevice mints a trusted device token so this browser can skip the
// two-factor prompt for the session lifetime.
func (s *Service) rememberDevice(c *fiber.Ctx, userID string) {
	token, err := s.twoFactor.CreateSession(userID, c.Get(fiber.HeaderUserAgent), c.IP())
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("failed to create trusted device session")
		return
	}

	cookie := &fiber.Cookie{
		Name:     TrustedDeviceCookie,
		Value:    token,
		MaxAge:   int(twofactor.SessionDuration.Seconds()),
		Secure:   true,
		HTTPOnly: true,
		SameSite: "Lax",
	}

	if s.cfg.DevMode {
		cookie.Secure = false
	}

	c.Cookie(cookie)
}

func (s *Service) setSessionCookie(c *fiber.Ctx, sessionID string) {
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
}

func (s *Service) renderLoginError(c *fiber.Ctx, message string) error {
	return c.Render("login", fiber.Map{
		"oidc_enabled": s.cfg.OIDC.Enabled,
		"error":        message,
	})
}

func (s *Service) renderTwoFactorError(c *fiber.Ctx, message string) error {
	return c.Render("twofactor", fiber.Map{
		"error": message,
	})
}
