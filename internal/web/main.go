package web

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/template/html/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/AffiliateAggregator/AffiliateAggregator/internal/auth"
	"github.com/AffiliateAggregator/AffiliateAggregator/internal/config"
	"github.com/AffiliateAggregator/AffiliateAggregator/internal/db/models"
	fiberlogger "github.com/AffiliateAggregator/AffiliateAggregator/internal/logger/adapter/fiber"
	"github.com/AffiliateAggregator/AffiliateAggregator/internal/rbac"
	oidchandler "github.com/AffiliateAggregator/AffiliateAggregator/internal/web/handler/auth/oidc"
	"github.com/AffiliateAggregator/AffiliateAggregator/internal/web/handler/login"
	"github.com/AffiliateAggregator/AffiliateAggregator/internal/web/handler/logout"
	"github.com/AffiliateAggregator/AffiliateAggregator/internal/web/handler/org/audit"
	"github.com/AffiliateAggregator/AffiliateAggregator/internal/web/handler/org/member"
	settingstwofactor "github.com/AffiliateAggregator/AffiliateAggregator/internal/web/handler/settings/twofactor"
	authmiddleware "github.com/AffiliateAggregator/AffiliateAggregator/internal/web/middleware/auth"
	"github.com/AffiliateAggregator/AffiliateAggregator/internal/web/session"
)

// CheckAlivePath answers load balancer health probes.
const CheckAlivePath = "/checkalive"

// Service represents the web service.
type Service struct {
	App          *fiber.App
	cfg          *config.Config
	fastShutDown bool
	alive        atomic.Bool
	db           *gorm.DB
	authService  *auth.Service
}

// Start starts the web service on the given address.
func (s *Service) Start(addr string) error {
	var doneFiber = make(chan bool)

	go func() {
		if err := s.App.Listen(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Msgf("fiber listen error: %v", err)
		}

		doneFiber <- true
	}()

	<-doneFiber // wait for fiber to stop

	return nil
}

// WaitShutdown blocks until SIGINT or SIGTERM, then shuts the server down.
func (s *Service) WaitShutdown() {
	irqSig := make(chan os.Signal, 1)
	signal.Notify(irqSig, syscall.SIGINT, syscall.SIGTERM)

	sig := <-irqSig
	log.Info().Msgf("shutdown request (signal: %v)", sig)

	// Graceful shutdown for reverse proxies: fail the health probe first so
	// the LB stops sending traffic, then stop accepting connections.
	if !s.fastShutDown {
		log.Info().Msgf(
			"graceful shutdown: returning 503 on %s for %d seconds to drain the load balancer",
			CheckAlivePath, s.cfg.Webserver.ShutDownTime,
		)

		s.alive.Store(false)
		time.Sleep(time.Duration(s.cfg.Webserver.ShutDownTime) * time.Second)
	}

	serverShutdown := make(chan struct{})

	go func() {
		log.Info().Msg("stopping http server ...")

		err := s.App.Shutdown()
		if err != nil {
			log.Error().Err(err).Msg("")
		}

		serverShutdown <- struct{}{}
	}()

	<-serverShutdown
	log.Info().Msg("http server was stopped ... good bye...")
}

// New creates a new web service with the given configuration.
func New(cfg *config.Config, db *gorm.DB) *Service {
	if cfg == nil {
		panic("config cannot be nil")
	}

	if db == nil {
		panic("db cannot be nil")
	}

	httpFS := http.FS(templateEmbedFS{embeddedTemplates})
	templateEngine := html.NewFileSystem(httpFS, ".gohtml")

	// in dev mode, use local filesystem for templates
	if cfg.DevMode {
		templateEngine = html.New("./internal/web/templates", ".gohtml")
		templateEngine.ShouldReload = true

		log.Warn().Msg("dev mode enabled: using local filesystem for templates")
	}

	app := fiber.New(
		fiber.Config{
			ReadBufferSize: 8192,
			AppName:        cfg.Title,
			CaseSensitive:  true,
			Prefork:        false,
			Immutable:      true,
			Views:          templateEngine,
		},
	)

	// access logging
	app.Use(fiberlogger.New(fiberlogger.Config{
		Config:            cfg.Log,
		CacheControlError: "max-age=0",
		CheckAliveURI:     CheckAlivePath,
	}))

	// serve embedded static files
	app.Use("/static",
		filesystem.New(
			filesystem.Config{
				Root:       http.FS(embeddedStaticFiles),
				PathPrefix: "static",
				Browse:     cfg.Webserver.BrowseStatic,
			},
		),
	)

	service := &Service{
		cfg: cfg,
		App: app,
		db:  db,
	}
	service.alive.Store(true)

	app.Get(CheckAlivePath, func(c *fiber.Ctx) error {
		if !service.alive.Load() {
			return c.SendStatus(fiber.StatusServiceUnavailable)
		}

		return c.SendString("OK")
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// session based auth middleware
	app.Use(authmiddleware.Middleware)

	authService := auth.NewService(db)
	service.authService = authService

	// init handlers (they register their own routes with permission checks)
	if err := login.Handler.Init(app, cfg, db); err != nil {
		log.Fatal().Err(err).Msg("failed to init login handler")
	}

	logout.Handler.Init(app, cfg)
	oidchandler.Handler.Init(app, cfg, db)
	settingstwofactor.Handler.Init(app, cfg, db)
	member.Handler.Init(app, cfg, db, authService)
	audit.Handler.Init(app, cfg, db, authService)

	app.Get("/", service.Home)

	return service
}

// Home renders the signed in user's organizations and roles.
func (s *Service) Home(c *fiber.Ctx) error {
	user, ok := c.Locals("CurrentUser").(models.User)
	if !ok {
		return c.Redirect(login.Path)
	}

	memberships, err := s.authService.Memberships(user.ID)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("failed to load memberships")
		return c.Status(fiber.StatusInternalServerError).SendString("Internal Server Error")
	}

	sessData := new(session.Data)
	if err := sessData.Read(c.Cookies("session")); err != nil {
		return c.Redirect(login.Path)
	}

	type orgRow struct {
		Name    string
		Slug    string
		Role    string
		Current bool
	}

	rows := make([]orgRow, 0, len(memberships))
	for _, m := range memberships {
		rows = append(rows, orgRow{
			Name:    m.Organization.Name,
			Slug:    m.Organization.Slug,
			Role:    rbac.GetRoleName(m.Role),
			Current: m.OrganizationID == sessData.OrganizationID,
		})
	}

	return c.Render("home", fiber.Map{
		"title":         s.cfg.Title,
		"user":          user,
		"organizations": rows,
	})
}
