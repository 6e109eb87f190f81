// Package daemon wires configuration, database, session storage and the web
// service into a runnable application.
package daemon

import (
	"fmt"

	"github.com/gofiber/storage"
	sessionmysql "github.com/gofiber/storage/mysql/v2"
	sessionpostgres "github.com/gofiber/storage/postgres/v3"
	"github.com/rs/zerolog/log"
	gormmysql "gorm.io/driver/mysql"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/AffiliateAggregator/AffiliateAggregator/internal/config"
	"github.com/AffiliateAggregator/AffiliateAggregator/internal/db/dsn"
	"github.com/AffiliateAggregator/AffiliateAggregator/internal/db/models"
	"github.com/AffiliateAggregator/AffiliateAggregator/internal/web"
	"github.com/AffiliateAggregator/AffiliateAggregator/internal/web/session"
)

// Daemon represents the main application daemon.
type Daemon struct {
	cfg        *config.Config
	webService *web.Service
}

// Start starts the Daemon's web service and blocks until shutdown.
func (d *Daemon) Start() error {
	go d.webService.WaitShutdown()

	return d.webService.Start(fmt.Sprintf(":%d", d.cfg.Webserver.Port))
}

// New creates a new Daemon instance with the provided configuration.
func New(cfg *config.Config) *Daemon {
	if cfg == nil {
		log.Fatal().Msg("config is nil")
		return nil
	}

	connDSN, err := dsn.Create(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid database configuration")
		return nil
	}

	var dialector gorm.Dialector

	switch cfg.DB.GormEngine {
	case "postgres":
		dialector = gormpostgres.Open(connDSN)
	default:
		dialector = gormmysql.Open(connDSN)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
		return nil
	}

	if err = db.AutoMigrate(
		&models.User{},
		&models.Organization{},
		&models.OrganizationMember{},
		&models.TwoFactorSession{},
		&models.AuditLog{},
	); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
		return nil
	}

	seed(cfg, db)

	session.Init(newSessionStorage(cfg))

	return &Daemon{
		cfg:        cfg,
		webService: web.New(cfg, db),
	}
}

// newSessionStorage creates the fiber session storage on the same database
// the application uses.
func newSessionStorage(cfg *config.Config) storage.Storage {
	if cfg.DB.GormEngine == "postgres" {
		return sessionpostgres.New(sessionpostgres.Config{
			Host:     cfg.DB.Host,
			Port:     cfg.DB.Port,
			Username: cfg.DB.User,
			Password: cfg.DB.Password,
			Database: cfg.DB.Name,
			Table:    "sessions",
		})
	}

	return sessionmysql.New(sessionmysql.Config{
		Host:     cfg.DB.Host,
		Port:     cfg.DB.Port,
		Username: cfg.DB.User,
		Password: cfg.DB.Password,
		Database: cfg.DB.Name,
		Table:    "sessions",
	})
}
