// Package dsn provides Data Source Name construction utilities for database connections.
package dsn

import (
	"fmt"

	"github.com/AffiliateAggregator/AffiliateAggregator/internal/config"
)

// Create builds the Data Source Name for the configured gorm engine.
func Create(cfg *config.Config) (string, error) {
	switch cfg.DB.GormEngine {
	case "", "mysql":
		return mysqlDSN(cfg), nil
	case "postgres":
		return postgresDSN(cfg), nil
	default:
		return "", fmt.Errorf("%w: %s", config.ErrUnsupportedGormEngine, cfg.DB.GormEngine)
	}
}

func mysqlDSN(cfg *config.Config) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
		cfg.DB.User,
		cfg.DB.Password,
		cfg.DB.Host,
		cfg.DB.Port,
		cfg.DB.Name,
		cfg.DB.Extras,
	)
}

func postgresDSN(cfg *config.Config) string {
	out := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s",
		cfg.DB.Host,
		cfg.DB.Port,
		cfg.DB.User,
		cfg.DB.Password,
		cfg.DB.Name,
	)

	if cfg.DB.Extras != "" {
		out += " " + cfg.DB.Extras
	}

	return out
}
