package app

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	gormmysql "gorm.io/driver/mysql"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/AffiliateAggregator/AffiliateAggregator/internal/config"
	"github.com/AffiliateAggregator/AffiliateAggregator/internal/db/dsn"
	"github.com/AffiliateAggregator/AffiliateAggregator/internal/logger"
	"github.com/AffiliateAggregator/AffiliateAggregator/internal/twofactor"
)

func init() { //nolint: gochecknoinits
	rootCmd.AddCommand(cleanupCmd)
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup-sessions",
	Short: "Delete expired trusted device sessions",
	Long: `Delete expired trusted device sessions from the database.
Intended to be run periodically, e.g. from cron.`,
	PreRun: func(_ *cobra.Command, _ []string) {
		if cfg, err = config.ReadConfig(configPath); err != nil {
			panic(err)
		}

		if err = logger.Init(cfg.Log); err != nil {
			panic(err)
		}
	},
	RunE: func(_ *cobra.Command, _ []string) error {
		connDSN, err := dsn.Create(&cfg)
		if err != nil {
			return err
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
			return err
		}

		svc := twofactor.NewService(
			db,
			twofactor.NewSecretCipher(cfg.TwoFactor.EncryptionKey),
			cfg.TwoFactor.Issuer,
		)

		count, err := svc.CleanupSessions()
		if err != nil {
			return err
		}

		log.Info().Int64("count", count).Msg("expired trusted device sessions deleted")

		return nil
	},
}
