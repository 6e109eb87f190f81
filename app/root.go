// Package app implements the main application commands.
package app

import (
	"github.com/spf13/cobra"

	"github.com/AffiliateAggregator/AffiliateAggregator/internal/config"
)

var (
	cfg config.Config
	err error

	configPath string // Path to the configuration file directory
)

var rootCmd = &cobra.Command{
	Use:   "affiliate-aggregator",
	Short: "AffiliateAggregator is a multi-tenant affiliate marketplace backend",
	Long: `AffiliateAggregator is a multi-tenant affiliate marketplace backend
with organization scoped role-based access control and TOTP two-factor
authentication.`,
	Args: cobra.OnlyValidArgs,
}

func init() { //nolint: gochecknoinits
	rootCmd.PersistentFlags().StringVar(
		&configPath,
		"config",
		"./",
		"Path to the directory containing main.toml",
	)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
