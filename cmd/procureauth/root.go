package main

import (
	"context"
	"fmt"
	"os"

	"github.com/MrEthical07/procureauth/internal/logger"
	"github.com/MrEthical07/procureauth/internal/settings"
	"github.com/MrEthical07/procureauth/store"
	"github.com/spf13/cobra"
)

var (
	flagConfig  string
	flagEnvFile string

	cfg *settings.Settings
	log *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "procureauth",
	Short: "procureauth: authentication service for the procurement ERP",
	Long: `procureauth issues and validates the ERP's session cookies and
manages TOTP second factors.

Get started:
  procureauth serve                       Run the HTTP API
  procureauth hash-password <password>    Print a bcrypt hash
  procureauth migrate-accounts --dry-run  Preview the legacy account copy`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var opts []settings.Option
		if flagConfig != "" {
			opts = append(opts, settings.WithConfigFile(flagConfig))
		}
		if flagEnvFile != "" {
			opts = append(opts, settings.WithEnvFile(flagEnvFile))
		}
		var err error
		cfg, err = settings.Load(opts...)
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}
		lc := cfg.LoggerConfig()
		lc.Output = os.Stderr
		log = logger.New(lc, "procureauth")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: ./config.yml if present)")
	rootCmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", "", "dotenv file (default: ./.env if present)")
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// openStore connects to the configured database and brings the schema up
// to date. The returned func closes the pool.
func openStore(ctx context.Context) (*store.Store, func(), error) {
	db, err := store.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() { _ = sqlDB.Close() }

	s := store.New(db)
	if err := s.Migrate(ctx); err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("migrating schema: %w", err)
	}
	return s, closeFn, nil
}
