package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"maintenance-panel-backend/config"
	"maintenance-panel-backend/internal/db"
	"maintenance-panel-backend/internal/logging"
)

const defaultConfigPath = "./config/config.yaml"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCmd builds the paneld command tree.
func newRootCmd() *cobra.Command {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	root := &cobra.Command{
		Use:           "paneld",
		Short:         "Maintenance administration panel server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", configPath, "path to the YAML config file")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP panel and JSON API",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, logger, err := setup(configPath)
				if err != nil {
					return err
				}
				defer logger.Sync()
				return serve(cmd.Context(), cfg, logger)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or update the database tables and exit",
			RunE: func(_ *cobra.Command, _ []string) error {
				cfg, logger, err := setup(configPath)
				if err != nil {
					return err
				}
				defer logger.Sync()

				gormDB, err := db.Open(&cfg.Database)
				if err != nil {
					return err
				}
				return db.Migrate(gormDB, logger)
			},
		},
		&cobra.Command{
			Use:   "check-config",
			Short: "Validate the configuration and exit",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := config.Load(configPath)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "configuration OK (driver=%s, port=%d, bucket=%s)\n",
					cfg.Database.Driver, cfg.Server.Port, cfg.Storage.Bucket)
				return nil
			},
		},
	)
	return root
}

// setup loads the configuration and builds the logger. Invalid configuration
// prevents startup.
func setup(configPath string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration from %s: %w", configPath, err)
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("configuration loaded", zap.String("path", configPath))
	return cfg, logger, nil
}
