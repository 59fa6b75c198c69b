package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ebaz7/lepan-crm-sub000/internal/container"
)

// migrateCmd applies pending schema migrations
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long:  `Apply pending migrations for the configured database driver.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		cc := cfg.ToContainerConfig()
		bundle, err := container.OpenDatabase(cmd.Context(), &cc.Database, logger)
		if err != nil {
			return fmt.Errorf("failed to connect database: %w", err)
		}
		defer func() { _ = bundle.Close() }()

		applied, err := container.MigrateDatabase(cmd.Context(), bundle, logger)
		if err != nil {
			return err
		}

		logger.Info("Database migrations completed",
			zap.String("driver", bundle.Driver),
			zap.Int("applied", applied),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
