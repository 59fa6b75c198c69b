package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ebaz7/lepan-crm-sub000/internal/container"
)

// serveCmd starts the HTTP API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long: `Start the docflow API server.
The server listens on the configured host and port and stops
gracefully on SIGINT or SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		logger.Info("Starting docflow",
			zap.String("database_driver", cfg.Database.Driver),
			zap.Int("port", cfg.Server.Port),
			zap.Bool("auth_enabled", cfg.Auth.Enabled),
		)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		ctr, err := container.NewContainer(cfg.ToContainerConfig(), logger)
		if err != nil {
			return fmt.Errorf("failed to create container: %w", err)
		}
		if err := ctr.Start(ctx); err != nil {
			_ = ctr.Close()
			return fmt.Errorf("failed to start container: %w", err)
		}
		defer func() {
			if err := ctr.Close(); err != nil {
				logger.Error("Container close failed", zap.Error(err))
			}
		}()

		server, err := ctr.NewHTTPServer()
		if err != nil {
			return err
		}

		// Start blocks until ctx is cancelled, then shuts down gracefully
		if err := server.Start(ctx); err != nil {
			return fmt.Errorf("server error: %w", err)
		}

		logger.Info("Server exited")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
