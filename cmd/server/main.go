package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rifftube/internal/app"
	"rifftube/internal/config"
	"rifftube/internal/db"
	"rifftube/internal/logger"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "server",
		Short:         "RiffTube auth API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), migrateCmd())

	if err := root.ExecuteContext(context.Background()); err != nil {
		logger.Fatal("command failed", map[string]any{
			"error": err.Error(),
		})
	}
}

func loadConfig() config.Config {
	cfg := config.Load()
	logger.Init(cfg.Production())
	return cfg
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig()

			ctx, stop := signal.NotifyContext(
				cmd.Context(),
				os.Interrupt,
				syscall.SIGTERM,
			)
			defer stop()

			application, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}

			go func() {
				if err := application.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Fatal("http server failed", map[string]any{
						"error": err.Error(),
					})
				}
			}()

			logger.Info("rifftube api started", map[string]any{
				"port": cfg.AppPort,
				"env":  cfg.Env,
			})

			<-ctx.Done() // wait for Ctrl+C

			logger.Info("shutdown signal received", nil)

			shutdownCtx, cancel := context.WithTimeout(
				context.Background(),
				10*time.Second,
			)
			defer cancel()

			if err := application.Shutdown(shutdownCtx); err != nil {
				return err
			}

			logger.Info("rifftube api stopped cleanly", nil)
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig()
			if cfg.DatabaseDSN == "" {
				return errors.New("DATABASE_DSN is required")
			}

			sqlDB, err := db.Open(cmd.Context(), cfg.DatabaseDSN)
			if err != nil {
				return err
			}
			defer sqlDB.Close()

			if err := db.Migrate(cmd.Context(), sqlDB); err != nil {
				return err
			}
			logger.Info("migrations applied", nil)
			return nil
		},
	}
}
