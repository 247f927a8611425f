package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lbrulet/PetTrainerNotificationBot/internal/app"
	"github.com/lbrulet/PetTrainerNotificationBot/internal/config"
	"github.com/lbrulet/PetTrainerNotificationBot/internal/logger"
	"github.com/lbrulet/PetTrainerNotificationBot/internal/store"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "pet-trainer-bot",
		Short:         "Telegram bot that tracks pet training sessions and rentals",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBot(cmd.Context(), envFile)
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional dotenv file loaded before the environment")

	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd.Context(), envFile)
		},
	})
	return root
}

func setup(envFile string) (config.Config, *zap.Logger) {
	cfg, err := config.Load(envFile)
	if err != nil {
		// No logger yet; exit immediately.
		_, _ = os.Stderr.WriteString("config error: " + err.Error() + "\n")
		os.Exit(2)
	}

	log, err := logger.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger init error: " + err.Error() + "\n")
		os.Exit(2)
	}
	return cfg, log
}

func runBot(ctx context.Context, envFile string) error {
	cfg, log := setup(envFile)
	// Ignore sync error (common on some platforms).
	defer func() { _ = log.Sync() }()

	if err := cfg.ValidateBot(); err != nil {
		log.Error("config invalid", zap.Error(err))
		return err
	}

	application, err := app.New(cfg, log)
	if err != nil {
		log.Error("app init failed", zap.Error(err))
		return err
	}

	if err := application.Run(ctx); err != nil {
		log.Error("app run failed", zap.Error(err))
		return err
	}
	return nil
}

func runMigrate(ctx context.Context, envFile string) error {
	cfg, log := setup(envFile)
	defer func() { _ = log.Sync() }()

	applied, err := store.Migrate(ctx, cfg.DBPath, cfg.OwnerID)
	if err != nil {
		log.Error("migrate failed", zap.Error(err))
		return err
	}
	log.Info("migrations applied", zap.String("path", cfg.DBPath), zap.Int64s("versions", applied))
	return nil
}
