package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/obiboss/ckd/internal/api"
	"github.com/obiboss/ckd/internal/auth"
	"github.com/obiboss/ckd/internal/cache"
	"github.com/obiboss/ckd/internal/config"
	"github.com/obiboss/ckd/internal/database"
	"github.com/obiboss/ckd/internal/domain"
	"github.com/obiboss/ckd/internal/repository"
	"github.com/obiboss/ckd/internal/risk"
	"github.com/obiboss/ckd/internal/store"
)

func main() {
	// Optional .env for local development
	_ = godotenv.Load()

	configManager, err := config.NewManager()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	if err := configManager.Validate(); err != nil {
		logrus.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := newLogger(cfg.Logging)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scorer := risk.NewScorer(logger, risk.ParamsFromConfig(cfg.Model))

	resultCache, err := cache.New(logger, cfg.Cache)
	if err != nil {
		logger.WithError(err).Fatal("Could not initialize result cache")
	}
	defer resultCache.Close()

	var (
		users    domain.UserRepository
		patients domain.PatientRepository
	)

	if configManager.DatabaseEnabled() {
		db, err := database.NewConnection(ctx, &cfg.Database, logger)
		if err != nil {
			logger.WithError(err).Fatal("Could not connect to database")
		}
		defer db.Close()

		if cfg.Database.MigrationsPath != "" {
			runner, err := database.NewMigrationRunner(configManager.GetDatabaseURL(), cfg.Database.MigrationsPath, logger)
			if err != nil {
				logger.WithError(err).Fatal("Could not initialize migrations")
			}
			if err := runner.Up(); err != nil {
				logger.WithError(err).Fatal("Migrations failed")
			}
			runner.Close()
		}

		users = repository.NewUserRepository(db.Pool, logger)
		patients = repository.NewPatientRepository(db.Pool, logger)
	} else {
		logger.Info("Running without PostgreSQL, patient registry disabled")
		users = auth.NewMemoryUsers()
	}

	if err := users.SeedDemoUsers(ctx); err != nil {
		logger.WithError(err).Fatal("Could not seed demo users")
	}

	predictionStore, err := newPredictionStore(configManager, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Could not open prediction store")
	}
	defer predictionStore.Close()

	authService := auth.NewService(logger, cfg.Auth, users)

	server := api.NewServer(configManager, logger, api.Dependencies{
		Scorer:   scorer,
		Store:    predictionStore,
		Cache:    resultCache,
		Auth:     authService,
		Patients: patients,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received")
		cancel()
	}()

	logger.WithFields(logrus.Fields{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Starting CKD risk service")

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}

// newPredictionStore opens the configured audit log backend.
func newPredictionStore(configManager domain.ConfigManager, cfg *domain.Config, logger *logrus.Logger) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		logger.Info("Using PostgreSQL prediction store")
		return store.NewPostgresStoreFromURL(configManager.GetDatabaseURL())
	default:
		logger.WithField("path", cfg.Store.SQLitePath).Info("Using SQLite prediction store")
		return store.NewSQLiteStore(cfg.Store.SQLitePath)
	}
}

func newLogger(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return logger
}
