// Package cli holds the process bootstrap shared by cmd/expenex and
// cmd/ledger-worker.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"expenex/internal/config"
	"expenex/internal/log"
	"expenex/internal/storage"
)

// SetupLogger builds the process logger from LOG_LEVEL and installs it as
// the slog default.
func SetupLogger(level string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(level)
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads .env for local development. A missing file is fine.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration, runs validate and exits the
// process when it fails.
func LoadAndValidateConfig(logger *log.Logger, validate func(*config.Config) error) *config.Config {
	cfg := config.Load()
	if err := validate(cfg); err != nil {
		logger.Error("Configuration validation failed",
			log.FieldErrorType, log.ErrorTypeConfiguration,
			log.FieldError, err.Error())
		os.Exit(1)
	}
	return cfg
}

// InitSessionStore opens the SQLite session store and drops sessions older
// than maxAge. Exits the process when the database cannot be opened.
func InitSessionStore(ctx context.Context, logger *log.Logger, dbPath string, maxAge time.Duration) *storage.SessionRepository {
	repo, err := storage.NewSessionRepository(dbPath, logger)
	if err != nil {
		logger.Error("Failed to initialize session store",
			log.FieldErrorType, log.ErrorTypeDatabase,
			log.FieldError, err.Error(),
			"path", dbPath)
		os.Exit(1)
	}
	if maxAge > 0 {
		if _, err := repo.PurgeBefore(ctx, time.Now().Add(-maxAge)); err != nil {
			logger.Warn("Failed to purge stale sessions", log.FieldError, err.Error())
		}
	}
	if v, err := storage.SchemaVersion(dbPath); err != nil {
		logger.Warn("Failed to read session schema version", log.FieldError, err.Error())
	} else {
		logger.Info("Session store ready", "path", dbPath, "schema_version", v)
	}
	return repo
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		logger.Info("Shutdown signal received")
	}()
	return ctx, stop
}

// ShutdownContext bounds the cleanup that runs after SignalContext fires.
func ShutdownContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}
