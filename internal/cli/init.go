// Package cli provides common initialization utilities shared by
// cmd/masroufi, cmd/reconcile-worker, and cmd/export-worker.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"masroufi/internal/config"
	applog "masroufi/internal/log"
	"masroufi/internal/storage"
)

// SetupLogger initializes structured logging for the named component and
// installs it as the process default.
func SetupLogger(component string) *applog.Logger {
	cfg := applog.DefaultConfig()
	cfg.Component = component
	logger := applog.New(cfg)
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// InitPersister builds the snapshot persister selected by the config backend.
// Exits the process on failure.
func InitPersister(logger *applog.Logger, cfg *config.Config) storage.Persister {
	switch cfg.DataBackend {
	case "memory":
		logger.Info("Using in-memory persistence", "backend", cfg.DataBackend)
		return storage.NewMemoryPersister()
	default:
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		logger.Info("Using SQLite persistence", "backend", cfg.DataBackend, "path", cfg.SQLiteDBPath)
		return repo
	}
}

// GracefulShutdown sets up signal handling. The returned context is cancelled
// on SIGINT/SIGTERM; cleanup runs before cancellation, bounded by timeout.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func(ctx context.Context)) context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		slog.Info("Shutdown signal received", "signal", sig.String())

		if cleanup != nil {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
			defer shutdownCancel()
			cleanup(shutdownCtx)
		}
		cancel()
	}()

	logger.Info("Signal handling installed", "timeout", timeout)
	return ctx
}
