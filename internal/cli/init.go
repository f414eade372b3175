// Package cli provides common initialization utilities shared by
// cmd/fintrack and cmd/fintrackctl.
package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fintrack/internal/backend"
	"fintrack/internal/config"
	"fintrack/internal/log"
)

// SetupLogger builds the application logger from the configured level and
// format and installs it as the slog default.
func SetupLogger(level, format, component string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(level)
	cfg.Format = format
	cfg.Component = component
	cfg.Output = os.Stderr

	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadConfig loads and validates configuration.
func LoadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg, err := LoadConfig()
	if err != nil {
		logger.Error("Configuration validation failed",
			log.FieldError, err,
			log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}
	return cfg
}

// OpenBackend opens the store described by cfg. Migrations run unless
// skipMigrations is set.
func OpenBackend(ctx context.Context, logger *log.Logger, cfg *config.Config, skipMigrations bool) (*backend.BackendResult, error) {
	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	bc.SkipMigrations = skipMigrations
	return backend.NewFactory(logger.Logger).CreateBackend(ctx, bc)
}

// GracefulShutdown returns a context that is cancelled on SIGINT or SIGTERM.
func GracefulShutdown(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received",
				"signal", sig.String(),
				log.FieldOperation, log.OpShutdown)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// ErrShutdownTimeout is returned by RunCleanup when cleanup outlives its
// deadline.
var ErrShutdownTimeout = errors.New("shutdown timeout reached")

// RunCleanup runs cleanup and waits at most timeout for it to return.
func RunCleanup(logger *log.Logger, timeout time.Duration, cleanup func() error) error {
	if cleanup == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- cleanup() }()

	select {
	case err := <-done:
		if err != nil {
			logger.Error("Cleanup failed", log.FieldError, err, log.FieldOperation, log.OpShutdown)
			return err
		}
		logger.Info("Shutdown complete")
		return nil
	case <-time.After(timeout):
		logger.Warn("Shutdown timeout reached", "timeout", timeout)
		return ErrShutdownTimeout
	}
}
