package backend

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/cache"
	"fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

const cacheCleanupInterval = 5 * time.Minute

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger.With(log.FieldComponent, log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	store, err := storage.Open(storage.Options{
		Driver:         config.Driver,
		DSN:            config.DSN,
		SkipMigrations: config.SkipMigrations,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", config.Driver, err)
	}

	// A nil *amqp.Client must not reach the service as a non-nil interface.
	var publisher services.EventPublisher
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events", "error", err)
		} else {
			publisher = client
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	ledger := services.NewLedgerService(store, publisher)

	caches := cache.NewManager()
	caches.Register(ledger.Caches()...)
	caches.StartCleanup(cacheCleanupInterval)

	f.logger.InfoContext(ctx, "Initialized ledger backend",
		"driver", config.Driver,
		"amqp_enabled", publisher != nil)

	cleanup := func() error {
		caches.Stop()
		return ledger.Close()
	}

	return &BackendResult{
		Ledger:      ledger,
		Cleanup:     cleanup,
		AMQPEnabled: publisher != nil,
	}, nil
}
