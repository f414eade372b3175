package backend

import (
	"context"

	"fintrack/internal/services"
	"fintrack/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the ledger and its cleanup function
type BackendResult struct {
	Ledger  *services.LedgerService
	Cleanup CleanupFunc

	// AMQPEnabled reports whether transaction events are being published.
	AMQPEnabled bool
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend opens the store, applies migrations and wires the
	// optional event publisher.
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Driver storage.Driver
	DSN    string

	// Migrations are applied unless skipped.
	SkipMigrations bool

	// AMQP is optional; an empty URL disables events.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}
