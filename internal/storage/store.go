package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"fintrack/internal/core"
)

// Driver names a supported database backend.
type Driver string

const (
	DriverSQLite Driver = "sqlite"
	DriverMySQL  Driver = "mysql"
)

func (d Driver) IsValid() bool {
	return d == DriverSQLite || d == DriverMySQL
}

// Options configures Open. For sqlite DSN is a file path.
type Options struct {
	Driver         Driver
	DSN            string
	SkipMigrations bool
	MaxOpenConns   int
}

// Querier is the unit-of-work handle every repository operation receives.
// Both *sql.Tx and *sql.DB satisfy it.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// Store owns the connection pool and hands out units of work.
type Store struct {
	db     *sql.DB
	driver Driver
}

// Open connects to the database and applies pending migrations.
func Open(opts Options) (*Store, error) {
	if !opts.Driver.IsValid() {
		return nil, fmt.Errorf("unsupported driver %q", opts.Driver)
	}

	dsn, err := normalizeDSN(opts.Driver, opts.DSN)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(string(opts.Driver), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", opts.Driver, err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if !opts.SkipMigrations {
		if err := RunMigrations(opts.Driver, dsn); err != nil {
			db.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	slog.Info("Database opened", "driver", opts.Driver, "migrations", !opts.SkipMigrations)

	return &Store{db: db, driver: opts.Driver}, nil
}

// normalizeDSN adds the connection settings the repository relies on:
// enforced foreign keys for sqlite, parsed UTC times and multi-statement
// migrations for mysql.
func normalizeDSN(driver Driver, dsn string) (string, error) {
	switch driver {
	case DriverSQLite:
		if dsn == "" {
			return "", fmt.Errorf("sqlite database path cannot be empty")
		}
		path := dsn
		if i := strings.IndexByte(path, '?'); i >= 0 {
			path = path[:i]
		}
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return "", fmt.Errorf("create db directory: %w", err)
			}
		}
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		return dsn + sep + "_pragma=foreign_keys(on)&_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)", nil
	case DriverMySQL:
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return "", fmt.Errorf("parse mysql dsn: %w", err)
		}
		cfg.ParseTime = true
		cfg.MultiStatements = true
		cfg.Loc = time.UTC
		return cfg.FormatDSN(), nil
	default:
		return "", fmt.Errorf("unsupported driver %q", driver)
	}
}

// Driver reports the backend in use.
func (s *Store) Driver() Driver { return s.driver }

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Read runs fn in a transaction that is always rolled back.
func (s *Store) Read(ctx context.Context, fn func(q Querier) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &core.StorageError{Op: "begin", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	return fn(tx)
}

// Write runs fn in a transaction committed only when fn returns nil. Any
// error, or a panic, rolls the whole unit of work back.
func (s *Store) Write(ctx context.Context, fn func(q Querier) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &core.StorageError{Op: "begin", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		slog.DebugContext(ctx, "Unit of work rolled back", "error", err)
		return err
	}
	if err := tx.Commit(); err != nil {
		return &core.StorageError{Op: "commit", Err: err}
	}
	return nil
}
