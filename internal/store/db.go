// Package store persists the domain model (internal/model) to a single
// SQLite database via hand-written SQL, following a sole-writer
// discipline: one *sql.DB, SetMaxOpenConns(1), shared across every store
// type so writers never race on SQLite's single-writer lock.
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB wraps the shared *sql.DB and exposes it to each store constructor.
type DB struct {
	conn   *sql.DB
	logger *slog.Logger
}

// Open opens (creating if necessary) the SQLite database at path, runs all
// pending migrations, and configures it as sole-writer (one connection).
func Open(ctx context.Context, path string, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// path may already carry a query string (OpenMemory's cache=shared).
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}

	conn, err := sql.Open("sqlite", path+sep+"_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("store: opening database: %w", err)
	}

	// SQLite allows only one writer at a time; serializing all access
	// through a single connection avoids SQLITE_BUSY errors entirely
	// rather than retrying around them.
	conn.SetMaxOpenConns(1)

	if err := runMigrations(ctx, conn, logger); err != nil {
		conn.Close()

		return nil, fmt.Errorf("store: running migrations: %w", err)
	}

	return &DB{conn: conn, logger: logger}, nil
}

// OpenMemory opens an in-memory SQLite database for tests.
func OpenMemory(ctx context.Context, logger *slog.Logger) (*DB, error) {
	return Open(ctx, "file::memory:?cache=shared", logger)
}

// Conn returns the shared connection, for store constructors within this
// package and its siblings (downloadmgr, collection) that need direct SQL
// access beyond the typed store methods.
func (d *DB) Conn() *sql.DB {
	return d.conn
}

// Close releases the underlying database connection.
func (d *DB) Close() error {
	return d.conn.Close()
}

// runMigrations applies all pending schema migrations using goose's
// Provider API (no global state, context-aware).
func runMigrations(ctx context.Context, conn *sql.DB, logger *slog.Logger) error {
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("creating migration sub-filesystem: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, conn, subFS)
	if err != nil {
		return fmt.Errorf("creating migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	for _, r := range results {
		logger.Info("applied migration",
			slog.String("source", r.Source.Path),
			slog.Int64("duration_ms", r.Duration.Milliseconds()),
		)
	}

	return nil
}
