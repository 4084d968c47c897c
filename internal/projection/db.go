package projection

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/mkarpov/chronicle/internal/schema"
)

// DB wraps *sql.DB and only exposes context-aware methods, so every query
// honors the caller's cancellation.
type DB struct {
	db *sql.DB
}

// Open opens (creating if needed) a projection database at path and
// ensures the schema is current. Use ":memory:" for an ephemeral database.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open projection database %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases coherent and
	// serializes writes the way SQLite expects.
	db.SetMaxOpenConns(1)
	if err := schema.InitDB(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize projection database: %w", err)
	}
	return &DB{db: db}, nil
}

// QueryContext executes a query that returns rows.
func (d *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.db.QueryContext(ctx, query, args...)
}

// QueryRowContext executes a query that returns at most one row.
func (d *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return d.db.QueryRowContext(ctx, query, args...)
}

// ExecContext executes a query that doesn't return rows.
func (d *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.db.ExecContext(ctx, query, args...)
}

// BeginTx starts a transaction with context.
func (d *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return d.db.BeginTx(ctx, opts)
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.db.Close()
}
