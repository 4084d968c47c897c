// Package schema owns the DDL for the projection database.
package schema

import (
	"database/sql"
	"fmt"
)

// CurrentVersion is the current schema version.
const CurrentVersion = 1

// InitDB initializes a projection database with the current schema.
// Safe to call on an already-initialized database.
func InitDB(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := createVersionTable(tx); err != nil {
		return fmt.Errorf("create version table: %w", err)
	}
	if err := createTables(tx); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	if err := createIndexes(tx); err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}

	version, err := versionLocked(tx)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version == 0 {
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", CurrentVersion); err != nil {
			return fmt.Errorf("set schema version: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Version returns the schema version of the database, or 0 when the
// schema_version table holds no row. On a database that has never been
// initialized the table is missing and Version returns an error.
func Version(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query schema version: %w", err)
	}
	return version, nil
}

func versionLocked(tx *sql.Tx) (int, error) {
	var version int
	err := tx.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return version, nil
}

func createVersionTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version    INTEGER NOT NULL,
			applied_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

func createTables(tx *sql.Tx) error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS events (
			seq             INTEGER PRIMARY KEY AUTOINCREMENT,
			identifier      TEXT UNIQUE NOT NULL,
			date            TEXT NOT NULL,
			original        TEXT NOT NULL,
			input           TEXT NOT NULL,
			type            TEXT NOT NULL,
			description     TEXT NOT NULL,
			creator_name    TEXT NOT NULL,
			creator_uuid    TEXT NOT NULL,
			creator_version TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS event_modifiers (
			identifier TEXT NOT NULL,
			key        TEXT NOT NULL,
			value      TEXT NOT NULL,
			PRIMARY KEY (identifier, key)
		)`,
	}

	for _, ddl := range tables {
		if _, err := tx.Exec(ddl); err != nil {
			return err
		}
	}
	return nil
}

func createIndexes(tx *sql.Tx) error {
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_events_type ON events(type)`,
		`CREATE INDEX IF NOT EXISTS idx_events_date ON events(date)`,
	}

	for _, ddl := range indexes {
		if _, err := tx.Exec(ddl); err != nil {
			return err
		}
	}
	return nil
}
