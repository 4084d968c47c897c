// Package projection replays the committed event log into SQLite so
// callers can query it without re-parsing data.json.
package projection

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/mkarpov/chronicle/internal/codec"
	"github.com/mkarpov/chronicle/internal/fsx"
	"github.com/mkarpov/chronicle/internal/jsonstream"
	"github.com/mkarpov/chronicle/internal/logging"
	"github.com/mkarpov/chronicle/internal/types"
)

// Projector replays events into the projection database.
type Projector struct {
	db  *DB
	log *logging.Logger
}

// NewProjector creates a projector for the given database.
func NewProjector(db *DB, log *logging.Logger) *Projector {
	return &Projector{db: db, log: log}
}

// Rebuild clears the projection and replays data.json from the working
// tree. Records that fail validation are skipped with a warning; a missing
// data.json leaves the projection empty.
func (p *Projector) Rebuild(ctx context.Context, reader fsx.Reader, workTree string) error {
	dataPath := filepath.Join(workTree, "data.json")

	values, err := jsonstream.ReadObjects(ctx, reader, dataPath)
	if err != nil {
		var ioErr *jsonstream.IOError
		if !errors.As(err, &ioErr) {
			return err
		}
		values = nil
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rebuild: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM event_modifiers"); err != nil {
		return fmt.Errorf("clear modifiers: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM events"); err != nil {
		return fmt.Errorf("clear events: %w", err)
	}

	for i, v := range values {
		event, schemaErr := codec.TryDeserializeEvent(v)
		if schemaErr != nil {
			p.log.Warnw("skipping invalid record during rebuild",
				"path", dataPath, "index", i, "error", schemaErr.Error())
			continue
		}
		if err := applyTx(ctx, tx, event); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rebuild: %w", err)
	}
	return nil
}

// Apply upserts a single event into the projection.
func (p *Projector) Apply(ctx context.Context, event types.Event) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin apply: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := applyTx(ctx, tx, event); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit apply: %w", err)
	}
	return nil
}

func applyTx(ctx context.Context, tx *sql.Tx, event types.Event) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO events (identifier, date, original, input, type, description,
			creator_name, creator_uuid, creator_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(identifier) DO UPDATE SET
			date = excluded.date,
			original = excluded.original,
			input = excluded.input,
			type = excluded.type,
			description = excluded.description,
			creator_name = excluded.creator_name,
			creator_uuid = excluded.creator_uuid,
			creator_version = excluded.creator_version`,
		event.ID.Identifier,
		// RFC 3339 sorts lexicographically by time, unlike the log's
		// RFC 1123 form.
		event.Date.UTC().Format(time.RFC3339),
		event.Original,
		event.Input,
		event.Type,
		event.Description,
		event.Creator.Name,
		event.Creator.UUID,
		event.Creator.Version,
	)
	if err != nil {
		return fmt.Errorf("upsert event %s: %w", event.ID, err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM event_modifiers WHERE identifier = ?", event.ID.Identifier); err != nil {
		return fmt.Errorf("clear modifiers for %s: %w", event.ID, err)
	}
	for key, value := range event.Modifiers {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO event_modifiers (identifier, key, value) VALUES (?, ?, ?)",
			event.ID.Identifier, key, value,
		); err != nil {
			return fmt.Errorf("insert modifier %s.%s: %w", event.ID, key, err)
		}
	}
	return nil
}
