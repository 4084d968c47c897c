package projection

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mkarpov/chronicle/internal/types"
)

// StoredEvent is an event with its projection sequence number.
type StoredEvent struct {
	Seq   int64
	Event types.Event
}

// HasEvent reports whether an event with the identifier is projected.
func HasEvent(ctx context.Context, db *DB, identifier string) (bool, error) {
	var exists int
	err := db.QueryRowContext(ctx, "SELECT 1 FROM events WHERE identifier = ? LIMIT 1", identifier).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check event existence: %w", err)
	}
	return true, nil
}

// EventsSince returns events with seq > afterSeq, up to limit, in sequence
// order. It returns the highest sequence in the batch for checkpointing
// and whether more events remain.
func EventsSince(ctx context.Context, db *DB, afterSeq int64, limit int) ([]StoredEvent, int64, bool, error) {
	if limit <= 0 {
		limit = 100
	}

	// Fetch limit+1 rows to detect whether more are available.
	rows, err := db.QueryContext(ctx, `
		SELECT seq, identifier, date, original, input, type, description,
			creator_name, creator_uuid, creator_version
		FROM events WHERE seq > ? ORDER BY seq LIMIT ?`,
		afterSeq, limit+1,
	)
	if err != nil {
		return nil, 0, false, fmt.Errorf("query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	events, err := scanEvents(ctx, db, rows)
	if err != nil {
		return nil, 0, false, err
	}
	if len(events) == 0 {
		return nil, 0, false, nil
	}

	moreAvailable := len(events) > limit
	if moreAvailable {
		events = events[:limit]
	}
	return events, events[len(events)-1].Seq, moreAvailable, nil
}

// EventsByType returns every projected event of the given type, oldest
// first.
func EventsByType(ctx context.Context, db *DB, eventType string) ([]StoredEvent, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT seq, identifier, date, original, input, type, description,
			creator_name, creator_uuid, creator_version
		FROM events WHERE type = ? ORDER BY seq`,
		eventType,
	)
	if err != nil {
		return nil, fmt.Errorf("query events by type: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanEvents(ctx, db, rows)
}

// RecentEvents returns the newest events by date, most recent first.
func RecentEvents(ctx context.Context, db *DB, limit int) ([]StoredEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.QueryContext(ctx, `
		SELECT seq, identifier, date, original, input, type, description,
			creator_name, creator_uuid, creator_version
		FROM events ORDER BY date DESC, seq DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanEvents(ctx, db, rows)
}

func scanEvents(ctx context.Context, db *DB, rows *sql.Rows) ([]StoredEvent, error) {
	var events []StoredEvent
	for rows.Next() {
		var (
			stored StoredEvent
			date   string
		)
		event := &stored.Event
		if err := rows.Scan(
			&stored.Seq,
			&event.ID.Identifier,
			&date,
			&event.Original,
			&event.Input,
			&event.Type,
			&event.Description,
			&event.Creator.Name,
			&event.Creator.UUID,
			&event.Creator.Version,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		parsed, err := time.Parse(time.RFC3339, date)
		if err != nil {
			return nil, fmt.Errorf("event %s: %w", event.ID, err)
		}
		event.Date = parsed
		events = append(events, stored)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	// Finish this result set before issuing the modifier queries.
	_ = rows.Close()

	for i := range events {
		if err := loadModifiers(ctx, db, &events[i].Event); err != nil {
			return nil, err
		}
	}
	return events, nil
}

func loadModifiers(ctx context.Context, db *DB, event *types.Event) error {
	rows, err := db.QueryContext(ctx,
		"SELECT key, value FROM event_modifiers WHERE identifier = ?", event.ID.Identifier)
	if err != nil {
		return fmt.Errorf("query modifiers for %s: %w", event.ID, err)
	}
	defer func() { _ = rows.Close() }()

	event.Modifiers = map[string]string{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return fmt.Errorf("scan modifier: %w", err)
		}
		event.Modifiers[key] = value
	}
	return rows.Err()
}
