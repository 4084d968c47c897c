// Package types holds the in-memory domain model for the event log.
package types

import (
	"time"

	"github.com/mkarpov/chronicle/internal/fsx"
)

// EventID identifies an event for the life of the log.
// Two ids are equal when their identifiers are equal.
type EventID struct {
	Identifier string
}

func (id EventID) String() string { return id.Identifier }

// Creator records which program produced an event.
type Creator struct {
	Name    string
	UUID    string
	Version string
}

// Event is a single record in the event log. Once committed an event is
// immutable; the only edit is a delete followed by an add of the same id.
type Event struct {
	ID          EventID
	Date        time.Time
	Original    string // raw input, unmodified
	Input       string // input after shortcut expansion
	Type        string
	Description string
	Modifiers   map[string]string
	Creator     Creator
}

// Shortcut is a pattern/replacement pair stored in the configuration.
// The store does not interpret shortcuts; expansion happens upstream.
type Shortcut struct {
	Pattern     string
	Replacement string
	Description string
}

// Config is the event-log configuration. Shortcut order is significant.
type Config struct {
	Help      string
	Shortcuts []Shortcut
}

// Asset pairs an event with a binary file to copy into the working copy.
// The file handle proves the source existed when the asset was queued; the
// store copies its bytes and never takes ownership of the source.
type Asset struct {
	Event Event
	File  *fsx.ExistingFile
}
