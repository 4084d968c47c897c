// Package identity mints event identifiers and creator records.
package identity

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/mkarpov/chronicle/internal/types"
)

// eventIDPrefix marks identifiers minted by this package. The store treats
// identifiers as opaque; the prefix only helps humans reading the log.
const eventIDPrefix = "ev_"

// NewEventID mints an identifier for an event occurring at t. The ULID
// payload keeps ids of the same log lexically sorted by time.
func NewEventID(t time.Time) types.EventID {
	id := ulid.MustNew(ulid.Timestamp(t), ulid.DefaultEntropy())
	return types.EventID{Identifier: eventIDPrefix + strings.ToLower(id.String())}
}

// NewCreator builds a creator record with a fresh UUID.
func NewCreator(name, version string) types.Creator {
	return types.Creator{
		Name:    name,
		UUID:    uuid.NewString(),
		Version: version,
	}
}
