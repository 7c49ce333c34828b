// Package eventstore records the activity of catalog aggregates as an
// append-only journal of versioned events.
package eventstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrConcurrencyConflict = errors.New("concurrency conflict: version mismatch")
	ErrInvalidVersion      = errors.New("invalid version number")
)

// Event is one journal entry for an aggregate.
type Event struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	Sequence      int64           `json:"sequence" db:"sequence"`
	AggregateID   string          `json:"aggregate_id" db:"aggregate_id"`
	AggregateType string          `json:"aggregate_type" db:"aggregate_type"`
	EventType     string          `json:"event_type" db:"event_type"`
	EventData     json.RawMessage `json:"event_data" db:"event_data"`
	Metadata      json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	Version       int             `json:"version" db:"version"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// Journal is implemented by every event backend.
//
// AppendEvents succeeds only when the aggregate is currently at
// expectedVersion; the appended events get versions expectedVersion+1,
// expectedVersion+2, and so on.
type Journal interface {
	AppendEvents(ctx context.Context, aggregateID, aggregateType string, expectedVersion int, events []Event) error
	LoadEvents(ctx context.Context, aggregateID string, fromVersion, toVersion int) ([]Event, error)
	GetCurrentVersion(ctx context.Context, aggregateID string) (int, error)
	StreamEvents(ctx context.Context, fromSequence int64, batchSize int) ([]Event, error)
}
