package eventstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteSchema creates the journal table in an SQLite database.
const SQLiteSchema = `
CREATE TABLE IF NOT EXISTS asset_events (
	sequence INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	aggregate_id TEXT NOT NULL,
	aggregate_type TEXT NOT NULL,
	event_type TEXT NOT NULL,
	event_data BLOB NOT NULL,
	metadata BLOB NOT NULL,
	version INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	UNIQUE (aggregate_id, version)
);
`

// sqliteRow mirrors Event with SQLite-friendly column types.
type sqliteRow struct {
	Sequence      int64  `db:"sequence"`
	ID            string `db:"id"`
	AggregateID   string `db:"aggregate_id"`
	AggregateType string `db:"aggregate_type"`
	EventType     string `db:"event_type"`
	EventData     []byte `db:"event_data"`
	Metadata      []byte `db:"metadata"`
	Version       int    `db:"version"`
	CreatedAt     int64  `db:"created_at"`
}

func (r sqliteRow) event() (Event, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return Event{}, fmt.Errorf("event %d: %w", r.Sequence, err)
	}
	return Event{
		ID:            id,
		Sequence:      r.Sequence,
		AggregateID:   r.AggregateID,
		AggregateType: r.AggregateType,
		EventType:     r.EventType,
		EventData:     r.EventData,
		Metadata:      r.Metadata,
		Version:       r.Version,
		CreatedAt:     time.Unix(0, r.CreatedAt).UTC(),
	}, nil
}

// SQLiteJournal stores events in a single SQLite file, for deployments
// without a PostgreSQL server.
type SQLiteJournal struct {
	db     *sqlx.DB
	tracer trace.Tracer
	now    func() time.Time
}

// OpenSQLiteJournal opens (or creates) the journal at path. ":memory:"
// gives a private in-memory database.
func OpenSQLiteJournal(ctx context.Context, path string) (*SQLiteJournal, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite journal: %w", err)
	}
	// one writer at a time; also keeps a :memory: database alive
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, SQLiteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}

	return &SQLiteJournal{
		db:     db,
		tracer: otel.Tracer("nftmarket/eventstore"),
		now:    time.Now,
	}, nil
}

func (sj *SQLiteJournal) Close() error {
	return sj.db.Close()
}

func (sj *SQLiteJournal) AppendEvents(ctx context.Context, aggregateID, aggregateType string, expectedVersion int, events []Event) error {
	ctx, span := sj.tracer.Start(ctx, "eventstore.append",
		trace.WithAttributes(
			attribute.String("aggregate.id", aggregateID),
			attribute.String("aggregate.type", aggregateType),
			attribute.Int("expected.version", expectedVersion),
			attribute.Int("event.count", len(events)),
		),
	)
	defer span.End()

	if expectedVersion < 0 {
		return ErrInvalidVersion
	}

	tx, err := sj.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var currentVersion int
	if err := tx.GetContext(ctx, &currentVersion,
		`SELECT COALESCE(MAX(version), 0) FROM asset_events WHERE aggregate_id = ?`, aggregateID); err != nil {
		return fmt.Errorf("query current version: %w", err)
	}
	if currentVersion != expectedVersion {
		span.SetAttributes(
			attribute.Int("actual.version", currentVersion),
			attribute.Bool("conflict.detected", true),
		)
		return ErrConcurrencyConflict
	}

	for i, event := range events {
		metadata := []byte(event.Metadata)
		if len(metadata) == 0 {
			metadata = []byte("{}")
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO asset_events (id, aggregate_id, aggregate_type, event_type, event_data, metadata, version, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(),
			aggregateID,
			aggregateType,
			event.EventType,
			[]byte(event.EventData),
			metadata,
			expectedVersion+i+1,
			sj.now().UTC().UnixNano(),
		)
		if err != nil {
			var sqliteErr *sqlite.Error
			if errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
				return ErrConcurrencyConflict
			}
			return fmt.Errorf("insert event %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	span.SetAttributes(attribute.Bool("append.success", true))
	return nil
}

func (sj *SQLiteJournal) LoadEvents(ctx context.Context, aggregateID string, fromVersion, toVersion int) ([]Event, error) {
	ctx, span := sj.tracer.Start(ctx, "eventstore.load",
		trace.WithAttributes(
			attribute.String("aggregate.id", aggregateID),
			attribute.Int("from.version", fromVersion),
			attribute.Int("to.version", toVersion),
		),
	)
	defer span.End()

	query := `SELECT * FROM asset_events WHERE aggregate_id = ? AND version >= ?`
	args := []interface{}{aggregateID, fromVersion}
	if toVersion > 0 {
		query += ` AND version <= ?`
		args = append(args, toVersion)
	}
	query += ` ORDER BY version ASC`

	events, err := sj.selectEvents(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("events.loaded", len(events)))
	return events, nil
}

func (sj *SQLiteJournal) GetCurrentVersion(ctx context.Context, aggregateID string) (int, error) {
	var version int
	if err := sj.db.GetContext(ctx, &version,
		`SELECT COALESCE(MAX(version), 0) FROM asset_events WHERE aggregate_id = ?`, aggregateID); err != nil {
		return 0, fmt.Errorf("query version: %w", err)
	}
	return version, nil
}

func (sj *SQLiteJournal) StreamEvents(ctx context.Context, fromSequence int64, batchSize int) ([]Event, error) {
	ctx, span := sj.tracer.Start(ctx, "eventstore.stream",
		trace.WithAttributes(
			attribute.Int64("from.sequence", fromSequence),
			attribute.Int("batch.size", batchSize),
		),
	)
	defer span.End()

	// a negative LIMIT means no limit in SQLite
	limit := batchSize
	if limit <= 0 {
		limit = -1
	}

	events, err := sj.selectEvents(ctx,
		`SELECT * FROM asset_events WHERE sequence > ? ORDER BY sequence ASC LIMIT ?`, fromSequence, limit)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("events.streamed", len(events)))
	return events, nil
}

func (sj *SQLiteJournal) selectEvents(ctx context.Context, query string, args ...interface{}) ([]Event, error) {
	var rows []sqliteRow
	if err := sj.db.SelectContext(ctx, &rows, query, args...); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("query events: %w", err)
	}

	events := make([]Event, 0, len(rows))
	for _, row := range rows {
		event, err := row.event()
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}
