package eventstore

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteJournal(t *testing.T, path string) *SQLiteJournal {
	t.Helper()
	journal, err := OpenSQLiteJournal(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { journal.Close() })
	return journal
}

func TestSQLiteJournal_AppendAndLoad(t *testing.T) {
	journal := newSQLiteJournal(t, ":memory:")
	ctx := context.Background()

	require.NoError(t, journal.AppendEvents(ctx, "asset-1", "asset", 0, []Event{
		payloadEvent(t, "minted"),
		payloadEvent(t, "purchased"),
	}))

	events, err := journal.LoadEvents(ctx, "asset-1", 0, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, 1, events[0].Version)
	assert.Equal(t, 2, events[1].Version)
	assert.JSONEq(t, `{"message":"minted"}`, string(events[0].EventData))
	assert.JSONEq(t, `{}`, string(events[0].Metadata))
	assert.False(t, events[0].CreatedAt.IsZero())

	version, err := journal.GetCurrentVersion(ctx, "asset-1")
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	ranged, err := journal.LoadEvents(ctx, "asset-1", 2, 2)
	require.NoError(t, err)
	require.Len(t, ranged, 1)
	assert.Equal(t, 2, ranged[0].Version)
}

func TestSQLiteJournal_ConflictOnStaleVersion(t *testing.T) {
	journal := newSQLiteJournal(t, ":memory:")
	ctx := context.Background()

	require.NoError(t, journal.AppendEvents(ctx, "asset-1", "asset", 0, []Event{payloadEvent(t, "minted")}))
	err := journal.AppendEvents(ctx, "asset-1", "asset", 0, []Event{payloadEvent(t, "again")})
	assert.ErrorIs(t, err, ErrConcurrencyConflict)

	assert.ErrorIs(t, journal.AppendEvents(ctx, "asset-1", "asset", -1, nil), ErrInvalidVersion)
}

func TestSQLiteJournal_ConcurrentAppendsOnlyOneWins(t *testing.T) {
	journal := newSQLiteJournal(t, ":memory:")
	ctx := context.Background()

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		won int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := journal.AppendEvents(ctx, "asset-1", "asset", 0, []Event{payloadEvent(t, "minted")}); err == nil {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, won)
}

func TestSQLiteJournal_StreamAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	journal, err := OpenSQLiteJournal(ctx, path)
	require.NoError(t, err)
	require.NoError(t, journal.AppendEvents(ctx, "a", "asset", 0, []Event{payloadEvent(t, "a1")}))
	require.NoError(t, journal.AppendEvents(ctx, "b", "asset", 0, []Event{payloadEvent(t, "b1")}))
	require.NoError(t, journal.AppendEvents(ctx, "a", "asset", 1, []Event{payloadEvent(t, "a2")}))
	require.NoError(t, journal.Close())

	reopened := newSQLiteJournal(t, path)

	all, err := reopened.StreamEvents(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"a", "b", "a"}, []string{all[0].AggregateID, all[1].AggregateID, all[2].AggregateID})

	batch, err := reopened.StreamEvents(ctx, all[0].Sequence, 1)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, "b", batch[0].AggregateID)
}
