package pipeline

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/vigil/internal/database"
)

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "progress.db"),
		Profile: database.ProfileDurable,
		Name:    "progress-test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewSQLiteStore(db.Conn())
	require.NoError(t, err)
	return store
}

func TestStoreSaveAndLoadRoundTrip(t *testing.T) {
	store := newSQLiteStore(t)

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded, "no run persisted yet")

	p := newProgress("run-1", time.Date(2025, 7, 1, 2, 0, 0, 0, time.UTC))
	p.Stages[StageUniverseScan].Status = StatusRunning
	p.Stages[StageUniverseScan].Progress = 42
	p.Metrics.StocksScanned = 17
	p.Warnings = append(p.Warnings, LogEntry{Timestamp: time.Now().UTC(), Message: "thin data"})
	require.NoError(t, store.Save(p))

	loaded, err = store.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "run-1", loaded.RunID)
	assert.Equal(t, StatusRunning, loaded.Stages[StageUniverseScan].Status)
	assert.InDelta(t, 42.0, loaded.Stages[StageUniverseScan].Progress, 1e-9)
	assert.Equal(t, 17, loaded.Metrics.StocksScanned)
	require.Len(t, loaded.Warnings, 1)
}

func TestStoreSaveReplacesSnapshot(t *testing.T) {
	store := newSQLiteStore(t)

	p := newProgress("run-1", time.Now().UTC())
	require.NoError(t, store.Save(p))
	p.Metrics.StocksScanned = 5
	require.NoError(t, store.Save(p))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 5, loaded.Metrics.StocksScanned)
}

func TestStoreArchiveAndHistory(t *testing.T) {
	store := newSQLiteStore(t)

	base := time.Date(2025, 7, 1, 2, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		p := newProgress("run-"+string(rune('a'+i)), base.AddDate(0, 0, i))
		p.refresh(base.AddDate(0, 0, i).Add(time.Hour), false)
		require.NoError(t, store.Archive(p))
	}

	history, err := store.History(2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	// Most recent first
	assert.Equal(t, "run-c", history[0].RunID)
	assert.Equal(t, "run-b", history[1].RunID)

	all, err := store.History(0) // default limit
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestStoreArchiveSameRunIsIdempotent(t *testing.T) {
	store := newSQLiteStore(t)

	p := newProgress("run-1", time.Date(2025, 7, 1, 2, 0, 0, 0, time.UTC))
	require.NoError(t, store.Archive(p))
	p.Metrics.OpportunitiesFound = 9
	require.NoError(t, store.Archive(p))

	history, err := store.History(10)
	require.NoError(t, err)
	require.Len(t, history, 1, "same start timestamp replaces, not duplicates")
	assert.Equal(t, 9, history[0].Metrics.OpportunitiesFound)
}

func TestTrackerWithSQLiteStore(t *testing.T) {
	store := newSQLiteStore(t)
	tracker, err := NewTracker(store, nil, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, tracker.UpdateStage(StageInitialization, StatusComplete, 100, "ok"))
	require.NoError(t, tracker.UpdateStage(StageRegimeDetection, StatusFailed, 0, "gone"))

	// A forced interruption: reload shows the just-written snapshot with
	// the last completed stage intact.
	loaded, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, StatusFailed, loaded.OverallStatus)
	assert.Equal(t, StageInitialization, loaded.LastCompletedStage())
}
