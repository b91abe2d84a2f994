package pipeline

import (
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryStore records every saved snapshot for assertions
type memoryStore struct {
	mu       sync.Mutex
	current  *Progress
	archived []*Progress
	saves    int
	failSave bool
}

func (s *memoryStore) Save(p *Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSave {
		return assert.AnError
	}
	s.current = p.clone()
	s.saves++
	return nil
}

func (s *memoryStore) Load() (*Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, nil
}

func (s *memoryStore) Archive(p *Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.archived = append(s.archived, p.clone())
	return nil
}

func (s *memoryStore) History(limit int) ([]*Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.archived, nil
}

// spyNotifier counts terminal notifications
type spyNotifier struct {
	mu        sync.Mutex
	successes int
	failures  int
	lastMsg   string
}

func (n *spyNotifier) SendSuccess(p *Progress, reportPath string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.successes++
	return nil
}

func (n *spyNotifier) SendFailure(message string, p *Progress) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures++
	n.lastMsg = message
	return nil
}

func newTestTracker(t *testing.T) (*Tracker, *memoryStore, *spyNotifier) {
	t.Helper()
	store := &memoryStore{}
	notifier := &spyNotifier{}
	tracker, err := NewTracker(store, notifier, zerolog.Nop())
	require.NoError(t, err)
	return tracker, store, notifier
}

func completeAllStages(t *testing.T, tracker *Tracker) {
	t.Helper()
	for _, stage := range StageNames() {
		require.NoError(t, tracker.UpdateStage(stage, StatusRunning, 0, ""))
		require.NoError(t, tracker.UpdateStage(stage, StatusComplete, 100, "done"))
	}
}

func TestTrackerPersistsEveryMutation(t *testing.T) {
	tracker, store, _ := newTestTracker(t)

	before := store.saves
	require.NoError(t, tracker.UpdateStage(StageInitialization, StatusRunning, 10, "starting"))
	require.NoError(t, tracker.AddWarning("minor"))
	require.NoError(t, tracker.IncrementMetric(MetricStocksScanned, 3))
	assert.Equal(t, before+3, store.saves)

	// The persisted snapshot matches the just-written mutation
	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, loaded.Stages[StageInitialization].Status)
	assert.Equal(t, 3, loaded.Metrics.StocksScanned)
	require.Len(t, loaded.Warnings, 1)
	assert.False(t, loaded.Warnings[0].Timestamp.IsZero())
}

func TestTrackerOverallStatusDerivation(t *testing.T) {
	tracker, _, _ := newTestTracker(t)

	require.NoError(t, tracker.UpdateStage(StageInitialization, StatusRunning, 50, ""))
	assert.Equal(t, StatusRunning, tracker.Snapshot().OverallStatus)

	completeAllStages(t, tracker)
	snap := tracker.Snapshot()
	assert.Equal(t, StatusComplete, snap.OverallStatus)
	assert.InDelta(t, 100.0, snap.OverallProgress, 1e-9)
	require.NotNil(t, snap.EndTime)
}

func TestTrackerFailureLatches(t *testing.T) {
	tracker, _, notifier := newTestTracker(t)

	require.NoError(t, tracker.UpdateStage(StageInitialization, StatusComplete, 100, ""))
	require.NoError(t, tracker.UpdateStage(StageRegimeDetection, StatusFailed, 0, "fetch failed"))
	assert.Equal(t, StatusFailed, tracker.Snapshot().OverallStatus)

	// Later updates must never revert a failed run to running
	require.NoError(t, tracker.UpdateStage(StageUniverseScan, StatusRunning, 20, ""))
	snap := tracker.Snapshot()
	assert.Equal(t, StatusFailed, snap.OverallStatus)

	// Completed stages stay in the record
	assert.Equal(t, StatusComplete, snap.Stages[StageInitialization].Status)
	assert.Equal(t, StageInitialization, snap.LastCompletedStage())

	assert.Equal(t, 1, notifier.failures)
	assert.Contains(t, notifier.lastMsg, "regime_detection")
}

func TestTrackerNotifiesExactlyOnce(t *testing.T) {
	tracker, store, notifier := newTestTracker(t)
	completeAllStages(t, tracker)

	// Mutations after the terminal state must not re-notify or re-archive
	require.NoError(t, tracker.AddWarning("late warning"))
	require.NoError(t, tracker.IncrementMetric(MetricOpportunitiesFound, 1))

	assert.Equal(t, 1, notifier.successes)
	assert.Zero(t, notifier.failures)
	assert.Len(t, store.archived, 1)
	assert.Equal(t, tracker.RunID(), store.archived[0].RunID)
}

func TestTrackerRejectsUnknownStageAndMetric(t *testing.T) {
	tracker, _, _ := newTestTracker(t)
	assert.Error(t, tracker.UpdateStage("no_such_stage", StatusRunning, 0, ""))
	assert.Error(t, tracker.IncrementMetric("no_such_metric", 1))
}

func TestTrackerPersistFailureSurfaces(t *testing.T) {
	store := &memoryStore{}
	tracker, err := NewTracker(store, nil, zerolog.Nop())
	require.NoError(t, err)

	store.failSave = true
	assert.Error(t, tracker.UpdateStage(StageInitialization, StatusRunning, 0, ""))
}

func TestTrackerCancellation(t *testing.T) {
	tracker, _, _ := newTestTracker(t)
	assert.False(t, tracker.Cancelled())
	tracker.Cancel()
	assert.True(t, tracker.Cancelled())
}

func TestTrackerConcurrentMetricIncrements(t *testing.T) {
	tracker, _, _ := newTestTracker(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				_ = tracker.IncrementMetric(MetricPredictionsGenerated, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 200, tracker.Snapshot().Metrics.PredictionsGenerated)
}

func TestTrackerETA(t *testing.T) {
	tracker, _, _ := newTestTracker(t)

	// No progress yet: the estimate is meaningless and stays empty
	require.NoError(t, tracker.UpdateStage(StageInitialization, StatusRunning, 0, ""))
	assert.Empty(t, tracker.Snapshot().EstimatedRemainingFormatted)

	require.NoError(t, tracker.UpdateStage(StageInitialization, StatusComplete, 100, ""))
	snap := tracker.Snapshot()
	assert.NotEmpty(t, snap.EstimatedRemainingFormatted)
	assert.NotEmpty(t, snap.EstimatedCompletionTime)

	completeAllStages(t, tracker)
	assert.Empty(t, tracker.Snapshot().EstimatedRemainingFormatted)
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	tracker, _, _ := newTestTracker(t)
	snap := tracker.Snapshot()
	snap.Stages[StageInitialization].Status = StatusFailed
	snap.Metrics.StocksScanned = 999

	fresh := tracker.Snapshot()
	assert.Equal(t, StatusPending, fresh.Stages[StageInitialization].Status)
	assert.Zero(t, fresh.Metrics.StocksScanned)
}
