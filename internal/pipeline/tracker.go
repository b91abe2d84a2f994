package pipeline

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Store persists the progress document. Save is called on every mutation;
// Archive is called exactly once, when the run reaches a terminal state.
type Store interface {
	Save(p *Progress) error
	Load() (*Progress, error)
	Archive(p *Progress) error
	History(limit int) ([]*Progress, error)
}

// Notifier is the notification channel the tracker fires on terminal
// states. The concrete channel is configuration, not core.
type Notifier interface {
	SendSuccess(p *Progress, reportPath string) error
	SendFailure(message string, p *Progress) error
}

// Tracker exclusively owns the progress document. Stages mutate it only
// through these calls; every mutation persists the full document before
// returning, and the first terminal transition fires exactly one
// notification and archives the document to history.
type Tracker struct {
	mu          sync.Mutex
	progress    *Progress
	store       Store
	notifier    Notifier
	log         zerolog.Logger
	notified    bool
	failedLatch bool
	cancelled   bool
	reportPath  string
	failReason  string
	now         func() time.Time
}

// NewTracker starts a new run with a fresh document and persists the
// initial pending snapshot.
func NewTracker(store Store, notifier Notifier, log zerolog.Logger) (*Tracker, error) {
	t := &Tracker{
		store:    store,
		notifier: notifier,
		log:      log.With().Str("component", "tracker").Logger(),
		now:      time.Now,
	}
	t.progress = newProgress(uuid.New().String(), t.now().UTC())
	if err := t.store.Save(t.progress); err != nil {
		return nil, fmt.Errorf("persisting initial progress: %w", err)
	}
	t.log.Info().Str("run_id", t.progress.RunID).Msg("Pipeline run started")
	return t, nil
}

// RunID returns this run's identifier
func (t *Tracker) RunID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress.RunID
}

// UpdateStage transitions one stage and persists the document. Unknown
// stage names are programming errors and are rejected. A failed stage
// latches the overall status to failed permanently.
func (t *Tracker) UpdateStage(stage string, status Status, progress float64, message string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.progress.Stages[stage]
	if !ok {
		return fmt.Errorf("unknown stage %q", stage)
	}
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	s.Status = status
	s.Progress = progress
	s.Message = message
	if status == StatusFailed {
		t.failedLatch = true
		if t.failReason == "" {
			t.failReason = fmt.Sprintf("stage %s failed: %s", stage, message)
		}
		t.progress.Errors = append(t.progress.Errors, LogEntry{
			Timestamp: t.now().UTC(),
			Message:   fmt.Sprintf("stage %s failed: %s", stage, message),
		})
	}
	return t.commitLocked()
}

// AddError appends a timestamped error entry. Errors are visibility, not
// control flow; they do not fail the run by themselves.
func (t *Tracker) AddError(message string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.progress.Errors = append(t.progress.Errors, LogEntry{Timestamp: t.now().UTC(), Message: message})
	return t.commitLocked()
}

// AddWarning appends a timestamped warning entry
func (t *Tracker) AddWarning(message string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.progress.Warnings = append(t.progress.Warnings, LogEntry{Timestamp: t.now().UTC(), Message: message})
	return t.commitLocked()
}

// IncrementMetric bumps one counter. Safe to call from worker goroutines;
// this is the single synchronized increment path workers must use.
func (t *Tracker) IncrementMetric(name string, delta int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch name {
	case MetricStocksScanned:
		t.progress.Metrics.StocksScanned += delta
	case MetricModelsTrained:
		t.progress.Metrics.ModelsTrained += delta
	case MetricPredictionsGenerated:
		t.progress.Metrics.PredictionsGenerated += delta
	case MetricOpportunitiesFound:
		t.progress.Metrics.OpportunitiesFound += delta
	default:
		return fmt.Errorf("unknown metric %q", name)
	}
	return t.commitLocked()
}

// SetReportPath records where the run report was written, for the
// success notification.
func (t *Tracker) SetReportPath(path string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reportPath = path
	t.progress.ReportPath = path
	return t.commitLocked()
}

// Cancel requests cooperative cancellation. Running stage loops must
// check Cancelled before their next unit of work.
func (t *Tracker) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelled = true
	t.log.Warn().Str("run_id", t.progress.RunID).Msg("Cancellation requested")
}

// Cancelled reports whether cancellation was requested
func (t *Tracker) Cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// Snapshot returns a deep copy of the current document
func (t *Tracker) Snapshot() *Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress.clone()
}

// commitLocked recomputes derived fields, persists the full document, and
// fires the one-and-only terminal notification when the run first ends.
// Callers hold t.mu.
func (t *Tracker) commitLocked() error {
	t.progress.refresh(t.now().UTC(), t.failedLatch)

	if err := t.store.Save(t.progress); err != nil {
		return fmt.Errorf("persisting progress: %w", err)
	}

	if t.progress.Terminal() && !t.notified {
		t.notified = true
		t.notifyAndArchiveLocked()
	}
	return nil
}

func (t *Tracker) notifyAndArchiveLocked() {
	snapshot := t.progress.clone()

	if err := t.store.Archive(snapshot); err != nil {
		t.log.Error().Err(err).Msg("Failed to archive run history")
	}

	if t.notifier == nil {
		return
	}
	var err error
	if t.progress.OverallStatus == StatusComplete {
		err = t.notifier.SendSuccess(snapshot, t.reportPath)
	} else {
		reason := t.failReason
		if reason == "" {
			reason = "pipeline failed"
		}
		err = t.notifier.SendFailure(reason, snapshot)
	}
	if err != nil {
		t.log.Error().Err(err).Msg("Notification failed")
	}
}
