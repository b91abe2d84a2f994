// Package pipeline runs the nightly scoring pipeline: a fixed sequence of
// stages reporting into a single durable progress tracker. The tracker is
// the only writer of the progress document; every mutation is persisted in
// full before the call returns, so an external viewer always sees a
// consistent, just-written snapshot.
package pipeline

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a stage or of the whole run
type Status string

const (
	StatusPending  Status = "pending"
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// The fixed stage sequence. Transitions happen only through explicit
// per-stage update calls, never implicitly.
const (
	StageInitialization   = "initialization"
	StageRegimeDetection  = "regime_detection"
	StageUniverseScan     = "universe_scan"
	StageModelRefresh     = "model_refresh"
	StageBatchPrediction  = "batch_prediction"
	StageScoring          = "scoring"
	StageReportGeneration = "report_generation"
)

// StageNames returns the stages in execution order
func StageNames() []string {
	return []string{
		StageInitialization,
		StageRegimeDetection,
		StageUniverseScan,
		StageModelRefresh,
		StageBatchPrediction,
		StageScoring,
		StageReportGeneration,
	}
}

// Metric counter names
const (
	MetricStocksScanned        = "stocks_scanned"
	MetricModelsTrained        = "models_trained"
	MetricPredictionsGenerated = "predictions_generated"
	MetricOpportunitiesFound   = "opportunities_found"
)

// StageState is one stage's position in the run
type StageState struct {
	Status   Status  `json:"status"`
	Progress float64 `json:"progress"` // 0..100
	Message  string  `json:"message,omitempty"`
}

// Metrics are the run counters, incremented through the tracker only
type Metrics struct {
	StocksScanned        int `json:"stocks_scanned"`
	ModelsTrained        int `json:"models_trained"`
	PredictionsGenerated int `json:"predictions_generated"`
	OpportunitiesFound   int `json:"opportunities_found"`
}

// LogEntry is one timestamped error or warning line
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// Progress is the persisted run document. The Tracker owns it exclusively;
// everything else reads snapshots.
type Progress struct {
	RunID                       string                 `json:"run_id"`
	StartTime                   time.Time              `json:"start_time"`
	EndTime                     *time.Time             `json:"end_time,omitempty"`
	CurrentTime                 time.Time              `json:"current_time"`
	OverallStatus               Status                 `json:"overall_status"`
	OverallProgress             float64                `json:"overall_progress"` // 0..100
	ExecutionTimeFormatted      string                 `json:"execution_time_formatted"`
	EstimatedRemainingFormatted string                 `json:"estimated_remaining_formatted"`
	EstimatedCompletionTime     string                 `json:"estimated_completion_time"`
	Stages                      map[string]*StageState `json:"stages"`
	Metrics                     Metrics                `json:"metrics"`
	Errors                      []LogEntry             `json:"errors"`
	Warnings                    []LogEntry             `json:"warnings"`
	ReportPath                  string                 `json:"report_path,omitempty"`
}

// newProgress builds a pending document with every stage pending
func newProgress(runID string, now time.Time) *Progress {
	stages := make(map[string]*StageState, len(StageNames()))
	for _, name := range StageNames() {
		stages[name] = &StageState{Status: StatusPending}
	}
	return &Progress{
		RunID:         runID,
		StartTime:     now,
		CurrentTime:   now,
		OverallStatus: StatusPending,
		Stages:        stages,
		Errors:        []LogEntry{},
		Warnings:      []LogEntry{},
	}
}

// refresh recomputes the derived fields: overall progress and status, the
// clock fields, and the ETA. failedLatch keeps a run failed even if a
// later stage reports progress.
func (p *Progress) refresh(now time.Time, failedLatch bool) {
	p.CurrentTime = now

	total := 0.0
	pendingOrRunning := false
	anyFailed := failedLatch
	for _, name := range StageNames() {
		s := p.Stages[name]
		total += s.Progress
		switch s.Status {
		case StatusFailed:
			anyFailed = true
		case StatusPending, StatusRunning:
			pendingOrRunning = true
		}
	}
	p.OverallProgress = total / float64(len(StageNames()))

	switch {
	case anyFailed:
		p.OverallStatus = StatusFailed
	case pendingOrRunning:
		p.OverallStatus = StatusRunning
	default:
		p.OverallStatus = StatusComplete
	}

	if p.OverallStatus == StatusComplete || p.OverallStatus == StatusFailed {
		if p.EndTime == nil {
			end := now
			p.EndTime = &end
		}
	}

	elapsed := now.Sub(p.StartTime)
	p.ExecutionTimeFormatted = formatDuration(elapsed)
	p.estimateRemaining(now, elapsed)
}

// estimateRemaining implements
// remaining = elapsed * (1 - p/100) / max(p/100, epsilon).
// The estimate is meaningless until progress moves past zero, so it stays
// empty until then and clears on terminal states.
func (p *Progress) estimateRemaining(now time.Time, elapsed time.Duration) {
	if p.OverallStatus != StatusRunning || p.OverallProgress <= 0 {
		p.EstimatedRemainingFormatted = ""
		p.EstimatedCompletionTime = ""
		return
	}
	const epsilon = 1e-6
	fraction := p.OverallProgress / 100
	if fraction < epsilon {
		fraction = epsilon
	}
	remaining := time.Duration(float64(elapsed) * (1 - p.OverallProgress/100) / fraction)
	p.EstimatedRemainingFormatted = formatDuration(remaining)
	p.EstimatedCompletionTime = now.Add(remaining).UTC().Format(time.RFC3339)
}

// Terminal reports whether the run has finished, either way
func (p *Progress) Terminal() bool {
	return p.OverallStatus == StatusComplete || p.OverallStatus == StatusFailed
}

// LastCompletedStage returns the latest stage in execution order whose
// status is complete, or "" when none has completed yet.
func (p *Progress) LastCompletedStage() string {
	last := ""
	for _, name := range StageNames() {
		if p.Stages[name].Status == StatusComplete {
			last = name
		}
	}
	return last
}

// clone deep-copies the document so readers never alias tracker state
func (p *Progress) clone() *Progress {
	out := *p
	out.Stages = make(map[string]*StageState, len(p.Stages))
	for name, s := range p.Stages {
		copied := *s
		out.Stages[name] = &copied
	}
	out.Errors = append([]LogEntry(nil), p.Errors...)
	out.Warnings = append([]LogEntry(nil), p.Warnings...)
	if p.EndTime != nil {
		end := *p.EndTime
		out.EndTime = &end
	}
	return &out
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}
