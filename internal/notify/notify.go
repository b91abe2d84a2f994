// Package notify provides the concrete notification channels the tracker
// fires on terminal pipeline states. The channel choice is configuration;
// the tracker only sees the interface.
package notify

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/vigil/internal/pipeline"
)

// LogNotifier writes notifications to the structured log
type LogNotifier struct {
	log zerolog.Logger
}

// NewLogNotifier creates a log-backed notifier
func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log.With().Str("component", "notifier").Logger()}
}

// SendSuccess logs a completed run
func (n *LogNotifier) SendSuccess(p *pipeline.Progress, reportPath string) error {
	n.log.Info().
		Str("run_id", p.RunID).
		Str("report", reportPath).
		Int("stocks_scanned", p.Metrics.StocksScanned).
		Int("opportunities", p.Metrics.OpportunitiesFound).
		Str("duration", p.ExecutionTimeFormatted).
		Msg("Pipeline run complete")
	return nil
}

// SendFailure logs a failed run
func (n *LogNotifier) SendFailure(message string, p *pipeline.Progress) error {
	n.log.Error().
		Str("run_id", p.RunID).
		Str("reason", message).
		Str("last_completed_stage", p.LastCompletedStage()).
		Int("errors", len(p.Errors)).
		Msg("Pipeline run failed")
	return nil
}

// notification is one JSON line in the file channel
type notification struct {
	SentAt     time.Time `json:"sent_at"`
	Kind       string    `json:"kind"` // success or failure
	RunID      string    `json:"run_id"`
	Message    string    `json:"message,omitempty"`
	ReportPath string    `json:"report_path,omitempty"`
	Status     string    `json:"overall_status"`
	LastStage  string    `json:"last_completed_stage"`
}

// FileNotifier appends one JSON line per notification to a file, for
// external tooling to tail.
type FileNotifier struct {
	path string
	log  zerolog.Logger
}

// NewFileNotifier creates a file-backed notifier appending to path
func NewFileNotifier(path string, log zerolog.Logger) *FileNotifier {
	return &FileNotifier{
		path: path,
		log:  log.With().Str("component", "file_notifier").Logger(),
	}
}

// SendSuccess appends a success line
func (n *FileNotifier) SendSuccess(p *pipeline.Progress, reportPath string) error {
	return n.append(notification{
		SentAt:     time.Now().UTC(),
		Kind:       "success",
		RunID:      p.RunID,
		ReportPath: reportPath,
		Status:     string(p.OverallStatus),
		LastStage:  p.LastCompletedStage(),
	})
}

// SendFailure appends a failure line
func (n *FileNotifier) SendFailure(message string, p *pipeline.Progress) error {
	return n.append(notification{
		SentAt:    time.Now().UTC(),
		Kind:      "failure",
		RunID:     p.RunID,
		Message:   message,
		Status:    string(p.OverallStatus),
		LastStage: p.LastCompletedStage(),
	})
}

func (n *FileNotifier) append(entry notification) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling notification: %w", err)
	}
	f, err := os.OpenFile(n.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening notification file: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing notification: %w", err)
	}
	return nil
}
