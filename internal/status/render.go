package status

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aristath/vigil/internal/pipeline"
)

// RenderProgress writes a human-readable snapshot of a pipeline run
func RenderProgress(w io.Writer, p *pipeline.Progress) {
	if p == nil {
		fmt.Fprintln(w, "No pipeline run recorded yet.")
		return
	}

	fmt.Fprintf(w, "Run %s  [%s]  %.1f%%\n", p.RunID, p.OverallStatus, p.OverallProgress)
	fmt.Fprintf(w, "Started: %s  Elapsed: %s\n", p.StartTime.Format(time.RFC3339), p.ExecutionTimeFormatted)
	if p.EstimatedRemainingFormatted != "" {
		fmt.Fprintf(w, "Remaining: %s  ETA: %s\n", p.EstimatedRemainingFormatted, p.EstimatedCompletionTime)
	}

	fmt.Fprintln(w)
	for _, name := range pipeline.StageNames() {
		stage := p.Stages[name]
		if stage == nil {
			continue
		}
		marker := " "
		switch stage.Status {
		case pipeline.StatusComplete:
			marker = "+"
		case pipeline.StatusRunning:
			marker = ">"
		case pipeline.StatusFailed:
			marker = "x"
		}
		line := fmt.Sprintf("  [%s] %-18s %6.1f%%", marker, name, stage.Progress)
		if stage.Message != "" {
			line += "  " + stage.Message
		}
		fmt.Fprintln(w, line)
	}

	fmt.Fprintf(w, "\nScanned: %d  Models: %d  Predictions: %d  Opportunities: %d\n",
		p.Metrics.StocksScanned, p.Metrics.ModelsTrained,
		p.Metrics.PredictionsGenerated, p.Metrics.OpportunitiesFound)

	if len(p.Errors) > 0 {
		fmt.Fprintf(w, "Errors: %d (last: %s)\n", len(p.Errors), p.Errors[len(p.Errors)-1].Message)
	}
	if len(p.Warnings) > 0 {
		fmt.Fprintf(w, "Warnings: %d\n", len(p.Warnings))
	}
	if p.ReportPath != "" {
		fmt.Fprintf(w, "Report: %s\n", p.ReportPath)
	}
}

// RenderHistory writes a one-line-per-run listing of archived runs
func RenderHistory(w io.Writer, runs []*pipeline.Progress) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No archived runs.")
		return
	}

	fmt.Fprintf(w, "%-38s %-20s %-10s %8s %6s\n", "RUN", "STARTED", "STATUS", "ELAPSED", "OPPS")
	fmt.Fprintln(w, strings.Repeat("-", 86))
	for _, run := range runs {
		fmt.Fprintf(w, "%-38s %-20s %-10s %8s %6d\n",
			run.RunID,
			run.StartTime.Format("2006-01-02 15:04:05"),
			run.OverallStatus,
			run.ExecutionTimeFormatted,
			run.Metrics.OpportunitiesFound)
	}
}

// Watch polls the reader and re-renders until the run reaches a terminal
// state or the context is cancelled.
func Watch(ctx context.Context, reader *Reader, w io.Writer, interval time.Duration) error {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		progress, err := reader.Current()
		if err != nil {
			return err
		}
		RenderProgress(w, progress)
		if progress != nil && progress.Terminal() {
			return nil
		}
		fmt.Fprintln(w)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
