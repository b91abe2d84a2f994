// Package status is the read-only surface over the pipeline's persisted
// progress. It only consumes tracker state, never produces it, so the
// tracker's write path and any viewer evolve independently.
package status

import (
	"fmt"

	"github.com/aristath/vigil/internal/pipeline"
)

// Reader answers status queries from the progress store
type Reader struct {
	store pipeline.Store
}

// NewReader creates a reader over the store
func NewReader(store pipeline.Store) *Reader {
	return &Reader{store: store}
}

// Current returns the latest persisted snapshot, or nil when no run has
// ever been recorded.
func (r *Reader) Current() (*pipeline.Progress, error) {
	p, err := r.store.Load()
	if err != nil {
		return nil, fmt.Errorf("reading current progress: %w", err)
	}
	return p, nil
}

// History returns archived runs, most recent first
func (r *Reader) History(limit int) ([]*pipeline.Progress, error) {
	runs, err := r.store.History(limit)
	if err != nil {
		return nil, fmt.Errorf("reading run history: %w", err)
	}
	return runs, nil
}
