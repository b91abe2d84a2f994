package prediction

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/vigil/internal/domain"
)

// Item is one unit of batch work: a symbol and its validated price series
type Item struct {
	Symbol string
	Series *domain.PriceSeries
}

// Outcome is the per-symbol result of a batch run. Err is set when the
// symbol could not be predicted; the batch itself continues regardless.
type Outcome struct {
	Symbol string
	Record domain.PredictionRecord
	Err    error
}

// ProgressFunc receives each outcome as it completes. It is invoked from a
// single goroutine, so implementations need no locking of their own.
type ProgressFunc func(done, total int, outcome Outcome)

// CancelFunc is polled before each unit of work; returning true stops the
// batch cooperatively after the in-flight symbols finish.
type CancelFunc func() bool

// BatchPredictor runs the bridge across a universe with a bounded worker
// pool. Per-symbol failures and timeouts are recorded and skipped; only
// the supplied context or cancel callback stops the run early.
type BatchPredictor struct {
	bridge  *Bridge
	workers int
	timeout time.Duration
	log     zerolog.Logger
}

// NewBatchPredictor creates a batch predictor. workers <= 0 defaults to 4.
func NewBatchPredictor(bridge *Bridge, workers int, perSymbolTimeout time.Duration, log zerolog.Logger) *BatchPredictor {
	if workers <= 0 {
		workers = 4
	}
	return &BatchPredictor{
		bridge:  bridge,
		workers: workers,
		timeout: perSymbolTimeout,
		log:     log.With().Str("component", "batch_predictor").Logger(),
	}
}

// Run predicts every item and returns the outcomes in completion order.
// cancelled and progress may be nil. Symbols skipped by cancellation are
// absent from the result rather than reported as failures.
func (p *BatchPredictor) Run(ctx context.Context, items []Item, cancelled CancelFunc, progress ProgressFunc) []Outcome {
	total := len(items)
	if total == 0 {
		return nil
	}

	jobs := make(chan Item, total)
	results := make(chan Outcome, total)

	workers := p.workers
	if total < workers {
		workers = total
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker(ctx, jobs, results, cancelled)
		}()
	}

	for _, item := range items {
		jobs <- item
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	// Single collector goroutine: the progress callback never runs
	// concurrently with itself.
	outcomes := make([]Outcome, 0, total)
	done := 0
	for outcome := range results {
		done++
		outcomes = append(outcomes, outcome)
		if progress != nil {
			progress(done, total, outcome)
		}
	}

	p.log.Info().
		Int("requested", total).
		Int("completed", len(outcomes)).
		Msg("Batch prediction finished")
	return outcomes
}

func (p *BatchPredictor) worker(ctx context.Context, jobs <-chan Item, results chan<- Outcome, cancelled CancelFunc) {
	for item := range jobs {
		// Cooperative cancellation: checked before each unit of work
		if ctx.Err() != nil || (cancelled != nil && cancelled()) {
			continue
		}
		results <- p.predictOne(ctx, item)
	}
}

func (p *BatchPredictor) predictOne(ctx context.Context, item Item) Outcome {
	if item.Series == nil || item.Series.IsEmpty() {
		return Outcome{Symbol: item.Symbol, Err: fmt.Errorf("no price series for %s", item.Symbol)}
	}

	symbolCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		symbolCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	record := p.bridge.Predict(symbolCtx, item.Symbol, item.Series)
	return Outcome{Symbol: item.Symbol, Record: record}
}
