// Package marketdata provides access to daily price history for symbols.
// Implementations must be idempotent and side-effect free: the regime
// engine, the beta calculator and the batch predictor all share one
// provider and may fetch the same series more than once per run.
package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/vigil/internal/domain"
)

// Provider fetches daily price series from an external data source
type Provider interface {
	// Fetch returns the daily series for one symbol over [start, end].
	// An unknown symbol or unreachable source returns an error; an empty
	// but well-formed response returns an empty series and no error.
	Fetch(ctx context.Context, symbol string, start, end time.Time) (*domain.PriceSeries, error)

	// FetchMulti returns daily series for several symbols in one call.
	// Symbols that could not be resolved are absent from the map; the
	// call fails only when the response itself is unusable.
	FetchMulti(ctx context.Context, symbols []string, start, end time.Time) (map[string]*domain.PriceSeries, error)
}

// ErrRateLimitExceeded is returned when the daily request budget is exhausted
type ErrRateLimitExceeded struct {
	Limit int
}

func (e ErrRateLimitExceeded) Error() string {
	return fmt.Sprintf("daily request limit of %d exceeded", e.Limit)
}

// ErrNoCloseColumn is returned when a layered multi-symbol payload carries
// a column group with no resolvable close field. Callers convert this into
// a well-formed error result instead of letting it escape a stage.
type ErrNoCloseColumn struct {
	Symbol string
}

func (e ErrNoCloseColumn) Error() string {
	return fmt.Sprintf("no resolvable close column for symbol %s", e.Symbol)
}

// ErrEmptyResponse is returned when the source answered but supplied no rows
type ErrEmptyResponse struct {
	Symbol string
}

func (e ErrEmptyResponse) Error() string {
	return fmt.Sprintf("empty response for symbol %s", e.Symbol)
}
