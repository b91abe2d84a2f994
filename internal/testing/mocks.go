package testing

import (
	"context"
	"sync"
	"time"

	"github.com/aristath/vigil/internal/domain"
	"github.com/aristath/vigil/internal/marketdata"
)

// FakeProvider is an in-memory marketdata.Provider for tests. Symbols map
// to canned series; symbols in FailWith return their configured error.
type FakeProvider struct {
	mu       sync.Mutex
	Series   map[string]*domain.PriceSeries
	FailWith map[string]error
	MultiErr error // when set, FetchMulti fails with this error
	calls    map[string]int
}

// NewFakeProvider creates an empty fake provider
func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		Series:   make(map[string]*domain.PriceSeries),
		FailWith: make(map[string]error),
		calls:    make(map[string]int),
	}
}

// Add registers a canned series for a symbol
func (p *FakeProvider) Add(series *domain.PriceSeries) *FakeProvider {
	p.Series[series.Symbol] = series
	return p
}

// Fail registers an error for a symbol
func (p *FakeProvider) Fail(symbol string, err error) *FakeProvider {
	p.FailWith[symbol] = err
	return p
}

// Calls returns how many times a symbol was fetched
func (p *FakeProvider) Calls(symbol string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[symbol]
}

// Fetch implements marketdata.Provider
func (p *FakeProvider) Fetch(ctx context.Context, symbol string, start, end time.Time) (*domain.PriceSeries, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.calls[symbol]++
	p.mu.Unlock()

	if err, ok := p.FailWith[symbol]; ok {
		return nil, err
	}
	if series, ok := p.Series[symbol]; ok {
		return series, nil
	}
	return nil, marketdata.ErrEmptyResponse{Symbol: symbol}
}

// FetchMulti implements marketdata.Provider
func (p *FakeProvider) FetchMulti(ctx context.Context, symbols []string, start, end time.Time) (map[string]*domain.PriceSeries, error) {
	if p.MultiErr != nil {
		return nil, p.MultiErr
	}
	out := make(map[string]*domain.PriceSeries, len(symbols))
	for _, symbol := range symbols {
		series, err := p.Fetch(ctx, symbol, start, end)
		if err != nil {
			continue
		}
		out[symbol] = series
	}
	return out, nil
}
