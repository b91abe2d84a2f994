// Package testing provides testing utilities and helpers for the vigil project.
package testing

import (
	"math"
	"time"

	"github.com/aristath/vigil/internal/domain"
)

// SeriesOpts controls synthetic series generation
type SeriesOpts struct {
	Start      time.Time
	Days       int     // Number of weekday candles
	StartPrice float64 // First close
	Drift      float64 // Per-day multiplicative drift (e.g. 0.001)
	Amplitude  float64 // Deterministic oscillation amplitude (e.g. 0.01)
	Volume     float64 // Constant volume per day
}

// DefaultSeriesOpts returns options for a well-behaved 120-day series
func DefaultSeriesOpts() SeriesOpts {
	return SeriesOpts{
		Start:      time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
		Days:       120,
		StartPrice: 100,
		Drift:      0.0005,
		Amplitude:  0.012,
		Volume:     1_000_000,
	}
}

// NewSeries builds a deterministic weekday price series. The oscillation
// term keeps returns non-constant without randomness, so fitted models
// produce reproducible output in tests.
func NewSeries(symbol string, opts SeriesOpts) *domain.PriceSeries {
	candles := make([]domain.Candle, 0, opts.Days)
	d := opts.Start
	price := opts.StartPrice
	for i := 0; i < opts.Days; i++ {
		for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			d = d.AddDate(0, 0, 1)
		}
		move := opts.Drift + opts.Amplitude*math.Sin(float64(i)*0.7)
		price *= 1 + move
		candles = append(candles, domain.Candle{
			Date:   d,
			Open:   price * 0.995,
			High:   price * 1.008,
			Low:    price * 0.991,
			Close:  price,
			Volume: opts.Volume,
		})
		d = d.AddDate(0, 0, 1)
	}
	series, err := domain.NewPriceSeries(symbol, candles)
	if err != nil {
		panic(err) // generation is deterministic; this is a fixture bug
	}
	return series
}

// NewCorrelatedSeries builds a series whose returns are beta times the
// reference series' returns, for exercising the beta calculator.
func NewCorrelatedSeries(symbol string, reference *domain.PriceSeries, beta float64) *domain.PriceSeries {
	refReturns := reference.Returns()
	candles := make([]domain.Candle, 0, reference.Len())
	price := 50.0
	for i, c := range reference.Candles {
		if i > 0 {
			price *= 1 + beta*refReturns[i-1]
		}
		candles = append(candles, domain.Candle{
			Date:   c.Date,
			Open:   price * 0.997,
			High:   price * 1.005,
			Low:    price * 0.994,
			Close:  price,
			Volume: 500_000,
		})
	}
	series, err := domain.NewPriceSeries(symbol, candles)
	if err != nil {
		panic(err)
	}
	return series
}

// NewFlatSeries builds a series with a constant close, giving zero-variance
// returns (the degenerate-regression case).
func NewFlatSeries(symbol string, days int) *domain.PriceSeries {
	opts := DefaultSeriesOpts()
	candles := make([]domain.Candle, 0, days)
	d := opts.Start
	for i := 0; i < days; i++ {
		for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			d = d.AddDate(0, 0, 1)
		}
		candles = append(candles, domain.Candle{
			Date: d, Open: 100, High: 100, Low: 100, Close: 100, Volume: 1000,
		})
		d = d.AddDate(0, 0, 1)
	}
	series, err := domain.NewPriceSeries(symbol, candles)
	if err != nil {
		panic(err)
	}
	return series
}
