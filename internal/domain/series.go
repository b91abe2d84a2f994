package domain

import (
	"fmt"
	"math"
	"time"
)

// Candle represents one daily OHLCV bar
type Candle struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// PriceSeries is an ordered daily price history for one symbol.
// Invariant: dates strictly increasing, no duplicates, all OHLC > 0.
// Construct via NewPriceSeries to enforce ordering.
type PriceSeries struct {
	Symbol  string   `json:"symbol"`
	Candles []Candle `json:"candles"`
}

// NewPriceSeries builds a series, rejecting unordered or duplicate dates.
// OHLC positivity is deliberately left to the quality validator so that
// raw provider data can be inspected rather than discarded at the door.
func NewPriceSeries(symbol string, candles []Candle) (*PriceSeries, error) {
	for i := 1; i < len(candles); i++ {
		if !candles[i].Date.After(candles[i-1].Date) {
			return nil, fmt.Errorf("price series for %s not strictly increasing at index %d (%s then %s)",
				symbol, i, candles[i-1].Date.Format("2006-01-02"), candles[i].Date.Format("2006-01-02"))
		}
	}
	return &PriceSeries{Symbol: symbol, Candles: candles}, nil
}

// Len returns the number of candles
func (s *PriceSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Candles)
}

// IsEmpty reports whether the series has no candles
func (s *PriceSeries) IsEmpty() bool {
	return s.Len() == 0
}

// Closes returns the closing prices in date order
func (s *PriceSeries) Closes() []float64 {
	closes := make([]float64, len(s.Candles))
	for i, c := range s.Candles {
		closes[i] = c.Close
	}
	return closes
}

// Volumes returns the volumes in date order
func (s *PriceSeries) Volumes() []float64 {
	vols := make([]float64, len(s.Candles))
	for i, c := range s.Candles {
		vols[i] = c.Volume
	}
	return vols
}

// Dates returns the candle dates in order
func (s *PriceSeries) Dates() []time.Time {
	dates := make([]time.Time, len(s.Candles))
	for i, c := range s.Candles {
		dates[i] = c.Date
	}
	return dates
}

// Returns computes simple daily returns. The result has Len()-1 entries;
// a day whose previous close is non-positive yields NaN for that entry.
func (s *PriceSeries) Returns() []float64 {
	if s.Len() < 2 {
		return nil
	}
	rets := make([]float64, s.Len()-1)
	for i := 1; i < s.Len(); i++ {
		prev := s.Candles[i-1].Close
		if prev <= 0 {
			rets[i-1] = math.NaN()
			continue
		}
		rets[i-1] = (s.Candles[i].Close - prev) / prev
	}
	return rets
}

// ReturnsByDate computes simple daily returns keyed by the later date.
// Used for inner joins against factor returns.
func (s *PriceSeries) ReturnsByDate() map[time.Time]float64 {
	out := make(map[time.Time]float64, s.Len())
	for i := 1; i < s.Len(); i++ {
		prev := s.Candles[i-1].Close
		if prev <= 0 {
			continue
		}
		day := s.Candles[i].Date.Truncate(24 * time.Hour)
		out[day] = (s.Candles[i].Close - prev) / prev
	}
	return out
}

// Tail returns a series holding at most the last n candles
func (s *PriceSeries) Tail(n int) *PriceSeries {
	if s.Len() <= n {
		return s
	}
	return &PriceSeries{Symbol: s.Symbol, Candles: s.Candles[s.Len()-n:]}
}

// Span returns first date, last date and the number of calendar days covered
func (s *PriceSeries) Span() (time.Time, time.Time, int) {
	if s.IsEmpty() {
		return time.Time{}, time.Time{}, 0
	}
	first := s.Candles[0].Date
	last := s.Candles[len(s.Candles)-1].Date
	return first, last, int(last.Sub(first).Hours()/24) + 1
}
