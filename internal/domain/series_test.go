package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(n int) time.Time {
	return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func TestNewPriceSeriesRejectsUnorderedDates(t *testing.T) {
	_, err := NewPriceSeries("TEST", []Candle{
		{Date: day(1), Close: 100},
		{Date: day(0), Close: 101},
	})
	assert.Error(t, err)
}

func TestNewPriceSeriesRejectsDuplicateDates(t *testing.T) {
	_, err := NewPriceSeries("TEST", []Candle{
		{Date: day(0), Close: 100},
		{Date: day(0), Close: 101},
	})
	assert.Error(t, err)
}

func TestReturns(t *testing.T) {
	s, err := NewPriceSeries("TEST", []Candle{
		{Date: day(0), Close: 100},
		{Date: day(1), Close: 110},
		{Date: day(2), Close: 99},
	})
	require.NoError(t, err)

	rets := s.Returns()
	require.Len(t, rets, 2)
	assert.InDelta(t, 0.10, rets[0], 1e-9)
	assert.InDelta(t, -0.10, rets[1], 1e-9)
}

func TestReturnsByDateSkipsNonPositivePrevClose(t *testing.T) {
	s := &PriceSeries{Symbol: "TEST", Candles: []Candle{
		{Date: day(0), Close: 0},
		{Date: day(1), Close: 110},
		{Date: day(2), Close: 121},
	}}

	byDate := s.ReturnsByDate()
	assert.Len(t, byDate, 1)
	assert.InDelta(t, 0.10, byDate[day(2)], 1e-9)
}

func TestTail(t *testing.T) {
	s, err := NewPriceSeries("TEST", []Candle{
		{Date: day(0), Close: 1},
		{Date: day(1), Close: 2},
		{Date: day(2), Close: 3},
	})
	require.NoError(t, err)

	tail := s.Tail(2)
	assert.Equal(t, 2, tail.Len())
	assert.Equal(t, 2.0, tail.Candles[0].Close)

	// Tail larger than series returns the series itself
	assert.Equal(t, 3, s.Tail(10).Len())
}

func TestSpan(t *testing.T) {
	s, err := NewPriceSeries("TEST", []Candle{
		{Date: day(0), Close: 1},
		{Date: day(9), Close: 2},
	})
	require.NoError(t, err)

	first, last, days := s.Span()
	assert.Equal(t, day(0), first)
	assert.Equal(t, day(9), last)
	assert.Equal(t, 10, days)
}
