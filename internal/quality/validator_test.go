package quality

import (
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/vigil/internal/domain"
)

// weekdaySeries builds a series of count weekday candles with the given
// closes, starting Monday 2025-01-06. OHLC are derived from close.
func weekdaySeries(t *testing.T, symbol string, closes []float64, volumes []float64) *domain.PriceSeries {
	t.Helper()
	candles := make([]domain.Candle, 0, len(closes))
	d := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			d = d.AddDate(0, 0, 1)
		}
		vol := 1_000_000.0
		if volumes != nil {
			vol = volumes[i]
		}
		candles = append(candles, domain.Candle{
			Date: d, Open: c * 0.99, High: c * 1.01, Low: c * 0.98, Close: c, Volume: vol,
		})
		d = d.AddDate(0, 0, 1)
	}
	series, err := domain.NewPriceSeries(symbol, candles)
	require.NoError(t, err)
	return series
}

func steadyCloses(n int) []float64 {
	closes := make([]float64, n)
	price := 100.0
	for i := range closes {
		// Small alternating moves so return std is non-zero but tame
		if i%2 == 0 {
			price *= 1.002
		} else {
			price *= 0.999
		}
		closes[i] = price
	}
	return closes
}

func TestValidateEmptySeries(t *testing.T) {
	v := NewValidator(zerolog.Nop())
	report := v.Validate(&domain.PriceSeries{Symbol: "EMPTY"}, "EMPTY")

	assert.False(t, report.IsValid)
	require.Len(t, report.Issues, 1)
	assert.Contains(t, report.Issues[0], "empty")
}

func TestValidateNonPositivePrices(t *testing.T) {
	v := NewValidator(zerolog.Nop())
	series := weekdaySeries(t, "BAD", steadyCloses(10), nil)
	series.Candles[3].Low = -1

	report := v.Validate(series, "BAD")
	assert.False(t, report.IsValid)
	assert.Contains(t, report.Issues[0], "non-positive OHLC")
}

func TestStatisticsInvariants(t *testing.T) {
	v := NewValidator(zerolog.Nop())
	series := weekdaySeries(t, "OK", steadyCloses(30), nil)

	report := v.Validate(series, "OK")
	require.True(t, report.IsValid)

	stats := report.Statistics
	assert.Equal(t, series.Len(), stats.RecordCount)
	assert.LessOrEqual(t, stats.PriceMin, stats.PriceMean)
	assert.LessOrEqual(t, stats.PriceMean, stats.PriceMax)
	assert.InDelta(t, 30_000_000.0, stats.VolumeTotal, 1)
	assert.LessOrEqual(t, stats.ReturnMin, stats.ReturnMean)
	assert.LessOrEqual(t, stats.ReturnMean, stats.ReturnMax)
}

func TestMissingBusinessDaysWarning(t *testing.T) {
	v := NewValidator(zerolog.Nop())
	series := weekdaySeries(t, "GAPPY", steadyCloses(10), nil)
	// Remove two mid-series candles to open a gap
	series.Candles = append(series.Candles[:4], series.Candles[6:]...)

	report := v.Validate(series, "GAPPY")
	require.True(t, report.IsValid)
	found := false
	for _, w := range report.Warnings {
		if strings.Contains(w, "business day") {
			found = true
		}
	}
	assert.True(t, found, "expected a missing business days warning, got %v", report.Warnings)
}

func TestReturnOutlierWarningCapsDates(t *testing.T) {
	v := NewValidator(zerolog.Nop())
	closes := steadyCloses(120)
	// Seven one-sided level jumps. Shifting every later close keeps each
	// jump a single outlier return; a spike-and-revert pair would inflate
	// the return stddev until nothing clears the z threshold.
	for _, i := range []int{10, 25, 40, 55, 70, 85, 100} {
		for j := i; j < len(closes); j++ {
			closes[j] *= 1.30
		}
	}
	series := weekdaySeries(t, "WILD", closes, nil)

	report := v.Validate(series, "WILD")
	var outlierWarning string
	for _, w := range report.Warnings {
		if strings.Contains(w, "z-score") {
			outlierWarning = w
		}
	}
	require.NotEmpty(t, outlierWarning)
	// Seven outliers exist but the warning lists at most five dates
	assert.Equal(t, 5, strings.Count(outlierWarning, "2025-"))
}

func TestSplitCandidateFlagged(t *testing.T) {
	v := NewValidator(zerolog.Nop())
	closes := steadyCloses(40)
	volumes := make([]float64, 40)
	for i := range volumes {
		volumes[i] = 1_000_000
	}
	// Day 30: price halves (-50%) on 3x volume -> classic unadjusted 2:1 split
	closes[30] = closes[29] * 0.5
	for i := 31; i < 40; i++ {
		closes[i] = closes[i-1] * 1.001
	}
	volumes[30] = 3_000_000

	series := weekdaySeries(t, "SPLIT", closes, volumes)
	report := v.Validate(series, "SPLIT")

	require.Len(t, report.SplitCandidates, 1)
	assert.Equal(t, series.Candles[30].Date, report.SplitCandidates[0])
}

func TestSplitDetectionRequiresVolumeSpike(t *testing.T) {
	v := NewValidator(zerolog.Nop())
	closes := steadyCloses(40)
	closes[30] = closes[29] * 0.5 // big drop but normal volume
	for i := 31; i < 40; i++ {
		closes[i] = closes[i-1] * 1.001
	}

	series := weekdaySeries(t, "CRASH", closes, nil)
	report := v.Validate(series, "CRASH")
	assert.Empty(t, report.SplitCandidates)
}

