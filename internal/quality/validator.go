// Package quality sanity-checks price series before they reach the
// statistical components. Validation never mutates a series; split
// adjustment is a separate, explicit opt-in operation.
package quality

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/vigil/internal/domain"
)

const (
	// Validation thresholds
	outlierZScoreThreshold = 3.0   // |return z-score| above this is flagged
	maxOutlierDatesListed  = 5     // Cap on offending dates reported per warning
	splitReturnThreshold   = -0.40 // Single-day drop suggesting an unadjusted split
	splitVolumeMultiplier  = 2.0   // Volume vs 20-day average confirming the split
	splitVolumeWindow      = 20    // Rolling window for the volume average
)

// Statistics holds descriptive statistics for a validated series
type Statistics struct {
	RecordCount int       `json:"record_count"`
	FirstDate   time.Time `json:"first_date"`
	LastDate    time.Time `json:"last_date"`
	SpanDays    int       `json:"span_days"`

	PriceMin  float64 `json:"price_min"`
	PriceMax  float64 `json:"price_max"`
	PriceMean float64 `json:"price_mean"`
	PriceStd  float64 `json:"price_std"`

	VolumeMean  float64 `json:"volume_mean"`
	VolumeStd   float64 `json:"volume_std"`
	VolumeTotal float64 `json:"volume_total"`

	ReturnMean float64 `json:"return_mean"`
	ReturnStd  float64 `json:"return_std"`
	ReturnMin  float64 `json:"return_min"`
	ReturnMax  float64 `json:"return_max"`
}

// Report is the outcome of validating one price series.
// Issues make the series unusable; warnings are advisory.
type Report struct {
	Symbol     string     `json:"symbol"`
	IsValid    bool       `json:"is_valid"`
	Issues     []string   `json:"issues"`
	Warnings   []string   `json:"warnings"`
	Statistics Statistics `json:"statistics"`

	// SplitCandidates lists dates that look like unadjusted splits.
	// Detection alone never adjusts anything.
	SplitCandidates []time.Time `json:"split_candidates,omitempty"`
}

// Validator validates price series quality
type Validator struct {
	log zerolog.Logger
}

// NewValidator creates a new validator
func NewValidator(log zerolog.Logger) *Validator {
	return &Validator{
		log: log.With().Str("component", "quality_validator").Logger(),
	}
}

// Validate checks one series and computes its descriptive statistics
func (v *Validator) Validate(series *domain.PriceSeries, symbol string) Report {
	report := Report{Symbol: symbol, IsValid: true}

	if series.IsEmpty() {
		report.IsValid = false
		report.Issues = append(report.Issues, "series is empty")
		return report
	}

	v.checkPricePositivity(series, &report)
	v.checkMissingBusinessDays(series, &report)
	v.checkReturnOutliers(series, &report)
	v.checkSplitCandidates(series, &report)
	report.Statistics = computeStatistics(series)

	if !report.IsValid {
		v.log.Warn().
			Str("symbol", symbol).
			Strs("issues", report.Issues).
			Msg("Series failed validation")
	}
	return report
}

func (v *Validator) checkPricePositivity(series *domain.PriceSeries, report *Report) {
	bad := 0
	var firstBad time.Time
	for _, c := range series.Candles {
		if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
			if bad == 0 {
				firstBad = c.Date
			}
			bad++
		}
	}
	if bad > 0 {
		report.IsValid = false
		report.Issues = append(report.Issues, fmt.Sprintf(
			"%d day(s) with non-positive OHLC, first on %s", bad, firstBad.Format("2006-01-02")))
	}
}

// checkMissingBusinessDays compares the candle count against the number of
// weekdays in the series span. Exchange holidays make a small gap normal,
// so only a deficit is reported, and only as a warning.
func (v *Validator) checkMissingBusinessDays(series *domain.PriceSeries, report *Report) {
	first, last, _ := series.Span()
	businessDays := 0
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			businessDays++
		}
	}
	missing := businessDays - series.Len()
	if missing > 0 {
		report.Warnings = append(report.Warnings, fmt.Sprintf(
			"%d business day(s) missing across span %s to %s",
			missing, first.Format("2006-01-02"), last.Format("2006-01-02")))
	}
}

func (v *Validator) checkReturnOutliers(series *domain.PriceSeries, report *Report) {
	rets := series.Returns()
	clean := dropNaN(rets)
	if len(clean) < 3 {
		return
	}
	mean, std := stat.MeanStdDev(clean, nil)
	if std == 0 {
		return
	}

	var outlierDates []string
	for i, r := range rets {
		if isNaN(r) {
			continue
		}
		z := (r - mean) / std
		if z > outlierZScoreThreshold || z < -outlierZScoreThreshold {
			if len(outlierDates) < maxOutlierDatesListed {
				// return i corresponds to candle i+1
				outlierDates = append(outlierDates, series.Candles[i+1].Date.Format("2006-01-02"))
			}
		}
	}
	if len(outlierDates) > 0 {
		report.Warnings = append(report.Warnings, fmt.Sprintf(
			"return z-score above %.1f on: %v", outlierZScoreThreshold, outlierDates))
	}
}

// checkSplitCandidates flags days whose drop and volume spike pattern
// matches an unadjusted stock split.
func (v *Validator) checkSplitCandidates(series *domain.PriceSeries, report *Report) {
	rets := series.Returns()
	volumes := series.Volumes()

	for i, r := range rets {
		if isNaN(r) || r >= splitReturnThreshold {
			continue
		}
		dayIdx := i + 1
		avg := rollingVolumeAverage(volumes, dayIdx, splitVolumeWindow)
		if avg > 0 && volumes[dayIdx] > splitVolumeMultiplier*avg {
			date := series.Candles[dayIdx].Date
			report.SplitCandidates = append(report.SplitCandidates, date)
			report.Warnings = append(report.Warnings, fmt.Sprintf(
				"possible unadjusted split on %s (return %.1f%%, volume %.1fx its %d-day average)",
				date.Format("2006-01-02"), r*100, volumes[dayIdx]/avg, splitVolumeWindow))
		}
	}
}

// rollingVolumeAverage averages up to window volumes strictly before idx
func rollingVolumeAverage(volumes []float64, idx, window int) float64 {
	start := idx - window
	if start < 0 {
		start = 0
	}
	if start >= idx {
		return 0
	}
	sum := 0.0
	for _, v := range volumes[start:idx] {
		sum += v
	}
	return sum / float64(idx-start)
}

func computeStatistics(series *domain.PriceSeries) Statistics {
	first, last, span := series.Span()
	closes := series.Closes()
	volumes := series.Volumes()

	stats := Statistics{
		RecordCount: series.Len(),
		FirstDate:   first,
		LastDate:    last,
		SpanDays:    span,
	}

	stats.PriceMin, stats.PriceMax = minMax(closes)
	stats.PriceMean, stats.PriceStd = stat.MeanStdDev(closes, nil)
	if series.Len() < 2 {
		stats.PriceStd = 0
	}

	stats.VolumeMean, stats.VolumeStd = stat.MeanStdDev(volumes, nil)
	if series.Len() < 2 {
		stats.VolumeStd = 0
	}
	for _, v := range volumes {
		stats.VolumeTotal += v
	}

	rets := dropNaN(series.Returns())
	if len(rets) > 0 {
		stats.ReturnMin, stats.ReturnMax = minMax(rets)
		stats.ReturnMean = stat.Mean(rets, nil)
		if len(rets) > 1 {
			stats.ReturnStd = stat.StdDev(rets, nil)
		}
	}
	return stats
}

func minMax(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

func dropNaN(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !isNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

func isNaN(v float64) bool { return v != v }
