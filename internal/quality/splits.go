package quality

import (
	"fmt"
	"time"

	"github.com/aristath/vigil/internal/domain"
)

// ApplySplitAdjustments rescales all candles before each confirmed split
// date so the series is continuous across the split. Prices before the
// split are multiplied by (prior close / split-day close) inverted into a
// ratio below 1; volume is scaled inversely to preserve turnover.
//
// This is an explicit opt-in operation taking confirmed split dates.
// Detection via Validate never adjusts anything on its own.
func ApplySplitAdjustments(series *domain.PriceSeries, splitDates []time.Time) (*domain.PriceSeries, error) {
	if series.IsEmpty() || len(splitDates) == 0 {
		return series, nil
	}

	adjusted := make([]domain.Candle, len(series.Candles))
	copy(adjusted, series.Candles)

	for _, splitDate := range splitDates {
		idx := indexOfDate(adjusted, splitDate)
		if idx < 0 {
			return nil, fmt.Errorf("split date %s not present in series for %s",
				splitDate.Format("2006-01-02"), series.Symbol)
		}
		if idx == 0 {
			// Nothing before the split to adjust
			continue
		}

		priorClose := adjusted[idx-1].Close
		splitClose := adjusted[idx].Close
		if priorClose <= 0 || splitClose <= 0 {
			return nil, fmt.Errorf("cannot derive split ratio for %s on %s: non-positive close",
				series.Symbol, splitDate.Format("2006-01-02"))
		}

		// e.g. a 2:1 split shows prior close 100, split-day close 50 -> ratio 2
		ratio := priorClose / splitClose
		for i := 0; i < idx; i++ {
			adjusted[i].Open /= ratio
			adjusted[i].High /= ratio
			adjusted[i].Low /= ratio
			adjusted[i].Close /= ratio
			adjusted[i].Volume *= ratio
		}
	}

	return domain.NewPriceSeries(series.Symbol, adjusted)
}

func indexOfDate(candles []domain.Candle, date time.Time) int {
	day := date.Truncate(24 * time.Hour)
	for i, c := range candles {
		if c.Date.Equal(day) {
			return i
		}
	}
	return -1
}
