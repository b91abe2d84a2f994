package marketdata

import (
	"sort"
	"time"

	"github.com/aristath/vigil/internal/domain"
)

// chartResponse is the single-symbol chart payload
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *apiError     `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []map[string][]*float64 `json:"quote"`
	} `json:"indicators"`
}

// sparkResponse is the multi-symbol payload: one layered column group per
// symbol, keyed by symbol name.
type sparkResponse struct {
	Spark struct {
		Result []sparkResult `json:"result"`
		Error  *apiError     `json:"error"`
	} `json:"spark"`
}

type sparkResult struct {
	Symbol   string        `json:"symbol"`
	Response []chartResult `json:"response"`
}

type apiError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// closeColumnNames lists the fields accepted as a close column, in order
// of preference.
var closeColumnNames = []string{"close", "adjclose"}

func parseChartResult(symbol string, payload chartResponse) (*domain.PriceSeries, error) {
	if payload.Chart.Error != nil {
		return nil, ErrEmptyResponse{Symbol: symbol}
	}
	if len(payload.Chart.Result) == 0 {
		return nil, ErrEmptyResponse{Symbol: symbol}
	}
	return columnsToSeries(symbol, payload.Chart.Result[0])
}

func parseSparkResult(symbols []string, payload sparkResponse) (map[string]*domain.PriceSeries, error) {
	out := make(map[string]*domain.PriceSeries, len(symbols))
	for _, result := range payload.Spark.Result {
		if len(result.Response) == 0 {
			continue
		}
		series, err := columnsToSeries(result.Symbol, result.Response[0])
		if err != nil {
			// A column group without a close field poisons the whole
			// layered payload: surface it rather than silently dropping
			// the symbol, so the caller can record a proper error.
			return nil, err
		}
		out[result.Symbol] = series
	}
	return out, nil
}

// columnsToSeries converts a layered column group into an ordered series.
// Rows with a missing close value are dropped; other missing fields are
// zero-filled and left to the quality validator.
func columnsToSeries(symbol string, result chartResult) (*domain.PriceSeries, error) {
	if len(result.Indicators.Quote) == 0 {
		return nil, ErrEmptyResponse{Symbol: symbol}
	}
	quote := result.Indicators.Quote[0]

	closes, ok := resolveCloseColumn(quote)
	if !ok {
		return nil, ErrNoCloseColumn{Symbol: symbol}
	}

	opens := quote["open"]
	highs := quote["high"]
	lows := quote["low"]
	volumes := quote["volume"]

	candles := make([]domain.Candle, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		candle := domain.Candle{
			Date:  time.Unix(ts, 0).UTC().Truncate(24 * time.Hour),
			Close: *closes[i],
		}
		if i < len(opens) && opens[i] != nil {
			candle.Open = *opens[i]
		}
		if i < len(highs) && highs[i] != nil {
			candle.High = *highs[i]
		}
		if i < len(lows) && lows[i] != nil {
			candle.Low = *lows[i]
		}
		if i < len(volumes) && volumes[i] != nil {
			candle.Volume = *volumes[i]
		}
		candles = append(candles, candle)
	}

	sort.Slice(candles, func(i, j int) bool { return candles[i].Date.Before(candles[j].Date) })
	candles = dedupeByDate(candles)

	return domain.NewPriceSeries(symbol, candles)
}

func resolveCloseColumn(quote map[string][]*float64) ([]*float64, bool) {
	for _, name := range closeColumnNames {
		if col, ok := quote[name]; ok && len(col) > 0 {
			return col, true
		}
	}
	return nil, false
}

func dedupeByDate(candles []domain.Candle) []domain.Candle {
	if len(candles) < 2 {
		return candles
	}
	out := candles[:1]
	for _, c := range candles[1:] {
		if c.Date.Equal(out[len(out)-1].Date) {
			out[len(out)-1] = c // last observation wins
			continue
		}
		out = append(out, c)
	}
	return out
}
