package regime

import (
	"fmt"
	"math"
	"time"

	"github.com/markcheno/go-talib"

	"github.com/aristath/vigil/internal/domain"
)

// featureRow is one aligned observation used by the classifiers
type featureRow struct {
	date        time.Time
	indexReturn float64 // log return of the reference index
	realizedVol float64 // rolling stdev of index log returns
	proxyLevel  float64 // volatility-proxy close level
	fxReturn    float64 // log return of the FX series
}

// featureSet is the engineered, NaN-free observation matrix
type featureSet struct {
	rows []featureRow
}

func (f *featureSet) realizedVols() []float64 {
	out := make([]float64, len(f.rows))
	for i, r := range f.rows {
		out[i] = r.realizedVol
	}
	return out
}

func (f *featureSet) indexReturns() []float64 {
	out := make([]float64, len(f.rows))
	for i, r := range f.rows {
		out[i] = r.indexReturn
	}
	return out
}

func (f *featureSet) window() (time.Time, time.Time) {
	if len(f.rows) == 0 {
		return time.Time{}, time.Time{}
	}
	return f.rows[0].date, f.rows[len(f.rows)-1].date
}

// engineerFeatures aligns the three series on the index dates, computes log
// returns and rolling realized volatility, and drops rows made NaN by the
// rolling-window warmup or by alignment gaps.
func engineerFeatures(index, proxy, fx *domain.PriceSeries, volWindow int) (*featureSet, error) {
	closes := index.Closes()
	if len(closes) < volWindow+2 {
		return nil, fmt.Errorf("index series too short for a %d-day volatility window", volWindow)
	}

	logReturns := make([]float64, len(closes))
	logReturns[0] = math.NaN()
	for i := 1; i < len(closes); i++ {
		if closes[i-1] <= 0 || closes[i] <= 0 {
			logReturns[i] = math.NaN()
			continue
		}
		logReturns[i] = math.Log(closes[i] / closes[i-1])
	}

	// The first return is undefined, so the rolling window runs over the
	// tail of the return series; talib.StdDev keeps running sums and a
	// leading NaN would propagate into every window.
	realizedTail := talib.StdDev(logReturns[1:], volWindow, 1.0)
	realized := make([]float64, len(closes))
	realized[0] = math.NaN()
	for i := 1; i < len(closes); i++ {
		realized[i] = realizedTail[i-1]
	}
	// talib leaves the warmup prefix at zero; treat those rows as NaN so
	// they are dropped with the rest of the warmup.
	for i := 1; i < volWindow && i < len(realized); i++ {
		realized[i] = math.NaN()
	}

	proxyByDate := closesByDate(proxy)
	fxReturns := logReturnsByDate(fx)

	rows := make([]featureRow, 0, len(closes))
	for i, candle := range index.Candles {
		day := candle.Date.Truncate(24 * time.Hour)
		row := featureRow{
			date:        day,
			indexReturn: logReturns[i],
			realizedVol: realized[i],
		}
		var ok bool
		if row.proxyLevel, ok = proxyByDate[day]; !ok {
			row.proxyLevel = math.NaN()
		}
		if row.fxReturn, ok = fxReturns[day]; !ok {
			row.fxReturn = math.NaN()
		}
		if hasNaN(row.indexReturn, row.realizedVol, row.proxyLevel, row.fxReturn) {
			continue
		}
		rows = append(rows, row)
	}

	return &featureSet{rows: rows}, nil
}

func closesByDate(series *domain.PriceSeries) map[time.Time]float64 {
	out := make(map[time.Time]float64, series.Len())
	for _, c := range series.Candles {
		out[c.Date.Truncate(24*time.Hour)] = c.Close
	}
	return out
}

func logReturnsByDate(series *domain.PriceSeries) map[time.Time]float64 {
	out := make(map[time.Time]float64, series.Len())
	for i := 1; i < series.Len(); i++ {
		prev := series.Candles[i-1].Close
		cur := series.Candles[i].Close
		if prev <= 0 || cur <= 0 {
			continue
		}
		out[series.Candles[i].Date.Truncate(24*time.Hour)] = math.Log(cur / prev)
	}
	return out
}

func hasNaN(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return false
}
