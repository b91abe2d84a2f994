package prediction

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/vigil/internal/domain"
)

const (
	featureLagWindow  = 10 // rows consumed by the longest lagged feature
	holdoutFraction   = 0.2
	ridgeLambda       = 1e-4
	directionVolScale = 2.0 // returns beyond 2 sigma saturate the direction
)

// Forecast is the output of a direction model for one symbol
type Forecast struct {
	Trained        bool
	DataSufficient bool
	Direction      float64 // -1..1
	Confidence     float64 // 0..1
	PredictedPrice float64
}

// DirectionModel forecasts the next-day move from price history. A model
// that cannot fit returns Trained=false rather than an error; absence of a
// usable forecast is a normal outcome, not a failure.
type DirectionModel interface {
	Forecast(series *domain.PriceSeries) Forecast
}

// LinearDirectionModel fits a ridge-regularized least-squares regression of
// the next-day return on lagged return and volatility features, per symbol,
// on the series it is handed. Confidence comes from directional hit rate on
// a held-out tail, so it varies with the data.
type LinearDirectionModel struct {
	minHistoryDays int
}

// NewLinearDirectionModel creates a direction model requiring at least
// minHistoryDays candles before it will fit.
func NewLinearDirectionModel(minHistoryDays int) *LinearDirectionModel {
	return &LinearDirectionModel{minHistoryDays: minHistoryDays}
}

// Forecast fits on the supplied series and predicts the next-day move.
// Insufficient history or a degenerate regression yields Trained=false.
func (m *LinearDirectionModel) Forecast(series *domain.PriceSeries) Forecast {
	if series == nil || series.Len() < m.minHistoryDays {
		return Forecast{}
	}

	returns := cleanReturns(series)
	features, targets := lagFeatures(returns)
	if len(targets) < 2*featureLagWindow {
		return Forecast{DataSufficient: false}
	}

	targetStd := stat.StdDev(targets, nil)
	if targetStd < 1e-10 {
		// Flat series: nothing to regress on
		return Forecast{DataSufficient: true}
	}

	split := len(targets) - int(float64(len(targets))*holdoutFraction)
	if split < featureLagWindow || split >= len(targets) {
		return Forecast{DataSufficient: false}
	}

	beta, err := ridgeFit(features[:split], targets[:split])
	if err != nil {
		return Forecast{DataSufficient: true}
	}

	confidence := holdoutConfidence(beta, features[split:], targets[split:])

	// Predict from the most recent feature row, built from the full series
	latest := latestFeatureRow(returns)
	predictedReturn := dot(beta, latest)

	closes := series.Closes()
	lastClose := closes[len(closes)-1]

	return Forecast{
		Trained:        true,
		DataSufficient: true,
		Direction:      clampSigned(predictedReturn / (directionVolScale * targetStd)),
		Confidence:     confidence,
		PredictedPrice: lastClose * (1 + predictedReturn),
	}
}

// cleanReturns drops NaN entries so gap days cannot poison the regression
func cleanReturns(series *domain.PriceSeries) []float64 {
	raw := series.Returns()
	out := make([]float64, 0, len(raw))
	for _, r := range raw {
		if !math.IsNaN(r) {
			out = append(out, r)
		}
	}
	return out
}

// lagFeatures builds one row per predictable day: [1, r_t, r_{t-1},
// mean(last 5), stddev(last 10)] predicting r_{t+1}.
func lagFeatures(returns []float64) ([][]float64, []float64) {
	var features [][]float64
	var targets []float64
	for t := featureLagWindow - 1; t < len(returns)-1; t++ {
		features = append(features, featureRowAt(returns, t))
		targets = append(targets, returns[t+1])
	}
	return features, targets
}

func latestFeatureRow(returns []float64) []float64 {
	return featureRowAt(returns, len(returns)-1)
}

func featureRowAt(returns []float64, t int) []float64 {
	return []float64{
		1, // intercept
		returns[t],
		returns[t-1],
		stat.Mean(returns[t-4:t+1], nil),
		stat.StdDev(returns[t-9:t+1], nil),
	}
}

// ridgeFit solves (XᵀX + λI)β = Xᵀy. The ridge term keeps the normal
// equations solvable when lagged features are nearly collinear.
func ridgeFit(features [][]float64, targets []float64) ([]float64, error) {
	n := len(features)
	p := len(features[0])

	x := mat.NewDense(n, p, nil)
	for i, row := range features {
		x.SetRow(i, row)
	}
	y := mat.NewVecDense(n, targets)

	var xtx mat.Dense
	xtx.Mul(x.T(), x)
	for j := 0; j < p; j++ {
		xtx.Set(j, j, xtx.At(j, j)+ridgeLambda)
	}

	var xty mat.VecDense
	xty.MulVec(x.T(), y)

	var beta mat.VecDense
	if err := beta.SolveVec(&xtx, &xty); err != nil {
		return nil, err
	}

	out := make([]float64, p)
	for j := 0; j < p; j++ {
		out[j] = beta.AtVec(j)
	}
	return out, nil
}

// holdoutConfidence scores the fitted coefficients on the held-out tail by
// directional hit rate. A model no better than a coin lands near the floor.
func holdoutConfidence(beta []float64, features [][]float64, targets []float64) float64 {
	if len(targets) == 0 {
		return 0.1
	}
	hits := 0
	for i, row := range features {
		predicted := dot(beta, row)
		if (predicted >= 0) == (targets[i] >= 0) {
			hits++
		}
	}
	hitRate := float64(hits) / float64(len(targets))

	// Map hit rate onto confidence: 50% (chance) gives 0.1, perfect gives 0.8
	conf := 0.1 + 1.4*(hitRate-0.5)
	if conf < 0.05 {
		conf = 0.05
	}
	if conf > 0.8 {
		conf = 0.8
	}
	return conf
}

func dot(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
