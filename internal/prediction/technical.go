package prediction

import (
	"math"

	"github.com/markcheno/go-talib"

	"github.com/aristath/vigil/internal/domain"
)

const (
	rocPeriod     = 10
	rsiPeriod     = 14
	smaFastPeriod = 20
	smaSlowPeriod = 50

	// blend weights for the three technical signals
	weightMomentum      = 0.40
	weightMeanReversion = 0.30
	weightCrossover     = 0.30
)

// TechnicalModel is the always-available prediction baseline. It derives a
// direction from momentum (ROC), mean-reversion (RSI) and a 20/50 SMA
// crossover, all computed locally from the price series. Output is a
// deterministic function of the input.
type TechnicalModel struct{}

// NewTechnicalModel creates the baseline technical model
func NewTechnicalModel() *TechnicalModel {
	return &TechnicalModel{}
}

// Evaluate computes the technical direction and confidence for a series.
// Series shorter than the slowest indicator window still produce a result
// from whatever indicators have enough data.
func (m *TechnicalModel) Evaluate(series *domain.PriceSeries) domain.ModelPrediction {
	closes := series.Closes()

	signals := make([]float64, 0, 3)
	weights := make([]float64, 0, 3)

	if s, ok := momentumSignal(closes); ok {
		signals = append(signals, s)
		weights = append(weights, weightMomentum)
	}
	if s, ok := meanReversionSignal(closes); ok {
		signals = append(signals, s)
		weights = append(weights, weightMeanReversion)
	}
	if s, ok := crossoverSignal(closes); ok {
		signals = append(signals, s)
		weights = append(weights, weightCrossover)
	}

	if len(signals) == 0 {
		return domain.ModelPrediction{Model: "technical", Available: true, Detail: "series too short for indicators"}
	}

	direction := 0.0
	totalWeight := 0.0
	for i, s := range signals {
		direction += weights[i] * s
		totalWeight += weights[i]
	}
	direction /= totalWeight

	return domain.ModelPrediction{
		Model:      "technical",
		Direction:  clampSigned(direction),
		Confidence: signalAgreement(signals),
		Available:  true,
	}
}

// momentumSignal maps the 10-day rate of change onto [-1, 1]. A 5% move
// over the window saturates the signal.
func momentumSignal(closes []float64) (float64, bool) {
	if len(closes) < rocPeriod+1 {
		return 0, false
	}
	roc := talib.Roc(closes, rocPeriod)
	last := roc[len(roc)-1]
	if math.IsNaN(last) {
		return 0, false
	}
	return clampSigned(last / 5.0), true
}

// meanReversionSignal maps RSI onto [-1, 1]: oversold (RSI below 50) reads
// as upward pressure, overbought as downward.
func meanReversionSignal(closes []float64) (float64, bool) {
	if len(closes) < rsiPeriod+1 {
		return 0, false
	}
	rsi := talib.Rsi(closes, rsiPeriod)
	last := rsi[len(rsi)-1]
	if math.IsNaN(last) {
		return 0, false
	}
	return clampSigned((50.0 - last) / 50.0), true
}

// crossoverSignal reads the fast/slow SMA gap relative to the slow average
func crossoverSignal(closes []float64) (float64, bool) {
	if len(closes) < smaSlowPeriod {
		return 0, false
	}
	fast := talib.Sma(closes, smaFastPeriod)
	slow := talib.Sma(closes, smaSlowPeriod)
	f, s := fast[len(fast)-1], slow[len(slow)-1]
	if math.IsNaN(f) || math.IsNaN(s) || s == 0 {
		return 0, false
	}
	// A 2% gap between the averages saturates the signal
	return clampSigned((f - s) / s / 0.02), true
}

// signalAgreement converts cross-signal agreement into a confidence. Full
// agreement on a strong move approaches 0.9; conflicting signals fall
// toward the 0.2 floor. The value always depends on the actual indicator
// readings, never on a fixed constant alone.
func signalAgreement(signals []float64) float64 {
	if len(signals) == 1 {
		return 0.2 + 0.3*math.Abs(signals[0])
	}
	mean := 0.0
	for _, s := range signals {
		mean += s
	}
	mean /= float64(len(signals))

	spread := 0.0
	for _, s := range signals {
		spread += math.Abs(s - mean)
	}
	spread /= float64(len(signals))

	conf := 0.2 + 0.7*math.Abs(mean) - 0.3*spread
	if conf < 0.05 {
		conf = 0.05
	}
	if conf > 0.95 {
		conf = 0.95
	}
	return conf
}

func clampSigned(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
