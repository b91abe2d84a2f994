package config

import (
	"fmt"
	"math"
)

// Default scoring weights. Together they must sum to 1.0; the sum is
// enforced at construction time, not at use time.
const (
	DefaultWeightPrediction     = 0.30 // Prediction confidence drives the rank
	DefaultWeightTechnical      = 0.20 // Technical strength from the baseline model
	DefaultWeightIndexAlignment = 0.15 // Agreement with the reference index direction
	DefaultWeightLiquidity      = 0.15 // Tradeability of the name
	DefaultWeightVolatility     = 0.10 // Calmer names score higher
	DefaultWeightSectorMomentum = 0.10 // Sector tailwind

	weightSumTolerance = 1e-9
)

// ScoringWeights is the immutable, validated scoring configuration.
// Construct via NewScoringWeights; the zero value is invalid.
type ScoringWeights struct {
	prediction     float64
	technical      float64
	indexAlignment float64
	liquidity      float64
	volatility     float64
	sectorMomentum float64
}

// NewScoringWeights validates that the six weights are non-negative and sum to 1
func NewScoringWeights(prediction, technical, indexAlignment, liquidity, volatility, sectorMomentum float64) (ScoringWeights, error) {
	w := ScoringWeights{
		prediction:     prediction,
		technical:      technical,
		indexAlignment: indexAlignment,
		liquidity:      liquidity,
		volatility:     volatility,
		sectorMomentum: sectorMomentum,
	}
	for name, v := range w.Map() {
		if v < 0 {
			return ScoringWeights{}, fmt.Errorf("weight %q is negative: %f", name, v)
		}
	}
	sum := prediction + technical + indexAlignment + liquidity + volatility + sectorMomentum
	if math.Abs(sum-1.0) > weightSumTolerance {
		return ScoringWeights{}, fmt.Errorf("weights must sum to 1.0, got %f", sum)
	}
	return w, nil
}

// DefaultScoringWeights returns the built-in weight set
func DefaultScoringWeights() ScoringWeights {
	w, err := NewScoringWeights(
		DefaultWeightPrediction,
		DefaultWeightTechnical,
		DefaultWeightIndexAlignment,
		DefaultWeightLiquidity,
		DefaultWeightVolatility,
		DefaultWeightSectorMomentum,
	)
	if err != nil {
		// Defaults are compile-time constants; a failure here is a programming error
		panic(err)
	}
	return w
}

// Prediction returns the prediction-confidence weight
func (w ScoringWeights) Prediction() float64 { return w.prediction }

// Technical returns the technical-strength weight
func (w ScoringWeights) Technical() float64 { return w.technical }

// IndexAlignment returns the index-alignment weight
func (w ScoringWeights) IndexAlignment() float64 { return w.indexAlignment }

// Liquidity returns the liquidity weight
func (w ScoringWeights) Liquidity() float64 { return w.liquidity }

// Volatility returns the volatility weight
func (w ScoringWeights) Volatility() float64 { return w.volatility }

// SectorMomentum returns the sector-momentum weight
func (w ScoringWeights) SectorMomentum() float64 { return w.sectorMomentum }

// SubScoreNames returns the sub-score names in their canonical report order
func SubScoreNames() []string {
	return []string{
		"prediction_confidence",
		"technical_strength",
		"index_alignment",
		"liquidity",
		"volatility",
		"sector_momentum",
	}
}

// Map returns the weights keyed by sub-score name
func (w ScoringWeights) Map() map[string]float64 {
	return map[string]float64{
		"prediction_confidence": w.prediction,
		"technical_strength":    w.technical,
		"index_alignment":       w.indexAlignment,
		"liquidity":             w.liquidity,
		"volatility":            w.volatility,
		"sector_momentum":       w.sectorMomentum,
	}
}

// RegimeConfig holds the market regime engine parameters
type RegimeConfig struct {
	LookbackDays    int     // Rolling window fetched for classification
	States          int     // Number of volatility states fitted
	EWMALambda      float64 // Decay for the EWMA fallback estimator
	VolWindow       int     // Rolling realized-vol window (trading days)
	MinRowsRaw      int     // Required rows before feature engineering
	MinRowsFeatures int     // Required rows after dropping warmup NaNs
	MaxIterations   int     // EM iteration cap for HMM/GMM fits
}

// DefaultRegimeConfig returns the regime engine defaults
func DefaultRegimeConfig() RegimeConfig {
	return RegimeConfig{
		LookbackDays:    180,
		States:          3,
		EWMALambda:      0.94,
		VolWindow:       10,
		MinRowsRaw:      50,
		MinRowsFeatures: 40,
		MaxIterations:   200,
	}
}

// Validate checks regime parameters for consistency
func (c RegimeConfig) Validate() error {
	if c.States < 2 {
		return fmt.Errorf("at least 2 states required, got %d", c.States)
	}
	if c.EWMALambda <= 0 || c.EWMALambda >= 1 {
		return fmt.Errorf("EWMA lambda must be in (0,1), got %f", c.EWMALambda)
	}
	if c.MinRowsFeatures > c.MinRowsRaw {
		return fmt.Errorf("post-feature row minimum (%d) cannot exceed raw minimum (%d)",
			c.MinRowsFeatures, c.MinRowsRaw)
	}
	if c.LookbackDays <= 0 || c.VolWindow <= 0 || c.MaxIterations <= 0 {
		return fmt.Errorf("lookback, vol window and iteration cap must be positive")
	}
	return nil
}

// Factor pairs a factor name with the proxy symbol whose returns represent it
type Factor struct {
	Name   string
	Symbol string
}

// BetaConfig holds the macro beta calculator parameters
type BetaConfig struct {
	LookbackDays    int
	MinObservations int
	Factors         []Factor
}

// DefaultBetaConfig returns the beta calculator defaults: a broad index
// factor and a commodity proxy for sector exposure.
func DefaultBetaConfig() BetaConfig {
	return BetaConfig{
		LookbackDays:    90,
		MinObservations: 40,
		Factors: []Factor{
			{Name: "market", Symbol: "SPY"},
			{Name: "oil", Symbol: "USO"},
		},
	}
}

// Validate checks beta parameters for consistency
func (c BetaConfig) Validate() error {
	if c.MinObservations < 2 {
		return fmt.Errorf("min observations must be at least 2, got %d", c.MinObservations)
	}
	if c.LookbackDays <= 0 {
		return fmt.Errorf("lookback days must be positive, got %d", c.LookbackDays)
	}
	if len(c.Factors) == 0 {
		return fmt.Errorf("at least one factor required")
	}
	seen := make(map[string]bool, len(c.Factors))
	for _, f := range c.Factors {
		if f.Name == "" || f.Symbol == "" {
			return fmt.Errorf("factor name and symbol must not be empty")
		}
		if seen[f.Name] {
			return fmt.Errorf("duplicate factor name %q", f.Name)
		}
		seen[f.Name] = true
	}
	return nil
}

// PredictionConfig holds the prediction bridge and batch predictor parameters
type PredictionConfig struct {
	MinHistoryDays int // Minimum candles before the direction model will fit
	Workers        int // Bounded worker pool size for batch prediction
	TimeoutSeconds int // Per-symbol budget covering fetch + predict
}

// DefaultPredictionConfig returns the prediction defaults
func DefaultPredictionConfig() PredictionConfig {
	return PredictionConfig{
		MinHistoryDays: 60,
		Workers:        8,
		TimeoutSeconds: 45,
	}
}

// Validate checks prediction parameters for consistency
func (c PredictionConfig) Validate() error {
	if c.MinHistoryDays < 10 {
		return fmt.Errorf("min history days must be at least 10, got %d", c.MinHistoryDays)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("worker count must be positive, got %d", c.Workers)
	}
	if c.TimeoutSeconds <= 0 {
		return fmt.Errorf("timeout must be positive, got %d", c.TimeoutSeconds)
	}
	return nil
}
