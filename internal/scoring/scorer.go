// Package scoring turns per-symbol predictions, betas and the market regime
// into ranked 0-100 opportunity scores with an auditable breakdown, plus
// sector rollups and report exports. The scorer holds no mutable state, so
// it is safe to call from a scheduled run or an ad hoc re-score alike.
package scoring

import (
	"math"
	"sort"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/vigil/internal/config"
	"github.com/aristath/vigil/internal/domain"
)

const (
	// sub-score shaping
	liquiditySaturationLog = 8.0  // log10 of daily dollar volume scoring 100
	volatilityCeiling      = 0.60 // annualized vol scoring 0
	sectorMomentumScale    = 0.10 // 20-day sector return saturating the score
	momentumWindow         = 20

	// adjustment triggers and values
	extremeVolThreshold       = 0.60
	extremeVolPenalty         = -10.0
	strongAlignmentBand       = 0.15
	strongAlignmentBonus      = 5.0
	highCrashRiskThreshold    = 0.70
	highCrashRiskPenalty      = -8.0
	regimeAlignedBonus        = 5.0
	annualizationFactor       = 252
)

// Input is everything the scorer needs for one symbol
type Input struct {
	Security   domain.Security
	Series     *domain.PriceSeries
	Prediction domain.PredictionRecord
	Betas      domain.BetaSet
}

// Scorer computes opportunity scores from validated weights
type Scorer struct {
	weights config.ScoringWeights
	log     zerolog.Logger
}

// NewScorer creates a scorer with a validated weight configuration
func NewScorer(weights config.ScoringWeights, log zerolog.Logger) *Scorer {
	return &Scorer{
		weights: weights,
		log:     log.With().Str("component", "scorer").Logger(),
	}
}

// ScoreAll scores every input against the supplied regime and returns the
// rows sorted by descending score. The result is a fresh slice; inputs are
// never mutated. Missing sub-inputs (no betas, thin series) contribute a
// zero sub-score instead of excluding the row.
func (s *Scorer) ScoreAll(inputs []Input, regime domain.RegimeResult) []domain.ScoredOpportunity {
	sectorMomentum := sectorMomentumByName(inputs)
	weights := s.weights.Map()

	out := make([]domain.ScoredOpportunity, 0, len(inputs))
	for _, in := range inputs {
		out = append(out, s.scoreOne(in, regime, sectorMomentum[in.Security.Sector], weights))
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	s.log.Info().Int("scored", len(out)).Str("regime", string(regime.Regime)).Msg("Universe scored")
	return out
}

func (s *Scorer) scoreOne(in Input, regime domain.RegimeResult, sectorReturn float64, weights map[string]float64) domain.ScoredOpportunity {
	annualVol := annualizedVolatility(in.Series)

	raw := map[string]float64{
		"prediction_confidence": clamp100(in.Prediction.Confidence * 100),
		"technical_strength":    technicalStrength(in.Prediction),
		"index_alignment":       indexAlignment(in.Betas),
		"liquidity":             liquidityScore(in.Series),
		"volatility":            volatilityScore(annualVol),
		"sector_momentum":       sectorMomentumScore(in.Security.Sector, sectorReturn),
	}

	breakdown := make([]domain.ScoreComponent, 0, len(raw))
	baseTotal := 0.0
	for _, name := range config.SubScoreNames() {
		c := domain.ScoreComponent{
			Name:     name,
			Raw:      raw[name],
			Weight:   weights[name],
			Weighted: raw[name] * weights[name],
		}
		baseTotal += c.Weighted
		breakdown = append(breakdown, c)
	}

	adjustments := s.adjustments(in, regime, annualVol)
	totalAdjustment := 0.0
	for _, a := range adjustments {
		totalAdjustment += a.Value
	}

	return domain.ScoredOpportunity{
		Symbol:          in.Security.Symbol,
		Name:            in.Security.Name,
		Sector:          in.Security.Sector,
		Score:           clamp100(baseTotal + totalAdjustment),
		BaseTotal:       baseTotal,
		TotalAdjustment: totalAdjustment,
		Breakdown:       breakdown,
		Adjustments:     adjustments,
		Betas:           in.Betas,
		Prediction:      in.Prediction,
		ConfidencePct:   clamp100(in.Prediction.Confidence * 100),
	}
}

// adjustments builds the named signed bonuses and penalties for one row
func (s *Scorer) adjustments(in Input, regime domain.RegimeResult, annualVol float64) []domain.Adjustment {
	var out []domain.Adjustment

	if annualVol > extremeVolThreshold {
		out = append(out, domain.Adjustment{Name: "extreme_volatility_penalty", Value: extremeVolPenalty})
	}
	if beta, ok := in.Betas.Beta("market"); ok && math.Abs(beta-1) <= strongAlignmentBand {
		out = append(out, domain.Adjustment{Name: "strong_index_alignment_bonus", Value: strongAlignmentBonus})
	}
	if regime.IsUsable() && regime.CrashRiskScore > highCrashRiskThreshold {
		out = append(out, domain.Adjustment{Name: "high_crash_risk_penalty", Value: highCrashRiskPenalty})
	}
	if regimeAligned(regime, in.Prediction.Signal) {
		out = append(out, domain.Adjustment{Name: "regime_aligned_bonus", Value: regimeAlignedBonus})
	}
	return out
}

// regimeAligned reports whether the signal agrees with the regime: long
// signals in calm or normal markets, defensive signals in high volatility.
func regimeAligned(regime domain.RegimeResult, signal domain.Signal) bool {
	if !regime.IsUsable() {
		return false
	}
	switch regime.Regime {
	case domain.RegimeCalm, domain.RegimeNormal:
		return signal == domain.SignalBuy
	case domain.RegimeHighVol:
		return signal == domain.SignalSell
	default:
		return false
	}
}

// technicalStrength maps the technical sub-model direction onto 0..100
func technicalStrength(prediction domain.PredictionRecord) float64 {
	for _, m := range prediction.Models {
		if m.Model == "technical" && m.Available {
			return clamp100((m.Direction + 1) / 2 * 100)
		}
	}
	return 0
}

// indexAlignment scores how closely the market beta tracks the index.
// Beta 1.0 scores 100; a full unit away (or missing) scores 0.
func indexAlignment(betas domain.BetaSet) float64 {
	beta, ok := betas.Beta("market")
	if !ok {
		return 0
	}
	distance := math.Abs(beta - 1)
	if distance > 1 {
		distance = 1
	}
	return (1 - distance) * 100
}

// liquidityScore scales the 20-day average dollar volume logarithmically
func liquidityScore(series *domain.PriceSeries) float64 {
	if series == nil || series.IsEmpty() {
		return 0
	}
	candles := series.Candles
	if len(candles) > momentumWindow {
		candles = candles[len(candles)-momentumWindow:]
	}
	total := 0.0
	for _, c := range candles {
		total += c.Close * c.Volume
	}
	avg := total / float64(len(candles))
	if avg <= 1 {
		return 0
	}
	return clamp100(math.Log10(avg) / liquiditySaturationLog * 100)
}

// volatilityScore rewards low realized volatility
func volatilityScore(annualVol float64) float64 {
	if annualVol <= 0 {
		return 0
	}
	ratio := annualVol / volatilityCeiling
	if ratio > 1 {
		ratio = 1
	}
	return (1 - ratio) * 100
}

// sectorMomentumScore centers on 50: flat sectors score 50, a trailing
// sector return of ±10% saturates at 0 or 100. Unknown sector scores 0.
func sectorMomentumScore(sector string, sectorReturn float64) float64 {
	if sector == "" {
		return 0
	}
	scaled := sectorReturn / sectorMomentumScale
	if scaled > 1 {
		scaled = 1
	}
	if scaled < -1 {
		scaled = -1
	}
	return 50 + scaled*50
}

// sectorMomentumByName computes the mean trailing return per sector across
// the whole input set, so a row's sector context comes from its peers.
func sectorMomentumByName(inputs []Input) map[string]float64 {
	totals := make(map[string]float64)
	counts := make(map[string]int)
	for _, in := range inputs {
		if in.Security.Sector == "" {
			continue
		}
		totals[in.Security.Sector] += trailingReturn(in.Series)
		counts[in.Security.Sector]++
	}
	out := make(map[string]float64, len(totals))
	for sector, total := range totals {
		out[sector] = total / float64(counts[sector])
	}
	return out
}

// trailingReturn is the simple return over the last momentumWindow candles
func trailingReturn(series *domain.PriceSeries) float64 {
	if series == nil || series.Len() < 2 {
		return 0
	}
	closes := series.Closes()
	start := len(closes) - momentumWindow - 1
	if start < 0 {
		start = 0
	}
	if closes[start] <= 0 {
		return 0
	}
	return closes[len(closes)-1]/closes[start] - 1
}

// annualizedVolatility is the annualized stddev of the full daily returns
func annualizedVolatility(series *domain.PriceSeries) float64 {
	if series == nil || series.Len() < 3 {
		return 0
	}
	var clean []float64
	for _, r := range series.Returns() {
		if !math.IsNaN(r) {
			clean = append(clean, r)
		}
	}
	if len(clean) < 2 {
		return 0
	}
	return stat.StdDev(clean, nil) * math.Sqrt(annualizationFactor)
}

func clamp100(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
