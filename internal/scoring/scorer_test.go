package scoring

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/vigil/internal/config"
	"github.com/aristath/vigil/internal/domain"
	testingpkg "github.com/aristath/vigil/internal/testing"
)

func calmRegime() domain.RegimeResult {
	return domain.RegimeResult{
		Regime:    domain.RegimeCalm,
		FitMethod: domain.VolMethodHMM,
		VolMethod: domain.VolMethodGARCH,
		Vol1D:     0.006,
		VolAnnual: 0.095,
		RegimeProbs: map[string]float64{
			"calm": 0.8, "normal": 0.15, "high_vol": 0.05,
		},
		CrashRiskScore: 0.1,
	}
}

func scoringInput(symbol, sector string, confidence float64) Input {
	opts := testingpkg.DefaultSeriesOpts()
	opts.Days = 90
	return Input{
		Security: domain.Security{Symbol: symbol, Name: symbol + " Corp", Sector: sector, Active: true},
		Series:   testingpkg.NewSeries(symbol, opts),
		Prediction: domain.PredictionRecord{
			Symbol:     symbol,
			Direction:  0.4,
			Confidence: confidence,
			Signal:     domain.SignalBuy,
			Models: []domain.ModelPrediction{
				{Model: "technical", Direction: 0.4, Confidence: confidence, Available: true},
			},
			GeneratedAt: time.Now().UTC(),
		},
		Betas: domain.BetaSet{"market": 1.05, "oil": -0.2},
	}
}

func newTestScorer(t *testing.T) *Scorer {
	t.Helper()
	return NewScorer(config.DefaultScoringWeights(), zerolog.Nop())
}

func TestScoreClipInvariant(t *testing.T) {
	inputs := []Input{
		scoringInput("AAA", "Tech", 0.8),
		scoringInput("BBB", "Tech", 0.3),
		scoringInput("CCC", "Energy", 0.5),
	}
	scored := newTestScorer(t).ScoreAll(inputs, calmRegime())
	require.Len(t, scored, 3)

	for _, o := range scored {
		expected := o.BaseTotal + o.TotalAdjustment
		if expected < 0 {
			expected = 0
		}
		if expected > 100 {
			expected = 100
		}
		assert.InDelta(t, expected, o.Score, 1e-9, "symbol %s", o.Symbol)

		weighted := 0.0
		for _, c := range o.Breakdown {
			assert.InDelta(t, c.Raw*c.Weight, c.Weighted, 1e-9)
			weighted += c.Weighted
		}
		assert.InDelta(t, o.BaseTotal, weighted, 1e-9, "breakdown must sum to base_total")

		signed := 0.0
		for _, a := range o.Adjustments {
			signed += a.Value
		}
		assert.InDelta(t, o.TotalAdjustment, signed, 1e-9)
	}
}

func TestScoreSortedDescending(t *testing.T) {
	inputs := []Input{
		scoringInput("LOW", "Tech", 0.1),
		scoringInput("HIGH", "Tech", 0.9),
	}
	scored := newTestScorer(t).ScoreAll(inputs, calmRegime())
	require.Len(t, scored, 2)
	assert.Equal(t, "HIGH", scored[0].Symbol)
	assert.GreaterOrEqual(t, scored[0].Score, scored[1].Score)
}

func TestScoreMissingBetasContributeZero(t *testing.T) {
	in := scoringInput("NOB", "Tech", 0.5)
	in.Betas = nil

	scored := newTestScorer(t).ScoreAll([]Input{in}, calmRegime())
	require.Len(t, scored, 1)

	for _, c := range scored[0].Breakdown {
		if c.Name == "index_alignment" {
			assert.Zero(t, c.Raw)
		}
	}
	for _, a := range scored[0].Adjustments {
		assert.NotEqual(t, "strong_index_alignment_bonus", a.Name)
	}
}

func TestScoreStrongAlignmentBonus(t *testing.T) {
	in := scoringInput("ALN", "Tech", 0.5)
	in.Betas = domain.BetaSet{"market": 1.02}

	scored := newTestScorer(t).ScoreAll([]Input{in}, calmRegime())
	require.Len(t, scored, 1)

	names := adjustmentNames(scored[0])
	assert.Contains(t, names, "strong_index_alignment_bonus")
	assert.Contains(t, names, "regime_aligned_bonus") // BUY in a calm regime
}

func TestScoreHighCrashRiskPenalty(t *testing.T) {
	regime := calmRegime()
	regime.Regime = domain.RegimeHighVol
	regime.CrashRiskScore = 0.85

	in := scoringInput("RSK", "Tech", 0.5)
	scored := newTestScorer(t).ScoreAll([]Input{in}, regime)
	require.Len(t, scored, 1)

	assert.Contains(t, adjustmentNames(scored[0]), "high_crash_risk_penalty")
	assert.Negative(t, scored[0].TotalAdjustment)
}

func TestScoreUnusableRegimeSkipsRegimeAdjustments(t *testing.T) {
	unknown := domain.RegimeResult{
		Regime: domain.RegimeUnknown, VolMethod: domain.VolMethodNone,
		Warning: "insufficient data",
	}
	in := scoringInput("UNK", "Tech", 0.5)
	scored := newTestScorer(t).ScoreAll([]Input{in}, unknown)
	require.Len(t, scored, 1)

	names := adjustmentNames(scored[0])
	assert.NotContains(t, names, "high_crash_risk_penalty")
	assert.NotContains(t, names, "regime_aligned_bonus")
}

func TestScoreMissingSeries(t *testing.T) {
	in := scoringInput("THIN", "Tech", 0.5)
	in.Series = nil

	scored := newTestScorer(t).ScoreAll([]Input{in}, calmRegime())
	require.Len(t, scored, 1)

	// Liquidity and volatility degrade to zero, row is still present
	for _, c := range scored[0].Breakdown {
		if c.Name == "liquidity" || c.Name == "volatility" {
			assert.Zero(t, c.Raw, c.Name)
		}
	}
	assert.GreaterOrEqual(t, scored[0].Score, 0.0)
}

func adjustmentNames(o domain.ScoredOpportunity) []string {
	names := make([]string, 0, len(o.Adjustments))
	for _, a := range o.Adjustments {
		names = append(names, a.Name)
	}
	return names
}
