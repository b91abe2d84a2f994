package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegimeResultIsUsable(t *testing.T) {
	tests := []struct {
		name   string
		result RegimeResult
		usable bool
	}{
		{
			name:   "classified with volatility estimate",
			result: RegimeResult{Regime: RegimeNormal, FitMethod: VolMethodHMM, VolMethod: VolMethodGARCH},
			usable: true,
		},
		{
			name:   "fallback estimators still usable",
			result: RegimeResult{Regime: RegimeHighVol, FitMethod: VolMethodGMM, VolMethod: VolMethodEWMA},
			usable: true,
		},
		{
			name:   "unknown regime",
			result: RegimeResult{Regime: RegimeUnknown, VolMethod: VolMethodEWMA},
			usable: false,
		},
		{
			name:   "error populated",
			result: RegimeResult{Regime: RegimeCalm, VolMethod: VolMethodGARCH, Error: "fetch failed"},
			usable: false,
		},
		{
			name:   "no volatility method",
			result: RegimeResult{Regime: RegimeCalm, VolMethod: VolMethodNone},
			usable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.usable, tt.result.IsUsable())
		})
	}
}

func TestBetaSetLookup(t *testing.T) {
	betas := BetaSet{"market": 1.2, "oil": -0.3}

	v, ok := betas.Beta("market")
	assert.True(t, ok)
	assert.InDelta(t, 1.2, v, 1e-12)

	v, ok = betas.Beta("fx")
	assert.False(t, ok, "absent factor is undefined, not zero")
	assert.Zero(t, v)

	var empty BetaSet
	_, ok = empty.Beta("market")
	assert.False(t, ok, "nil set must behave like an empty one")
}

func TestRegimeResultSerialization(t *testing.T) {
	result := RegimeResult{
		Regime:      RegimeHighVol,
		FitMethod:   VolMethodHMM,
		VolMethod:   VolMethodGARCH,
		Vol1D:       0.021,
		VolAnnual:   0.33,
		RegimeProbs: map[string]float64{"calm": 0.1, "normal": 0.2, "high_vol": 0.7},
		Warning:     "short window",
	}

	raw, err := json.Marshal(result)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"regime":"high_vol"`)
	assert.Contains(t, string(raw), `"regime_probabilities"`)
	assert.NotContains(t, string(raw), `"error"`, "empty error must be omitted")
}

func TestScoredOpportunityClipInvariant(t *testing.T) {
	row := ScoredOpportunity{
		Symbol:          "AAPL",
		Score:           72.5,
		BaseTotal:       67.5,
		TotalAdjustment: 5,
		Adjustments: []Adjustment{
			{Name: "regime_aligned_bonus", Value: 5},
		},
	}

	assert.InDelta(t, row.BaseTotal+row.TotalAdjustment, row.Score, 1e-12)

	sum := 0.0
	for _, a := range row.Adjustments {
		sum += a.Value
	}
	assert.InDelta(t, row.TotalAdjustment, sum, 1e-12, "adjustments are signed contributions")
}

func TestSignalLabels(t *testing.T) {
	assert.Equal(t, Signal("BUY"), SignalBuy)
	assert.Equal(t, Signal("SELL"), SignalSell)
	assert.Equal(t, Signal("HOLD"), SignalHold)
}
