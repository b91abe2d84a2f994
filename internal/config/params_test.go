package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScoringWeightsValid(t *testing.T) {
	w, err := NewScoringWeights(0.30, 0.20, 0.15, 0.15, 0.10, 0.10)
	require.NoError(t, err)

	sum := 0.0
	for _, v := range w.Map() {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
}

func TestNewScoringWeightsRejectsBadSum(t *testing.T) {
	_, err := NewScoringWeights(0.50, 0.20, 0.15, 0.15, 0.10, 0.10)
	assert.Error(t, err)
}

func TestNewScoringWeightsRejectsNegative(t *testing.T) {
	_, err := NewScoringWeights(0.40, 0.20, 0.15, 0.15, 0.20, -0.10)
	assert.Error(t, err)
}

func TestDefaultScoringWeightsSumToOne(t *testing.T) {
	w := DefaultScoringWeights()
	sum := 0.0
	for _, v := range w.Map() {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
}

func TestRegimeConfigValidate(t *testing.T) {
	cfg := DefaultRegimeConfig()
	require.NoError(t, cfg.Validate())

	cfg.EWMALambda = 1.5
	assert.Error(t, cfg.Validate())

	cfg = DefaultRegimeConfig()
	cfg.States = 1
	assert.Error(t, cfg.Validate())

	cfg = DefaultRegimeConfig()
	cfg.MinRowsFeatures = cfg.MinRowsRaw + 1
	assert.Error(t, cfg.Validate())
}

func TestBetaConfigValidate(t *testing.T) {
	cfg := DefaultBetaConfig()
	require.NoError(t, cfg.Validate())

	cfg.Factors = append(cfg.Factors, Factor{Name: "market", Symbol: "QQQ"})
	assert.Error(t, cfg.Validate(), "duplicate factor names rejected")

	cfg = DefaultBetaConfig()
	cfg.Factors = nil
	assert.Error(t, cfg.Validate())
}

func TestPredictionConfigValidate(t *testing.T) {
	cfg := DefaultPredictionConfig()
	require.NoError(t, cfg.Validate())

	cfg.Workers = 0
	assert.Error(t, cfg.Validate())
}
