package scoring

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/vigil/internal/config"
	"github.com/aristath/vigil/internal/domain"
)

func TestSummarizeSectorsMeanScore(t *testing.T) {
	scorer := NewScorer(config.DefaultScoringWeights(), zerolog.Nop())
	inputs := []Input{
		scoringInput("AAA", "Tech", 0.9),
		scoringInput("BBB", "Tech", 0.2),
		scoringInput("CCC", "Energy", 0.5),
	}
	scored := scorer.ScoreAll(inputs, calmRegime())
	rows := BuildRows(scored)
	summaries := SummarizeSectors(rows)

	require.Len(t, summaries, 2)
	bySector := make(map[string]domain.SectorSummary)
	for _, s := range summaries {
		bySector[s.Sector] = s
	}

	tech := bySector["Tech"]
	require.Equal(t, 2, tech.Count)
	var techTotal float64
	for _, o := range scored {
		if o.Sector == "Tech" {
			techTotal += o.Score
		}
	}
	assert.InDelta(t, techTotal/2, tech.AvgScore, 1e-9,
		"sector average must equal the mean of member scores")

	assert.Equal(t, 1, bySector["Energy"].Count)
}

func TestSummarizeSectorsSignalCounts(t *testing.T) {
	rows := []Row{
		{Symbol: "A", Sector: "Tech", Score: 70, Signal: domain.SignalBuy},
		{Symbol: "B", Sector: "Tech", Score: 30, Signal: domain.SignalSell},
		{Symbol: "C", Sector: "Tech", Score: 50, Signal: domain.SignalHold},
	}
	summaries := SummarizeSectors(rows)
	require.Len(t, summaries, 1)

	s := summaries[0]
	assert.Equal(t, 1, s.BuyCount)
	assert.Equal(t, 1, s.SellCount)
	assert.Equal(t, 1, s.HoldCount)
	assert.InDelta(t, 50.0, s.AvgScore, 1e-9)
}

func TestSummarizeSectorsMissingBetaCountsAsZero(t *testing.T) {
	rows := []Row{
		{Symbol: "A", Sector: "Tech", Score: 60, Betas: domain.BetaSet{"market": 1.0}},
		{Symbol: "B", Sector: "Tech", Score: 40}, // no betas at all
	}
	summaries := SummarizeSectors(rows)
	require.Len(t, summaries, 1)

	// Mean over both members, the missing one contributing 0
	beta, ok := summaries[0].AvgBetas.Beta("market")
	require.True(t, ok)
	assert.InDelta(t, 0.5, beta, 1e-9)
	assert.Equal(t, 2, summaries[0].Count)
}

func TestSummarizeSectorsUnclassified(t *testing.T) {
	rows := []Row{{Symbol: "A", Sector: "", Score: 10, Signal: domain.SignalHold}}
	summaries := SummarizeSectors(rows)
	require.Len(t, summaries, 1)
	assert.Equal(t, "unclassified", summaries[0].Sector)
}

func TestSummarizeSectorsDeterministicOrder(t *testing.T) {
	rows := []Row{
		{Symbol: "A", Sector: "Utilities", Score: 10},
		{Symbol: "B", Sector: "Energy", Score: 20},
		{Symbol: "C", Sector: "Tech", Score: 30},
	}
	summaries := SummarizeSectors(rows)
	require.Len(t, summaries, 3)
	assert.Equal(t, "Energy", summaries[0].Sector)
	assert.Equal(t, "Tech", summaries[1].Sector)
	assert.Equal(t, "Utilities", summaries[2].Sector)
}
