package scoring

import (
	"sort"

	"github.com/aristath/vigil/internal/domain"
)

// Row is one per-symbol line of the factor view: every sub-score, the
// betas, and the adjustment count, flattened for tabular export.
type Row struct {
	Symbol          string             `json:"symbol"`
	Name            string             `json:"name"`
	Sector          string             `json:"sector"`
	Score           float64            `json:"opportunity_score"`
	SubScores       map[string]float64 `json:"sub_scores"`
	Betas           domain.BetaSet     `json:"betas"`
	Signal          domain.Signal      `json:"signal"`
	ConfidencePct   float64            `json:"confidence_pct"`
	AdjustmentCount int                `json:"adjustment_count"`
}

// BuildRows flattens scored opportunities into factor-view rows
func BuildRows(opportunities []domain.ScoredOpportunity) []Row {
	rows := make([]Row, 0, len(opportunities))
	for _, o := range opportunities {
		sub := make(map[string]float64, len(o.Breakdown))
		for _, c := range o.Breakdown {
			sub[c.Name] = c.Raw
		}
		rows = append(rows, Row{
			Symbol:          o.Symbol,
			Name:            o.Name,
			Sector:          o.Sector,
			Score:           o.Score,
			SubScores:       sub,
			Betas:           o.Betas,
			Signal:          o.Prediction.Signal,
			ConfidencePct:   o.ConfidencePct,
			AdjustmentCount: len(o.Adjustments),
		})
	}
	return rows
}

// SummarizeSectors rolls the rows up per sector: mean score, mean betas,
// member count and signal counts. It is a pure function of the row list.
// A row missing a beta contributes 0 to that factor's mean rather than
// being excluded, so counts stay consistent across views.
func SummarizeSectors(rows []Row) []domain.SectorSummary {
	bySector := make(map[string][]Row)
	for _, r := range rows {
		sector := r.Sector
		if sector == "" {
			sector = "unclassified"
		}
		bySector[sector] = append(bySector[sector], r)
	}

	factors := make(map[string]struct{})
	for _, r := range rows {
		for f := range r.Betas {
			factors[f] = struct{}{}
		}
	}

	out := make([]domain.SectorSummary, 0, len(bySector))
	for sector, members := range bySector {
		summary := domain.SectorSummary{
			Sector:   sector,
			Count:    len(members),
			AvgBetas: make(domain.BetaSet, len(factors)),
		}
		scoreTotal := 0.0
		betaTotals := make(map[string]float64, len(factors))
		for _, r := range members {
			scoreTotal += r.Score
			for f := range factors {
				// Missing betas count as 0 in the mean
				betaTotals[f] += r.Betas[f]
			}
			switch r.Signal {
			case domain.SignalBuy:
				summary.BuyCount++
			case domain.SignalSell:
				summary.SellCount++
			default:
				summary.HoldCount++
			}
		}
		summary.AvgScore = scoreTotal / float64(len(members))
		for f, total := range betaTotals {
			summary.AvgBetas[f] = total / float64(len(members))
		}
		out = append(out, summary)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Sector < out[j].Sector })
	return out
}
