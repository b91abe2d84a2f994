// Package domain provides core domain models and types.
package domain

import "time"

// RegimeLabel represents the prevailing market volatility regime
type RegimeLabel string

const (
	RegimeCalm    RegimeLabel = "calm"
	RegimeNormal  RegimeLabel = "normal"
	RegimeHighVol RegimeLabel = "high_vol"
	RegimeUnknown RegimeLabel = "unknown"
)

// VolMethod identifies which volatility estimator actually produced a number
type VolMethod string

const (
	VolMethodHMM   VolMethod = "hmm"
	VolMethodGMM   VolMethod = "gmm"
	VolMethodGARCH VolMethod = "garch"
	VolMethodEWMA  VolMethod = "ewma"
	VolMethodNone  VolMethod = "none"
)

// Signal is the trading signal label attached to a prediction
type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
	SignalHold Signal = "HOLD"
)

// RegimeResult is the output of a single regime classification run.
// It is computed once per pipeline run and immutable after return.
// All failure paths populate Error or Warning instead of raising.
type RegimeResult struct {
	Regime             RegimeLabel        `json:"regime"`
	FitMethod          VolMethod          `json:"fit_method"`  // hmm or gmm (none on failure)
	VolMethod          VolMethod          `json:"vol_method"`  // garch or ewma (none on failure)
	Vol1D              float64            `json:"vol_1d"`      // daily volatility estimate
	VolAnnual          float64            `json:"vol_annual"`  // annualized (sqrt(252))
	RegimeProbs        map[string]float64 `json:"regime_probabilities"`
	CrashRiskScore     float64            `json:"crash_risk_score"` // 0..1
	DataWindowStart    time.Time          `json:"data_window_start"`
	DataWindowEnd      time.Time          `json:"data_window_end"`
	ObservationsUsed   int                `json:"observations_used"`
	Error              string             `json:"error,omitempty"`
	Warning            string             `json:"warning,omitempty"`
}

// IsUsable reports whether the result carries an actual classification
func (r RegimeResult) IsUsable() bool {
	return r.Regime != RegimeUnknown && r.Error == "" &&
		r.VolMethod != VolMethodNone
}

// BetaSet holds the factor sensitivities computed for one symbol.
// A factor absent from the map is undefined for that symbol (too few
// overlapping observations or degenerate factor variance).
type BetaSet map[string]float64

// Beta returns the sensitivity for a factor and whether it is defined
func (b BetaSet) Beta(factor string) (float64, bool) {
	v, ok := b[factor]
	return v, ok
}

// ModelPrediction is one sub-model's contribution to a symbol's prediction
type ModelPrediction struct {
	Model      string  `json:"model"`      // "direction", "sentiment", "technical"
	Direction  float64 `json:"direction"`  // -1..1
	Confidence float64 `json:"confidence"` // 0..1
	Available  bool    `json:"available"`
	Detail     string  `json:"detail,omitempty"`
}

// PredictionRecord is the merged per-symbol prediction
type PredictionRecord struct {
	Symbol         string            `json:"symbol"`
	Models         []ModelPrediction `json:"models"`
	Direction      float64           `json:"direction"`  // -1..1, confidence-weighted blend
	Confidence     float64           `json:"confidence"` // 0..1
	Signal         Signal            `json:"signal"`
	PredictedPrice float64           `json:"predicted_price,omitempty"`
	ArticleCount   int               `json:"article_count"`
	GeneratedAt    time.Time         `json:"generated_at"`
}

// ScoreComponent is one named weighted sub-score in a breakdown
type ScoreComponent struct {
	Name     string  `json:"name"`
	Raw      float64 `json:"raw"`      // 0..100 before weighting
	Weight   float64 `json:"weight"`   // 0..1
	Weighted float64 `json:"weighted"` // raw * weight
}

// Adjustment is a named signed bonus or penalty applied after the weighted sum
type Adjustment struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"` // signed
}

// ScoredOpportunity is one ranked row of the final output.
// Invariant: Score == clip(BaseTotal + TotalAdjustment, 0, 100).
type ScoredOpportunity struct {
	Symbol          string           `json:"symbol"`
	Name            string           `json:"name"`
	Sector          string           `json:"sector"`
	Score           float64          `json:"opportunity_score"` // 0..100
	BaseTotal       float64          `json:"base_total"`
	TotalAdjustment float64          `json:"total_adjustment"`
	Breakdown       []ScoreComponent `json:"score_breakdown"`
	Adjustments     []Adjustment     `json:"adjustments"`
	Betas           BetaSet          `json:"macro_betas"`
	Prediction      PredictionRecord `json:"prediction"`
	ConfidencePct   float64          `json:"confidence_pct"` // 0..100
}

// SectorSummary is a pure rollup over scored rows for one sector
type SectorSummary struct {
	Sector     string  `json:"sector"`
	Count      int     `json:"count"`
	AvgScore   float64 `json:"avg_opportunity_score"`
	AvgBetas   BetaSet `json:"avg_betas"`
	BuyCount   int     `json:"buy_count"`
	SellCount  int     `json:"sell_count"`
	HoldCount  int     `json:"hold_count"`
}

// Security identifies one tradeable instrument in the scan universe
type Security struct {
	Symbol    string    `json:"symbol"`
	Name      string    `json:"name"`
	Sector    string    `json:"sector"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewsArticle is one piece of news text supplied to the sentiment model
type NewsArticle struct {
	Symbol      string    `json:"symbol"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
}
