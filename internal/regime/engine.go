// Package regime classifies the prevailing market volatility regime for a
// reference index using a layered fallback chain: HMM, then GMM for state
// fitting; GARCH, then EWMA for the current volatility estimate. Every
// failure path returns a well-formed result instead of an error.
package regime

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/vigil/internal/config"
	"github.com/aristath/vigil/internal/domain"
	"github.com/aristath/vigil/internal/marketdata"
)

const (
	tradingDaysPerYear = 252

	// crash risk blend: high-vol state probability vs current-vol percentile
	crashWeightStateProb  = 0.6
	crashWeightPercentile = 0.4
)

// Engine classifies the market volatility regime
type Engine struct {
	provider    marketdata.Provider
	cfg         config.RegimeConfig
	indexSymbol string
	proxySymbol string
	fxSymbol    string
	log         zerolog.Logger
}

// NewEngine creates a new regime engine
func NewEngine(provider marketdata.Provider, cfg config.RegimeConfig, indexSymbol, proxySymbol, fxSymbol string, log zerolog.Logger) *Engine {
	return &Engine{
		provider:    provider,
		cfg:         cfg,
		indexSymbol: indexSymbol,
		proxySymbol: proxySymbol,
		fxSymbol:    fxSymbol,
		log:         log.With().Str("component", "regime_engine").Logger(),
	}
}

// Classify runs the full regime classification. It always returns a
// well-formed result: fetch problems populate Error, thin data populates
// Warning, and only a clean run carries a usable classification.
func (e *Engine) Classify(ctx context.Context) domain.RegimeResult {
	end := time.Now().UTC().Truncate(24 * time.Hour)
	start := end.AddDate(0, 0, -e.cfg.LookbackDays)

	symbols := []string{e.indexSymbol, e.proxySymbol, e.fxSymbol}
	series, err := e.provider.FetchMulti(ctx, symbols, start, end)
	if err != nil {
		// Includes the layered-payload-without-close case: the provider
		// surfaces it as an error and we fold it into the result.
		return e.failure(fmt.Sprintf("market data fetch failed: %v", err))
	}
	for _, symbol := range symbols {
		s, ok := series[symbol]
		if !ok || s.IsEmpty() {
			return e.failure(fmt.Sprintf("no data returned for %s", symbol))
		}
	}

	index := series[e.indexSymbol]
	if index.Len() < e.cfg.MinRowsRaw {
		return e.insufficient(fmt.Sprintf(
			"only %d index rows before feature engineering, need %d", index.Len(), e.cfg.MinRowsRaw))
	}

	features, err := engineerFeatures(index, series[e.proxySymbol], series[e.fxSymbol], e.cfg.VolWindow)
	if err != nil {
		return e.insufficient(fmt.Sprintf("feature engineering failed: %v", err))
	}
	if len(features.rows) < e.cfg.MinRowsFeatures {
		return e.insufficient(fmt.Sprintf(
			"only %d feature rows after warmup, need %d", len(features.rows), e.cfg.MinRowsFeatures))
	}

	vols := features.realizedVols()
	fit, fitMethod := e.fitStates(vols)
	if fit == nil {
		return e.insufficient("neither HMM nor GMM converged on the volatility features")
	}

	vol1d, volMethod := e.estimateVolatility(features.indexReturns())
	if volMethod == domain.VolMethodNone {
		return e.insufficient("no volatility estimator converged")
	}

	regime, probs := e.labelStates(fit)
	crashRisk := crashRiskScore(probs[string(domain.RegimeHighVol)], vol1d, vols)

	windowStart, windowEnd := features.window()
	result := domain.RegimeResult{
		Regime:           regime,
		FitMethod:        fitMethod,
		VolMethod:        volMethod,
		Vol1D:            vol1d,
		VolAnnual:        vol1d * math.Sqrt(tradingDaysPerYear),
		RegimeProbs:      probs,
		CrashRiskScore:   crashRisk,
		DataWindowStart:  windowStart,
		DataWindowEnd:    windowEnd,
		ObservationsUsed: len(features.rows),
	}

	e.log.Info().
		Str("regime", string(result.Regime)).
		Str("fit_method", string(result.FitMethod)).
		Str("vol_method", string(result.VolMethod)).
		Float64("vol_annual", result.VolAnnual).
		Float64("crash_risk", result.CrashRiskScore).
		Int("observations", result.ObservationsUsed).
		Msg("Regime classified")
	return result
}

// fitStates runs the HMM first and falls back to the GMM on any failure
func (e *Engine) fitStates(vols []float64) (*fitResult, domain.VolMethod) {
	fit, err := fitHMM(vols, e.cfg.States, e.cfg.MaxIterations)
	if err == nil {
		return fit, domain.VolMethodHMM
	}
	e.log.Warn().Err(err).Msg("HMM fit failed, falling back to GMM")

	fit, err = fitGMM(vols, e.cfg.States, e.cfg.MaxIterations)
	if err == nil {
		return fit, domain.VolMethodGMM
	}
	e.log.Warn().Err(err).Msg("GMM fit failed")
	return nil, domain.VolMethodNone
}

// estimateVolatility runs the GARCH/EWMA cascade and records which method
// actually produced the estimate.
func (e *Engine) estimateVolatility(returns []float64) (float64, domain.VolMethod) {
	if garch, err := fitGARCH(returns); err == nil {
		return math.Sqrt(garch.nextVariance), domain.VolMethodGARCH
	} else {
		e.log.Warn().Err(err).Msg("GARCH fit failed, falling back to EWMA")
	}

	variance, err := ewmaVariance(returns, e.cfg.EWMALambda)
	if err != nil {
		e.log.Warn().Err(err).Msg("EWMA estimate failed")
		return 0, domain.VolMethodNone
	}
	return math.Sqrt(variance), domain.VolMethodEWMA
}

// labelStates maps the ordered states onto regime labels and aggregates
// the final posterior per label. With more than three states the interior
// ones all count as normal.
func (e *Engine) labelStates(fit *fitResult) (domain.RegimeLabel, map[string]float64) {
	probs := map[string]float64{
		string(domain.RegimeCalm):    0,
		string(domain.RegimeNormal):  0,
		string(domain.RegimeHighVol): 0,
	}
	last := len(fit.states) - 1
	labelOf := func(k int) domain.RegimeLabel {
		switch k {
		case 0:
			return domain.RegimeCalm
		case last:
			return domain.RegimeHighVol
		default:
			return domain.RegimeNormal
		}
	}

	bestState := 0
	for k, p := range fit.finalPosterior {
		probs[string(labelOf(k))] += p
		if p > fit.finalPosterior[bestState] {
			bestState = k
		}
	}
	return labelOf(bestState), probs
}

// crashRiskScore blends the high-volatility state probability with the
// percentile of the current volatility estimate within the lookback window.
func crashRiskScore(highVolProb, currentVol float64, windowVols []float64) float64 {
	percentile := volPercentile(currentVol, windowVols)
	score := crashWeightStateProb*highVolProb + crashWeightPercentile*percentile
	return clamp01(score)
}

func volPercentile(current float64, window []float64) float64 {
	if len(window) == 0 {
		return 0
	}
	sorted := append([]float64(nil), window...)
	sort.Float64s(sorted)
	below := sort.SearchFloat64s(sorted, current)
	return float64(below) / float64(len(sorted))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// failure is the hard-failure path: the source could not supply usable data
func (e *Engine) failure(message string) domain.RegimeResult {
	e.log.Error().Str("reason", message).Msg("Regime classification failed")
	return domain.RegimeResult{
		Regime:    domain.RegimeUnknown,
		FitMethod: domain.VolMethodNone,
		VolMethod: domain.VolMethodNone,
		Error:     message,
	}
}

// insufficient is the soft path: data arrived but was too thin to classify
func (e *Engine) insufficient(message string) domain.RegimeResult {
	e.log.Warn().Str("reason", message).Msg("Regime classification skipped")
	return domain.RegimeResult{
		Regime:    domain.RegimeUnknown,
		FitMethod: domain.VolMethodNone,
		VolMethod: domain.VolMethodNone,
		Warning:   message,
	}
}
