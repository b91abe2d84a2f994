// Package factors estimates per-symbol sensitivities to macro factor
// returns via OLS over a rolling window of overlapping observations.
package factors

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/vigil/internal/config"
	"github.com/aristath/vigil/internal/domain"
	"github.com/aristath/vigil/internal/marketdata"
)

// Factor variance below this is treated as degenerate: the regression
// would divide by (near) zero, so the beta is omitted instead.
const minFactorVariance = 1e-12

// Result is the outcome of one beta computation run
type Result struct {
	Betas    map[string]domain.BetaSet // symbol -> factor name -> beta
	Warnings []string                  // per-symbol / per-factor issues, batch never aborts
}

// Calculator computes macro factor betas for a universe of symbols
type Calculator struct {
	provider marketdata.Provider
	cfg      config.BetaConfig
	log      zerolog.Logger
}

// NewCalculator creates a new beta calculator
func NewCalculator(provider marketdata.Provider, cfg config.BetaConfig, log zerolog.Logger) *Calculator {
	return &Calculator{
		provider: provider,
		cfg:      cfg,
		log:      log.With().Str("component", "beta_calculator").Logger(),
	}
}

// ComputeBetas estimates betas for every symbol against every configured
// factor. A symbol or factor that cannot be fetched is recorded in the
// warnings and skipped; the batch always completes.
func (c *Calculator) ComputeBetas(ctx context.Context, symbols []string) Result {
	result := Result{Betas: make(map[string]domain.BetaSet, len(symbols))}

	end := time.Now().UTC().Truncate(24 * time.Hour)
	start := end.AddDate(0, 0, -c.cfg.LookbackDays)

	factorReturns := c.fetchFactorReturns(ctx, start, end, &result)
	if len(factorReturns) == 0 {
		result.Warnings = append(result.Warnings, "no factor series available; betas undefined for this run")
		return result
	}

	for _, symbol := range symbols {
		series, err := c.provider.Fetch(ctx, symbol, start, end)
		if err != nil {
			c.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to fetch symbol for betas")
			result.Warnings = append(result.Warnings, fmt.Sprintf("betas for %s unavailable: %v", symbol, err))
			continue
		}

		betas := c.computeForSymbol(series.ReturnsByDate(), factorReturns)
		if len(betas) > 0 {
			result.Betas[symbol] = betas
		}
	}
	return result
}

func (c *Calculator) fetchFactorReturns(ctx context.Context, start, end time.Time, result *Result) map[string]map[time.Time]float64 {
	out := make(map[string]map[time.Time]float64, len(c.cfg.Factors))
	for _, factor := range c.cfg.Factors {
		series, err := c.provider.Fetch(ctx, factor.Symbol, start, end)
		if err != nil {
			c.log.Warn().Err(err).
				Str("factor", factor.Name).
				Str("symbol", factor.Symbol).
				Msg("Factor series unavailable, disabling factor for this run")
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("factor %s (%s) unavailable: %v", factor.Name, factor.Symbol, err))
			continue
		}
		out[factor.Name] = series.ReturnsByDate()
	}
	return out
}

// computeForSymbol runs the per-factor OLS. Pairs with too few overlapping
// observations or degenerate factor variance are omitted from the set.
func (c *Calculator) computeForSymbol(stockReturns map[time.Time]float64, factorReturns map[string]map[time.Time]float64) domain.BetaSet {
	betas := make(domain.BetaSet)
	for name, factor := range factorReturns {
		beta, ok := olsBeta(stockReturns, factor, c.cfg.MinObservations)
		if ok {
			betas[name] = beta
		}
	}
	return betas
}

// olsBeta inner-joins the two return maps on date and computes
// cov(stock, factor) / var(factor). Returns ok=false when the overlap is
// below minObs or the factor variance is degenerate.
func olsBeta(stockReturns, factorReturns map[time.Time]float64, minObs int) (float64, bool) {
	dates := make([]time.Time, 0, len(stockReturns))
	for d := range stockReturns {
		if _, ok := factorReturns[d]; ok {
			dates = append(dates, d)
		}
	}
	if len(dates) < minObs {
		return 0, false
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	stock := make([]float64, len(dates))
	factor := make([]float64, len(dates))
	for i, d := range dates {
		stock[i] = stockReturns[d]
		factor[i] = factorReturns[d]
	}

	factorVar := stat.Variance(factor, nil)
	if factorVar < minFactorVariance {
		return 0, false
	}
	return stat.Covariance(stock, factor, nil) / factorVar, true
}
