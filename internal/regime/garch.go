package regime

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// garchFit holds estimated GARCH(1,1) parameters and the filtered
// conditional variance of the next period.
type garchFit struct {
	omega, alpha, beta float64
	nextVariance       float64
	logLik             float64
}

// fitGARCH estimates a GARCH(1,1) model by maximizing the Gaussian
// log-likelihood over an (alpha, beta) grid with variance targeting for
// omega. Returns an error when no stationary parameterization improves on
// the trivial fit, in which case the caller falls back to EWMA.
func fitGARCH(returns []float64) (*garchFit, error) {
	n := len(returns)
	if n < 30 {
		return nil, fmt.Errorf("need at least 30 returns for GARCH, have %d", n)
	}

	mean := stat.Mean(returns, nil)
	demeaned := make([]float64, n)
	for i, r := range returns {
		demeaned[i] = r - mean
	}
	unconditional := stat.Variance(demeaned, nil)
	if unconditional < varianceFloor {
		return nil, fmt.Errorf("degenerate return variance")
	}

	best := garchFit{logLik: math.Inf(-1)}
	found := false

	for alpha := 0.02; alpha <= 0.30; alpha += 0.02 {
		for beta := 0.50; beta <= 0.97; beta += 0.01 {
			persistence := alpha + beta
			if persistence >= 0.999 {
				continue
			}
			omega := unconditional * (1 - persistence)
			logLik, nextVar, ok := garchLogLik(demeaned, omega, alpha, beta, unconditional)
			if !ok {
				continue
			}
			if logLik > best.logLik {
				best = garchFit{omega: omega, alpha: alpha, beta: beta, nextVariance: nextVar, logLik: logLik}
				found = true
			}
		}
	}

	if !found || best.nextVariance <= 0 || math.IsNaN(best.nextVariance) {
		return nil, fmt.Errorf("GARCH grid search failed to converge")
	}
	return &best, nil
}

// garchLogLik filters the conditional variance recursion and accumulates
// the Gaussian log-likelihood, also returning the one-step-ahead variance.
func garchLogLik(demeaned []float64, omega, alpha, beta, initialVar float64) (float64, float64, bool) {
	variance := initialVar
	logLik := 0.0
	for _, r := range demeaned {
		if variance <= 0 || math.IsNaN(variance) {
			return 0, 0, false
		}
		logLik += -0.5 * (math.Log(2*math.Pi) + math.Log(variance) + r*r/variance)
		variance = omega + alpha*r*r + beta*variance
	}
	if math.IsNaN(logLik) || math.IsInf(logLik, 0) {
		return 0, 0, false
	}
	return logLik, variance, true
}

// ewmaVariance computes the exponentially weighted variance of returns,
// the fallback estimator when GARCH does not converge. Lambda is the decay
// applied to the previous variance (RiskMetrics-style).
func ewmaVariance(returns []float64, lambda float64) (float64, error) {
	if len(returns) < 2 {
		return 0, fmt.Errorf("need at least 2 returns for EWMA, have %d", len(returns))
	}
	variance := returns[0] * returns[0]
	for _, r := range returns[1:] {
		variance = lambda*variance + (1-lambda)*r*r
	}
	if variance <= 0 || math.IsNaN(variance) {
		return 0, fmt.Errorf("degenerate EWMA variance")
	}
	return variance, nil
}
