package regime

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	emTolerance   = 1e-6
	varianceFloor = 1e-10
)

// stateModel is one fitted volatility state
type stateModel struct {
	mean   float64
	stddev float64
	weight float64 // stationary/mixture weight
}

// fitResult is the outcome of a classifier fit, with states ordered by
// ascending mean volatility and the posterior of the final observation.
type fitResult struct {
	states         []stateModel
	finalPosterior []float64 // same order as states
	iterations     int
}

// quantileInit seeds state means/stddevs from the data quantiles, giving
// both EM variants a deterministic, well-separated starting point.
func quantileInit(data []float64, states int) []stateModel {
	sorted := append([]float64(nil), data...)
	sort.Float64s(sorted)

	overall := stat.StdDev(data, nil)
	if overall < math.Sqrt(varianceFloor) {
		overall = math.Sqrt(varianceFloor)
	}

	out := make([]stateModel, states)
	for k := 0; k < states; k++ {
		q := (float64(k) + 0.5) / float64(states)
		out[k] = stateModel{
			mean:   stat.Quantile(q, stat.Empirical, sorted, nil),
			stddev: overall / float64(states),
			weight: 1.0 / float64(states),
		}
		if out[k].stddev < math.Sqrt(varianceFloor) {
			out[k].stddev = math.Sqrt(varianceFloor)
		}
	}
	return out
}

// fitGMM fits a Gaussian mixture to the observations by EM.
// Returns an error on non-convergence or numeric degeneracy.
func fitGMM(data []float64, states, maxIter int) (*fitResult, error) {
	n := len(data)
	if n < states*2 {
		return nil, fmt.Errorf("need at least %d observations for %d states, have %d", states*2, states, n)
	}

	models := quantileInit(data, states)
	resp := make([][]float64, n)
	for i := range resp {
		resp[i] = make([]float64, states)
	}

	prevLogLik := math.Inf(-1)
	iterations := 0
	for iter := 0; iter < maxIter; iter++ {
		iterations = iter + 1

		// E step
		logLik := 0.0
		for i, x := range data {
			total := 0.0
			for k, m := range models {
				resp[i][k] = m.weight * gaussianPDF(x, m.mean, m.stddev)
				total += resp[i][k]
			}
			if total <= 0 || math.IsNaN(total) {
				return nil, fmt.Errorf("mixture collapsed at observation %d", i)
			}
			for k := range models {
				resp[i][k] /= total
			}
			logLik += math.Log(total)
		}

		// M step
		for k := range models {
			nk := 0.0
			for i := range data {
				nk += resp[i][k]
			}
			if nk < 1e-8 {
				return nil, fmt.Errorf("state %d starved of responsibility", k)
			}
			mean := 0.0
			for i, x := range data {
				mean += resp[i][k] * x
			}
			mean /= nk
			variance := 0.0
			for i, x := range data {
				variance += resp[i][k] * (x - mean) * (x - mean)
			}
			variance /= nk
			if variance < varianceFloor {
				variance = varianceFloor
			}
			models[k] = stateModel{mean: mean, stddev: math.Sqrt(variance), weight: nk / float64(n)}
		}

		if math.Abs(logLik-prevLogLik) < emTolerance {
			break
		}
		prevLogLik = logLik
	}

	// Posterior of the final observation under the fitted mixture
	final := make([]float64, states)
	total := 0.0
	for k, m := range models {
		final[k] = m.weight * gaussianPDF(data[n-1], m.mean, m.stddev)
		total += final[k]
	}
	if total <= 0 || math.IsNaN(total) {
		return nil, fmt.Errorf("degenerate posterior for final observation")
	}
	for k := range final {
		final[k] /= total
	}

	return orderStates(&fitResult{states: models, finalPosterior: final, iterations: iterations}), nil
}

// fitHMM fits a Gaussian hidden Markov model by Baum-Welch with scaling.
// Returns an error on non-convergence or numeric degeneracy, in which
// case the caller falls back to the mixture model.
func fitHMM(data []float64, states, maxIter int) (*fitResult, error) {
	n := len(data)
	if n < states*4 {
		return nil, fmt.Errorf("need at least %d observations for a %d-state HMM, have %d", states*4, states, n)
	}

	models := quantileInit(data, states)

	// Sticky transition prior: volatility regimes persist for days
	trans := make([][]float64, states)
	for i := range trans {
		trans[i] = make([]float64, states)
		for j := range trans[i] {
			if i == j {
				trans[i][j] = 0.90
			} else {
				trans[i][j] = 0.10 / float64(states-1)
			}
		}
	}
	pi := make([]float64, states)
	for i := range pi {
		pi[i] = 1.0 / float64(states)
	}

	emit := func(k int, x float64) float64 {
		return gaussianPDF(x, models[k].mean, models[k].stddev)
	}

	alpha := newMatrix(n, states)
	beta := newMatrix(n, states)
	gamma := newMatrix(n, states)
	scale := make([]float64, n)

	prevLogLik := math.Inf(-1)
	converged := false
	iterations := 0

	for iter := 0; iter < maxIter; iter++ {
		iterations = iter + 1

		// Forward pass with scaling
		for k := 0; k < states; k++ {
			alpha[0][k] = pi[k] * emit(k, data[0])
		}
		scale[0] = rowSum(alpha[0])
		if scale[0] <= 0 {
			return nil, fmt.Errorf("forward pass underflow at t=0")
		}
		scaleRow(alpha[0], scale[0])

		for t := 1; t < n; t++ {
			for k := 0; k < states; k++ {
				sum := 0.0
				for j := 0; j < states; j++ {
					sum += alpha[t-1][j] * trans[j][k]
				}
				alpha[t][k] = sum * emit(k, data[t])
			}
			scale[t] = rowSum(alpha[t])
			if scale[t] <= 0 || math.IsNaN(scale[t]) {
				return nil, fmt.Errorf("forward pass underflow at t=%d", t)
			}
			scaleRow(alpha[t], scale[t])
		}

		// Backward pass using the same scaling factors
		for k := 0; k < states; k++ {
			beta[n-1][k] = 1.0 / scale[n-1]
		}
		for t := n - 2; t >= 0; t-- {
			for k := 0; k < states; k++ {
				sum := 0.0
				for j := 0; j < states; j++ {
					sum += trans[k][j] * emit(j, data[t+1]) * beta[t+1][j]
				}
				beta[t][k] = sum / scale[t]
			}
		}

		// State posteriors
		for t := 0; t < n; t++ {
			total := 0.0
			for k := 0; k < states; k++ {
				gamma[t][k] = alpha[t][k] * beta[t][k]
				total += gamma[t][k]
			}
			if total <= 0 || math.IsNaN(total) {
				return nil, fmt.Errorf("posterior underflow at t=%d", t)
			}
			scaleRow(gamma[t], total)
		}

		// Transition update
		for i := 0; i < states; i++ {
			denom := 0.0
			for t := 0; t < n-1; t++ {
				denom += gamma[t][i]
			}
			if denom < 1e-10 {
				return nil, fmt.Errorf("state %d unvisited", i)
			}
			for j := 0; j < states; j++ {
				num := 0.0
				for t := 0; t < n-1; t++ {
					num += alpha[t][i] * trans[i][j] * emit(j, data[t+1]) * beta[t+1][j]
				}
				trans[i][j] = num / denom
			}
			normalizeRow(trans[i])
		}

		// Emission and initial-state updates
		for k := 0; k < states; k++ {
			nk := 0.0
			mean := 0.0
			for t := 0; t < n; t++ {
				nk += gamma[t][k]
				mean += gamma[t][k] * data[t]
			}
			if nk < 1e-10 {
				return nil, fmt.Errorf("state %d starved of posterior mass", k)
			}
			mean /= nk
			variance := 0.0
			for t := 0; t < n; t++ {
				variance += gamma[t][k] * (data[t] - mean) * (data[t] - mean)
			}
			variance /= nk
			if variance < varianceFloor {
				variance = varianceFloor
			}
			models[k].mean = mean
			models[k].stddev = math.Sqrt(variance)
			models[k].weight = nk / float64(n)
			pi[k] = gamma[0][k]
		}

		logLik := 0.0
		for t := 0; t < n; t++ {
			logLik += math.Log(scale[t])
		}
		if math.IsNaN(logLik) || math.IsInf(logLik, 0) {
			return nil, fmt.Errorf("likelihood diverged")
		}
		if math.Abs(logLik-prevLogLik) < emTolerance {
			converged = true
			break
		}
		prevLogLik = logLik
	}

	if !converged {
		return nil, fmt.Errorf("Baum-Welch did not converge in %d iterations", maxIter)
	}

	final := append([]float64(nil), gamma[n-1]...)
	return orderStates(&fitResult{states: models, finalPosterior: final, iterations: iterations}), nil
}

// orderStates sorts states by ascending mean volatility, carrying the
// final posterior along so index 0 is always the calmest state.
func orderStates(r *fitResult) *fitResult {
	idx := make([]int, len(r.states))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		return r.states[idx[a]].mean < r.states[idx[b]].mean
	})

	states := make([]stateModel, len(idx))
	posterior := make([]float64, len(idx))
	for pos, i := range idx {
		states[pos] = r.states[i]
		posterior[pos] = r.finalPosterior[i]
	}
	r.states = states
	r.finalPosterior = posterior
	return r
}

func gaussianPDF(x, mean, stddev float64) float64 {
	dist := distuv.Normal{Mu: mean, Sigma: stddev}
	p := dist.Prob(x)
	if math.IsNaN(p) {
		return 0
	}
	return p
}

func newMatrix(rows, cols int) [][]float64 {
	m := make([][]float64, rows)
	for i := range m {
		m[i] = make([]float64, cols)
	}
	return m
}

func rowSum(row []float64) float64 {
	sum := 0.0
	for _, v := range row {
		sum += v
	}
	return sum
}

func scaleRow(row []float64, by float64) {
	for i := range row {
		row[i] /= by
	}
}

func normalizeRow(row []float64) {
	total := rowSum(row)
	if total <= 0 {
		return
	}
	scaleRow(row, total)
}
