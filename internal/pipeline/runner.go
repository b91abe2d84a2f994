package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/vigil/internal/domain"
	"github.com/aristath/vigil/internal/factors"
	"github.com/aristath/vigil/internal/marketdata"
	"github.com/aristath/vigil/internal/prediction"
	"github.com/aristath/vigil/internal/quality"
	"github.com/aristath/vigil/internal/regime"
	"github.com/aristath/vigil/internal/scoring"
	"github.com/aristath/vigil/internal/universe"
)

const historyLookbackDays = 400

// Runner drives the stage sequence. Stages run strictly in order; a stage
// failure marks the stage and the run failed while preserving everything
// already persisted. Per-symbol problems degrade that symbol only.
type Runner struct {
	tracker   *Tracker
	provider  marketdata.Provider
	validator *quality.Validator
	regime    *regime.Engine
	betas     *factors.Calculator
	predictor *prediction.BatchPredictor
	scorer    *scoring.Scorer
	exporter  *scoring.Exporter
	universe  *universe.Repository
	log       zerolog.Logger
}

// RunnerDeps collects the stage dependencies, constructed once at startup
type RunnerDeps struct {
	Provider  marketdata.Provider
	Validator *quality.Validator
	Regime    *regime.Engine
	Betas     *factors.Calculator
	Predictor *prediction.BatchPredictor
	Scorer    *scoring.Scorer
	Exporter  *scoring.Exporter
	Universe  *universe.Repository
}

// NewRunner wires a runner to its tracker and dependencies
func NewRunner(tracker *Tracker, deps RunnerDeps, log zerolog.Logger) *Runner {
	return &Runner{
		tracker:   tracker,
		provider:  deps.Provider,
		validator: deps.Validator,
		regime:    deps.Regime,
		betas:     deps.Betas,
		predictor: deps.Predictor,
		scorer:    deps.Scorer,
		exporter:  deps.Exporter,
		universe:  deps.Universe,
		log:       log.With().Str("component", "runner").Logger(),
	}
}

// scanned carries a validated symbol between stages
type scanned struct {
	security domain.Security
	series   *domain.PriceSeries
}

// Run executes the full pipeline. The returned error is non-nil only for
// structural failures; those are also reflected in the persisted document.
func (r *Runner) Run(ctx context.Context) error {
	securities, err := r.initialization(ctx)
	if err != nil {
		return r.failStage(StageInitialization, err)
	}

	regimeResult, err := r.regimeDetection(ctx)
	if err != nil {
		return r.failStage(StageRegimeDetection, err)
	}

	valid, err := r.universeScan(ctx, securities)
	if err != nil {
		return r.failStage(StageUniverseScan, err)
	}

	betaResult, err := r.modelRefresh(ctx, valid)
	if err != nil {
		return r.failStage(StageModelRefresh, err)
	}

	outcomes, err := r.batchPrediction(ctx, valid)
	if err != nil {
		return r.failStage(StageBatchPrediction, err)
	}

	scored, err := r.score(valid, outcomes, betaResult, regimeResult)
	if err != nil {
		return r.failStage(StageScoring, err)
	}

	if err := r.reportGeneration(scored, regimeResult); err != nil {
		return r.failStage(StageReportGeneration, err)
	}
	return nil
}

func (r *Runner) initialization(ctx context.Context) ([]domain.Security, error) {
	if err := r.tracker.UpdateStage(StageInitialization, StatusRunning, 0, "loading universe"); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	securities, err := r.universe.GetAllActive()
	if err != nil {
		return nil, fmt.Errorf("loading universe: %w", err)
	}
	if len(securities) == 0 {
		return nil, fmt.Errorf("universe is empty")
	}

	msg := fmt.Sprintf("%d active securities", len(securities))
	if err := r.tracker.UpdateStage(StageInitialization, StatusComplete, 100, msg); err != nil {
		return nil, err
	}
	return securities, nil
}

// regimeDetection treats an unusable classification as a degraded result,
// not a run failure: the scoring stage skips its regime adjustments and the
// classification's own error or warning is surfaced through the progress
// document. Only a tracker persist failure is structural.
func (r *Runner) regimeDetection(ctx context.Context) (domain.RegimeResult, error) {
	if err := r.tracker.UpdateStage(StageRegimeDetection, StatusRunning, 0, "classifying market regime"); err != nil {
		return domain.RegimeResult{}, err
	}

	result := r.regime.Classify(ctx)
	if result.Error != "" {
		if err := r.tracker.AddError(fmt.Sprintf("regime detection: %s", result.Error)); err != nil {
			return domain.RegimeResult{}, err
		}
	}
	if result.Warning != "" {
		if err := r.tracker.AddWarning(fmt.Sprintf("regime detection: %s", result.Warning)); err != nil {
			return domain.RegimeResult{}, err
		}
	}

	msg := fmt.Sprintf("regime=%s vol_method=%s", result.Regime, result.VolMethod)
	if err := r.tracker.UpdateStage(StageRegimeDetection, StatusComplete, 100, msg); err != nil {
		return domain.RegimeResult{}, err
	}
	return result, nil
}

// universeScan fetches and quality-validates every active symbol. Each
// symbol counts as scanned whether or not it survives; failures become
// warnings and the symbol drops out of the later stages.
func (r *Runner) universeScan(ctx context.Context, securities []domain.Security) ([]scanned, error) {
	if err := r.tracker.UpdateStage(StageUniverseScan, StatusRunning, 0, "scanning universe"); err != nil {
		return nil, err
	}

	end := time.Now().UTC().Truncate(24 * time.Hour)
	start := end.AddDate(0, 0, -historyLookbackDays)

	var valid []scanned
	for i, security := range securities {
		if r.tracker.Cancelled() {
			return nil, fmt.Errorf("cancelled during universe scan")
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := r.tracker.IncrementMetric(MetricStocksScanned, 1); err != nil {
			return nil, err
		}

		series, err := r.provider.Fetch(ctx, security.Symbol, start, end)
		if err != nil {
			_ = r.tracker.AddWarning(fmt.Sprintf("fetch failed for %s: %v", security.Symbol, err))
			continue
		}

		report := r.validator.Validate(series, security.Symbol)
		if !report.IsValid {
			_ = r.tracker.AddWarning(fmt.Sprintf("validation failed for %s: %v", security.Symbol, report.Issues))
			continue
		}
		for _, w := range report.Warnings {
			r.log.Debug().Str("symbol", security.Symbol).Str("warning", w).Msg("Quality warning")
		}

		valid = append(valid, scanned{security: security, series: series})

		progress := float64(i+1) / float64(len(securities)) * 100
		msg := fmt.Sprintf("%d/%d scanned, %d valid", i+1, len(securities), len(valid))
		if err := r.tracker.UpdateStage(StageUniverseScan, StatusRunning, progress, msg); err != nil {
			return nil, err
		}
	}

	msg := fmt.Sprintf("%d of %d symbols valid", len(valid), len(securities))
	if err := r.tracker.UpdateStage(StageUniverseScan, StatusComplete, 100, msg); err != nil {
		return nil, err
	}
	return valid, nil
}

// modelRefresh recomputes the macro beta sets. Per-symbol omissions are
// already warnings inside the result; the stage itself always completes.
func (r *Runner) modelRefresh(ctx context.Context, valid []scanned) (factors.Result, error) {
	if err := r.tracker.UpdateStage(StageModelRefresh, StatusRunning, 0, "computing factor betas"); err != nil {
		return factors.Result{}, err
	}

	symbols := make([]string, 0, len(valid))
	for _, s := range valid {
		symbols = append(symbols, s.security.Symbol)
	}

	result := r.betas.ComputeBetas(ctx, symbols)
	for _, w := range result.Warnings {
		if err := r.tracker.AddWarning(fmt.Sprintf("beta calculation: %s", w)); err != nil {
			return factors.Result{}, err
		}
	}
	if err := r.tracker.IncrementMetric(MetricModelsTrained, len(result.Betas)); err != nil {
		return factors.Result{}, err
	}

	msg := fmt.Sprintf("betas for %d of %d symbols", len(result.Betas), len(symbols))
	if err := r.tracker.UpdateStage(StageModelRefresh, StatusComplete, 100, msg); err != nil {
		return factors.Result{}, err
	}
	return result, nil
}

func (r *Runner) batchPrediction(ctx context.Context, valid []scanned) ([]prediction.Outcome, error) {
	if err := r.tracker.UpdateStage(StageBatchPrediction, StatusRunning, 0, "predicting universe"); err != nil {
		return nil, err
	}

	items := make([]prediction.Item, 0, len(valid))
	for _, s := range valid {
		items = append(items, prediction.Item{Symbol: s.security.Symbol, Series: s.series})
	}

	// The progress callback runs on this goroutine (single collector), so
	// the first persist failure can be captured without locking.
	var persistErr error
	outcomes := r.predictor.Run(ctx, items, r.tracker.Cancelled, func(done, total int, outcome prediction.Outcome) {
		if persistErr != nil {
			return
		}
		if outcome.Err != nil {
			persistErr = r.tracker.AddWarning(fmt.Sprintf("prediction failed for %s: %v", outcome.Symbol, outcome.Err))
		} else {
			persistErr = r.tracker.IncrementMetric(MetricPredictionsGenerated, 1)
		}
		if persistErr != nil {
			return
		}
		progress := float64(done) / float64(total) * 100
		msg := fmt.Sprintf("%d/%d predicted", done, total)
		persistErr = r.tracker.UpdateStage(StageBatchPrediction, StatusRunning, progress, msg)
	})
	if persistErr != nil {
		return nil, persistErr
	}

	msg := fmt.Sprintf("%d outcomes", len(outcomes))
	if err := r.tracker.UpdateStage(StageBatchPrediction, StatusComplete, 100, msg); err != nil {
		return nil, err
	}
	return outcomes, nil
}

func (r *Runner) score(valid []scanned, outcomes []prediction.Outcome, betaResult factors.Result, regimeResult domain.RegimeResult) ([]domain.ScoredOpportunity, error) {
	if err := r.tracker.UpdateStage(StageScoring, StatusRunning, 0, "scoring opportunities"); err != nil {
		return nil, err
	}

	records := make(map[string]domain.PredictionRecord, len(outcomes))
	for _, o := range outcomes {
		if o.Err == nil {
			records[o.Symbol] = o.Record
		}
	}

	inputs := make([]scoring.Input, 0, len(valid))
	for _, s := range valid {
		record, ok := records[s.security.Symbol]
		if !ok {
			continue
		}
		inputs = append(inputs, scoring.Input{
			Security:   s.security,
			Series:     s.series,
			Prediction: record,
			Betas:      betaResult.Betas[s.security.Symbol],
		})
	}

	scored := r.scorer.ScoreAll(inputs, regimeResult)
	if err := r.tracker.IncrementMetric(MetricOpportunitiesFound, len(scored)); err != nil {
		return nil, err
	}

	msg := fmt.Sprintf("%d opportunities scored", len(scored))
	if err := r.tracker.UpdateStage(StageScoring, StatusComplete, 100, msg); err != nil {
		return nil, err
	}
	return scored, nil
}

func (r *Runner) reportGeneration(scored []domain.ScoredOpportunity, regimeResult domain.RegimeResult) error {
	if err := r.tracker.UpdateStage(StageReportGeneration, StatusRunning, 0, "writing reports"); err != nil {
		return err
	}

	reportPath, err := r.exporter.Export(time.Now().UTC(), scored, regimeResult)
	if err != nil {
		return fmt.Errorf("writing reports: %w", err)
	}
	if err := r.tracker.SetReportPath(reportPath); err != nil {
		return err
	}
	return r.tracker.UpdateStage(StageReportGeneration, StatusComplete, 100, reportPath)
}

// failStage marks the stage and therefore the run as failed. The tracker
// fires the failure notification and archives the document.
func (r *Runner) failStage(stage string, cause error) error {
	r.log.Error().Err(cause).Str("stage", stage).Msg("Pipeline stage failed")
	if err := r.tracker.UpdateStage(stage, StatusFailed, 0, cause.Error()); err != nil {
		r.log.Error().Err(err).Msg("Failed to persist stage failure")
	}
	return fmt.Errorf("stage %s: %w", stage, cause)
}
