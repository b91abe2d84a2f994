// Package main is the entry point for the Vigil overnight scoring pipeline.
// One binary covers every mode: a single immediate run, a cron-scheduled
// daemon, the read-only status server, and the CLI views over the persisted
// progress document.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/vigil/internal/config"
	"github.com/aristath/vigil/internal/database"
	"github.com/aristath/vigil/internal/domain"
	"github.com/aristath/vigil/internal/factors"
	"github.com/aristath/vigil/internal/marketdata"
	"github.com/aristath/vigil/internal/notify"
	"github.com/aristath/vigil/internal/pipeline"
	"github.com/aristath/vigil/internal/prediction"
	"github.com/aristath/vigil/internal/quality"
	"github.com/aristath/vigil/internal/regime"
	"github.com/aristath/vigil/internal/schedule"
	"github.com/aristath/vigil/internal/scoring"
	"github.com/aristath/vigil/internal/status"
	"github.com/aristath/vigil/internal/universe"
	"github.com/aristath/vigil/pkg/logger"
)

func main() {
	var (
		runNow       = flag.Bool("run", false, "Execute the pipeline immediately and exit")
		scheduleExpr = flag.String("schedule", "", "Run as a daemon on the given cron expression (e.g. \"30 1 * * *\")")
		watch        = flag.Bool("watch", false, "Follow the current run's progress in the terminal")
		historyN     = flag.Int("history", 0, "List the last N archived runs and exit")
		serve        = flag.Bool("serve", false, "Start the read-only status HTTP server")
		seedFile     = flag.String("seed", "", "Seed the universe from a JSON securities file and exit")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	progressDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "progress.db"),
		Profile: database.ProfileDurable,
		Name:    "progress",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open progress database")
	}
	defer progressDB.Close()

	store, err := pipeline.NewSQLiteStore(progressDB.Conn())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize progress store")
	}
	reader := status.NewReader(store)

	switch {
	case *seedFile != "":
		if err := seedUniverse(cfg, *seedFile, log); err != nil {
			log.Fatal().Err(err).Msg("Seeding failed")
		}

	case *historyN > 0:
		runs, err := reader.History(*historyN)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read run history")
		}
		status.RenderHistory(os.Stdout, runs)

	case *watch:
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		if err := status.Watch(ctx, reader, os.Stdout, 2*time.Second); err != nil && ctx.Err() == nil {
			log.Fatal().Err(err).Msg("Watch failed")
		}

	case *runNow:
		runner, cleanup, err := buildRunner(cfg, store, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to assemble pipeline")
		}
		defer cleanup()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		if err := runner(ctx); err != nil {
			log.Fatal().Err(err).Msg("Pipeline run failed")
		}

	case *scheduleExpr != "" || *serve:
		runDaemon(cfg, store, reader, *scheduleExpr, *serve, log)

	default:
		flag.Usage()
		os.Exit(2)
	}
}

// runFunc executes one full pipeline run with a fresh tracker
type runFunc func(ctx context.Context) error

// buildRunner assembles the stage dependencies once; each invocation of the
// returned function starts a new tracked run.
func buildRunner(cfg *config.Config, store pipeline.Store, log zerolog.Logger) (runFunc, func(), error) {
	universeDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "universe.db"),
		Profile: database.ProfileStandard,
		Name:    "universe",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("opening universe database: %w", err)
	}

	repo, err := universe.NewRepository(universeDB.Conn(), log)
	if err != nil {
		universeDB.Close()
		return nil, nil, fmt.Errorf("initializing universe repository: %w", err)
	}

	provider := marketdata.NewClient(cfg.MarketDataBaseURL, time.Duration(cfg.MarketDataTimeout)*time.Second, log)

	var news prediction.NewsProvider
	if cfg.NewsFile != "" {
		fileNews, err := marketdata.NewFileNewsProvider(cfg.NewsFile, log)
		if err != nil {
			log.Warn().Err(err).Msg("News file unavailable, sentiment model disabled")
		} else {
			news = fileNews
		}
	}

	bridge := prediction.NewBridge(
		prediction.NewLinearDirectionModel(cfg.Prediction.MinHistoryDays),
		prediction.NewLexiconSentimentModel(),
		news,
		log,
	)
	predictor := prediction.NewBatchPredictor(
		bridge,
		cfg.Prediction.Workers,
		time.Duration(cfg.Prediction.TimeoutSeconds)*time.Second,
		log,
	)

	deps := pipeline.RunnerDeps{
		Provider:  provider,
		Validator: quality.NewValidator(log),
		Regime:    regime.NewEngine(provider, cfg.Regime, cfg.IndexSymbol, cfg.VolProxySymbol, cfg.FXSymbol, log),
		Betas:     factors.NewCalculator(provider, cfg.Betas, log),
		Predictor: predictor,
		Scorer:    scoring.NewScorer(cfg.Weights, log),
		Exporter:  scoring.NewExporter(cfg.ReportsDir, log),
		Universe:  repo,
	}

	var notifier pipeline.Notifier
	switch cfg.NotifyChannel {
	case "file":
		notifier = notify.NewFileNotifier(cfg.NotifyFile, log)
	default:
		notifier = notify.NewLogNotifier(log)
	}

	run := func(ctx context.Context) error {
		tracker, err := pipeline.NewTracker(store, notifier, log)
		if err != nil {
			return fmt.Errorf("starting tracked run: %w", err)
		}
		return pipeline.NewRunner(tracker, deps, log).Run(ctx)
	}
	cleanup := func() { universeDB.Close() }
	return run, cleanup, nil
}

// runDaemon hosts the scheduled pipeline and/or the status server until a
// shutdown signal arrives.
func runDaemon(cfg *config.Config, store pipeline.Store, reader *status.Reader, scheduleExpr string, serve bool, log zerolog.Logger) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var sched *schedule.Scheduler
	if scheduleExpr != "" {
		run, cleanup, err := buildRunner(cfg, store, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to assemble pipeline")
		}
		defer cleanup()

		sched = schedule.New(log)
		job := schedule.JobFunc{JobName: "nightly_pipeline", Fn: func() error {
			return run(ctx)
		}}
		if err := sched.AddJob(scheduleExpr, job); err != nil {
			log.Fatal().Err(err).Msg("Failed to register pipeline schedule")
		}
		sched.Start()
	}

	var server *status.Server
	if serve {
		server = status.NewServer(reader, cfg.Port, log)
		go func() {
			if err := server.Start(); err != nil {
				log.Error().Err(err).Msg("Status server stopped")
				stop()
			}
		}()
	}

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Status server shutdown failed")
		}
	}
	if sched != nil {
		sched.Stop()
	}
}

// seedUniverse loads a JSON array of securities and inserts the ones not
// already present.
func seedUniverse(cfg *config.Config, path string, log zerolog.Logger) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading seed file: %w", err)
	}
	var securities []domain.Security
	if err := json.Unmarshal(raw, &securities); err != nil {
		return fmt.Errorf("parsing seed file %s: %w", path, err)
	}

	universeDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "universe.db"),
		Profile: database.ProfileStandard,
		Name:    "universe",
	})
	if err != nil {
		return fmt.Errorf("opening universe database: %w", err)
	}
	defer universeDB.Close()

	repo, err := universe.NewRepository(universeDB.Conn(), log)
	if err != nil {
		return fmt.Errorf("initializing universe repository: %w", err)
	}
	if err := repo.Seed(securities); err != nil {
		return err
	}

	total, active, err := repo.Count()
	if err != nil {
		return err
	}
	log.Info().Int("total", total).Int("active", active).Msg("Universe ready")
	return nil
}
