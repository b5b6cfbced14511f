package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/habitatlab/sdmgo/cfg"
	"github.com/habitatlab/sdmgo/dataset"
	"github.com/habitatlab/sdmgo/geo"
	"github.com/habitatlab/sdmgo/pipeline"
	"github.com/habitatlab/sdmgo/pkg/errors"
	sdmlog "github.com/habitatlab/sdmgo/pkg/log"
	"github.com/habitatlab/sdmgo/report"
	"github.com/habitatlab/sdmgo/store"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "config.yaml", "path to the run configuration file")
	flag.Parse()

	settings, err := cfg.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	sdmlog.SetupLogger(settings.LogLevel)
	errors.SetZerologWarnFunc(func(warning error) {
		log.Warn().Err(warning).Msg("model warning")
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, settings); err != nil {
		log.Fatal().Err(err).Msg("run failed")
	}
}

func run(ctx context.Context, settings *cfg.Settings) error {
	start := time.Now()

	training, err := dataset.ReadCSV(settings.TrainingPath, "training")
	if err != nil {
		return err
	}
	background, err := dataset.ReadCSV(settings.BackgroundPath, "background")
	if err != nil {
		return err
	}
	gridTable, err := dataset.ReadCSV(settings.GridPath, "grid")
	if err != nil {
		return err
	}
	grid, err := geo.LoadGrid(gridTable, settings.GridEPSG, settings.LonColumn, settings.LatColumn)
	if err != nil {
		return err
	}

	// Validate before creating any output file, so a rejected schema or
	// CRS leaves no directory or store behind.
	runner := pipeline.NewRunner(settings.Run, nil, nil)
	if err := runner.Validate(training, background, grid); err != nil {
		return err
	}

	if err := os.MkdirAll(settings.OutputDir, 0o755); err != nil {
		return err
	}

	var db *store.Store
	if settings.StorePath != "" {
		db, err = store.Open(settings.StorePath)
		if err != nil {
			return err
		}
		defer db.Close()
		if settings.SaveModels {
			runner.SetModelSink(db)
		}
	}

	agg, results, err := runner.Run(ctx, training, background, grid)
	if err != nil {
		return err
	}

	slog.Info("run complete",
		slog.Int("run.completed", agg.Iterations),
		slog.Int(sdmlog.GridRowsKey, len(agg.Mean)),
		slog.Int64(sdmlog.DurationMsKey, time.Since(start).Milliseconds()))

	paths, err := store.WritePredictions(settings.OutputDir, "predictions", settings.BatchSize, grid, settings.Run.OutcomeKind, agg)
	if err != nil {
		return err
	}
	slog.Info("predictions written", slog.Int("files", len(paths)))

	ev := pipeline.Evaluator{Kind: settings.Run.OutcomeKind, KFoldSplits: settings.Run.KFoldSplits}
	keys := ev.MetricKeys()
	metricsPath := filepath.Join(settings.OutputDir, "metrics.csv")
	if err := store.WriteMetricsTable(metricsPath, keys, results, agg); err != nil {
		return err
	}

	if db != nil {
		for _, res := range results {
			if err := db.SaveIterationMetrics(res.Iteration, res.Metrics); err != nil {
				return err
			}
		}
	}

	if settings.ChartPath != "" {
		if err := report.SaveMetricsChart(settings.ChartPath, keys, results); err != nil {
			return err
		}
	}
	return nil
}
