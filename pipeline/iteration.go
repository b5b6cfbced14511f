package pipeline

import (
	"log/slog"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/habitatlab/sdmgo/dataset"
	"github.com/habitatlab/sdmgo/forest"
	"github.com/habitatlab/sdmgo/outlier"
	"github.com/habitatlab/sdmgo/pkg/errors"
	"github.com/habitatlab/sdmgo/pkg/log"
)

// IterationResult is the immutable output of one bootstrap iteration.
type IterationResult struct {
	Iteration     int
	Predictions   []float64
	Metrics       map[string]float64
	Extrapolation []bool
}

// IterationRunner executes one self-contained iteration: assemble the
// balanced training set, train the ensemble, evaluate its out-of-bag
// predictions, predict the grid, flag extrapolation, and persist the model
// artifact. Iterations share only read-only inputs, so any number of
// runners may execute concurrently.
type IterationRunner struct {
	Kind      OutcomeKind
	Assembler *dataset.Assembler
	Learner   Learner
	Evaluator *Evaluator
	Detector  *outlier.Detector
	HP        forest.Hyperparameters
	GridX     *mat.Dense
	Models    ModelSink
}

// Run executes iteration i (1-based).
func (r *IterationRunner) Run(i int) (*IterationResult, error) {
	started := time.Now()
	seed := r.Assembler.Seed(i)

	ts := r.Assembler.Assemble(i)
	if reason, ok := degenerate(ts, r.Kind); ok {
		return nil, errors.NewDegenerateTrainingSetError(i, reason)
	}

	m, oob, err := r.Learner.Train(ts, r.HP, seed)
	if err != nil {
		return nil, errors.Wrapf(err, "iteration %d: training", i)
	}

	metricValues, err := r.Evaluator.Evaluate(ts, oob, m, seed)
	if err != nil {
		return nil, errors.Wrapf(err, "iteration %d: evaluation", i)
	}

	preds, err := m.Predict(r.GridX)
	if err != nil {
		return nil, errors.Wrapf(err, "iteration %d: prediction", i)
	}

	flags := r.Detector.FlagExtrapolation(ts.X, r.GridX)

	if r.Models != nil {
		if err := r.Models.SaveModel(i, m); err != nil {
			return nil, errors.Wrapf(err, "iteration %d: persisting model", i)
		}
	}

	flagged := 0
	for _, f := range flags {
		if f {
			flagged++
		}
	}
	slog.Debug("iteration complete",
		log.IterationKey, i,
		log.SeedKey, seed,
		log.SamplesKey, ts.NumRows(),
		log.FlaggedRowsKey, flagged,
		log.DurationMsKey, time.Since(started).Milliseconds(),
	)

	return &IterationResult{
		Iteration:     i,
		Predictions:   preds,
		Metrics:       metricValues,
		Extrapolation: flags,
	}, nil
}

// degenerate reports whether the combined training labels carry no signal:
// a single class for occurrence runs, zero variance for cover runs.
func degenerate(ts *dataset.TrainingSet, kind OutcomeKind) (string, bool) {
	first := ts.Y[0]
	for _, y := range ts.Y[1:] {
		if y != first {
			return "", false
		}
	}
	if kind == KindCover {
		return "outcome has zero variance", true
	}
	return "outcome has a single class", true
}
