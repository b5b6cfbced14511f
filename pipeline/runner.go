package pipeline

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/habitatlab/sdmgo/dataset"
	"github.com/habitatlab/sdmgo/geo"
	"github.com/habitatlab/sdmgo/outlier"
	"github.com/habitatlab/sdmgo/pkg/errors"
	"github.com/habitatlab/sdmgo/pkg/log"
)

// Runner drives a full modeling run.
type Runner struct {
	cfg     RunConfig
	learner Learner
	models  ModelSink
}

// NewRunner builds a Runner. A nil learner selects the in-package forest;
// a nil sink skips artifact persistence.
func NewRunner(cfg RunConfig, learner Learner, models ModelSink) *Runner {
	cfg = cfg.withDefaults()
	if learner == nil {
		learner = ForestLearner{Mode: cfg.OutcomeKind.ForestMode()}
	}
	return &Runner{cfg: cfg, learner: learner, models: models}
}

// SetModelSink replaces the artifact sink. It lets callers validate the
// inputs first and only then create the store the sink writes to.
func (r *Runner) SetModelSink(models ModelSink) {
	r.models = models
}

// runInputs is the validated, coerced material every iteration shares.
type runInputs struct {
	schema    *dataset.Schema
	gridX     *mat.Dense
	assembler *dataset.Assembler
}

// prepare runs the fatal input checks and coercions: hyperparameter
// bounds, schema compatibility of all three tables, and the grid's CRS.
func (r *Runner) prepare(training, background *dataset.Table, grid *geo.Grid) (*runInputs, error) {
	if err := r.cfg.Hyperparameters.Validate(); err != nil {
		return nil, err
	}

	schema, err := dataset.BuildSchema(training, r.cfg.OutcomeColumn)
	if err != nil {
		return nil, err
	}

	if err := grid.EnsureWGS84(r.cfg.CRSPolicy); err != nil {
		return nil, err
	}
	gridX, err := schema.SelectAndCoerce(grid.Table)
	if err != nil {
		return nil, err
	}

	assembler, err := dataset.NewAssembler(training, background, schema, r.cfg.BackgroundRatio, r.cfg.BaseSeed)
	if err != nil {
		return nil, err
	}

	return &runInputs{schema: schema, gridX: gridX, assembler: assembler}, nil
}

// Validate runs the same fatal input checks Run starts with, without
// executing any iteration. Callers that create output files or stores can
// call it first so nothing is written when the inputs are rejected.
func (r *Runner) Validate(training, background *dataset.Table, grid *geo.Grid) error {
	_, err := r.prepare(training, background, grid)
	return err
}

// Run validates the inputs once, executes the configured number of
// iterations, and aggregates their results. Fatal validation errors
// surface before any iteration runs or any artifact is written.
func (r *Runner) Run(ctx context.Context, training, background *dataset.Table, grid *geo.Grid) (*AggregateResult, []*IterationResult, error) {
	in, err := r.prepare(training, background, grid)
	if err != nil {
		return nil, nil, err
	}
	schema, gridX, assembler := in.schema, in.gridX, in.assembler

	gridRows, _ := gridX.Dims()
	slog.Info("run starting",
		log.OutcomeKindKey, r.cfg.OutcomeKind.String(),
		log.PositivesKey, assembler.NumPositives(),
		log.BackgroundKey, background.NumRows(),
		log.GridRowsKey, gridRows,
		log.FeaturesKey, schema.NumFeatures(),
	)

	iter := &IterationRunner{
		Kind:      r.cfg.OutcomeKind,
		Assembler: assembler,
		Learner:   r.learner,
		Evaluator: &Evaluator{
			Kind:        r.cfg.OutcomeKind,
			KFoldSplits: r.cfg.KFoldSplits,
			Learner:     r.learner,
			HP:          r.cfg.Hyperparameters,
		},
		Detector: outlier.NewDetector(r.cfg.ConfidenceLevel),
		HP:       r.cfg.Hyperparameters,
		GridX:    gridX,
		Models:   r.models,
	}

	// Iterations are independent: each works from its own seed-derived
	// resample and model, so they fan out freely under the concurrency
	// bound.
	results := make([]*IterationResult, r.cfg.Iterations)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)

	for i := 1; i <= r.cfg.Iterations; i++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := iter.Run(i)
			if err != nil {
				var degen *errors.DegenerateTrainingSetError
				if r.cfg.ContinueOnIterationFailure && errors.As(err, &degen) {
					slog.Warn("dropping degenerate iteration",
						log.IterationKey, i,
						log.ErrAttr(err),
					)
					return nil
				}
				return err
			}
			results[i-1] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	completed := results[:0:0]
	for _, res := range results {
		if res != nil {
			completed = append(completed, res)
		}
	}

	agg, err := Aggregate(completed)
	if err != nil {
		return nil, nil, err
	}

	slog.Info("run complete",
		log.OutcomeKindKey, r.cfg.OutcomeKind.String(),
		"iterations_completed", agg.Iterations,
		"iterations_configured", r.cfg.Iterations,
	)
	return agg, completed, nil
}
