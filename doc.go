// Package sdmgo builds species distribution models from presence and
// background samples.
//
// A run draws N bootstrap training sets, fits a tree ensemble to each,
// predicts every set over a geographic grid, and aggregates the surfaces
// into mean, minimum, maximum and uncertainty layers with a per-cell
// extrapolation flag.
//
// The root package only documents the module. The entry points are:
//
//   - pipeline: the run orchestrator, from RunConfig to AggregateResult
//   - dataset: tabular input, schema inference and bootstrap assembly
//   - forest: the bagged decision-tree learner
//   - metrics: discrimination and fit statistics
//   - outlier: Mahalanobis-distance extrapolation detection
//   - geo: prediction grids and coordinate reference handling
//   - store: model artifacts and prediction output
//   - cmd/sdmrun: the command-line front end
//
// A minimal run:
//
//	cfg := pipeline.RunConfig{
//	    OutcomeKind:   pipeline.KindOccurrence,
//	    OutcomeColumn: "presence",
//	    Iterations:    10,
//	}
//	runner := pipeline.NewRunner(cfg, nil, nil)
//	agg, results, err := runner.Run(ctx, training, background, grid)
package sdmgo
