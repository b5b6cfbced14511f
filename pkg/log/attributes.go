// Standard attribute keys shared by all sdmgo log statements. Using fixed
// keys keeps run logs filterable by iteration, dataset shape, and metric.
package log

// Run and iteration context.
const (
	// RunIDKey identifies one full modeling run.
	RunIDKey = "run.id"

	// IterationKey is the 1-based bootstrap iteration index.
	IterationKey = "run.iteration"

	// OutcomeKindKey is the configured outcome kind ("occurrence" or "cover").
	OutcomeKindKey = "run.outcome_kind"

	// SeedKey is the seed an iteration derived from the base seed.
	SeedKey = "run.seed"
)

// Data shape.
const (
	// SamplesKey is the number of rows in the dataset being processed.
	SamplesKey = "data.samples"

	// FeaturesKey is the number of feature columns.
	FeaturesKey = "data.features"

	// PositivesKey is the number of positive/occurrence training rows.
	PositivesKey = "data.positives"

	// BackgroundKey is the size of the background pool.
	BackgroundKey = "data.background"

	// GridRowsKey is the number of prediction-grid rows.
	GridRowsKey = "data.grid_rows"
)

// Results.
const (
	// MetricKey names a goodness-of-fit metric.
	MetricKey = "result.metric"

	// FlaggedRowsKey is the number of grid rows flagged as extrapolation.
	FlaggedRowsKey = "result.flagged_rows"

	// DurationMsKey is elapsed wall time in milliseconds.
	DurationMsKey = "perf.duration_ms"
)
