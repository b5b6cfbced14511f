package pipeline

import (
	"github.com/montanaflynn/stats"

	"github.com/habitatlab/sdmgo/pkg/errors"
)

// AggregateResult folds N iteration results into the final prediction
// surfaces. It is derived once and never mutated.
type AggregateResult struct {
	// Per-grid-row reductions over the iteration axis.
	Mean        []float64
	Min         []float64
	Max         []float64
	Uncertainty []float64 // population standard deviation across iterations
	// Extrapolated is true when ANY iteration flagged the row.
	Extrapolated []bool

	// Metrics holds the unweighted average of each metric over iterations.
	Metrics map[string]float64

	// Iterations is the number of completed iterations the reductions
	// divide by (may be fewer than configured when failures were dropped).
	Iterations int
}

// Aggregate combines iteration results. All reductions run over the
// iteration axis only and preserve row order; means and extrema are
// unweighted, identically for both outcome kinds.
func Aggregate(results []*IterationResult) (*AggregateResult, error) {
	if len(results) == 0 {
		return nil, errors.New("aggregate: no completed iterations")
	}

	n := len(results[0].Predictions)
	for _, r := range results[1:] {
		if len(r.Predictions) != n {
			return nil, errors.NewDimensionError("Aggregate", n, len(r.Predictions), 0)
		}
	}

	agg := &AggregateResult{
		Mean:         make([]float64, n),
		Min:          make([]float64, n),
		Max:          make([]float64, n),
		Uncertainty:  make([]float64, n),
		Extrapolated: make([]bool, n),
		Metrics:      make(map[string]float64),
		Iterations:   len(results),
	}

	buf := make(stats.Float64Data, len(results))
	for i := 0; i < n; i++ {
		for k, r := range results {
			buf[k] = r.Predictions[i]
			agg.Extrapolated[i] = agg.Extrapolated[i] || r.Extrapolation[i]
		}

		var err error
		if agg.Mean[i], err = stats.Mean(buf); err != nil {
			return nil, errors.Wrap(err, "aggregate mean")
		}
		if agg.Min[i], err = stats.Min(buf); err != nil {
			return nil, errors.Wrap(err, "aggregate min")
		}
		if agg.Max[i], err = stats.Max(buf); err != nil {
			return nil, errors.Wrap(err, "aggregate max")
		}
		if agg.Uncertainty[i], err = stats.StdDevP(buf); err != nil {
			return nil, errors.Wrap(err, "aggregate std")
		}
	}

	// Iterations may report different key sets (a learner without in-bag
	// scores omits those keys), so each metric averages over the
	// iterations that actually carry it.
	counts := make(map[string]int)
	for _, r := range results {
		for name, v := range r.Metrics {
			agg.Metrics[name] += v
			counts[name]++
		}
	}
	for name, c := range counts {
		agg.Metrics[name] /= float64(c)
	}

	return agg, nil
}
