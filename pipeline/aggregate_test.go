package pipeline

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func iterResult(i int, preds []float64, flags []bool, m map[string]float64) *IterationResult {
	if flags == nil {
		flags = make([]bool, len(preds))
	}
	return &IterationResult{Iteration: i, Predictions: preds, Extrapolation: flags, Metrics: m}
}

func TestAggregateArithmetic(t *testing.T) {
	results := []*IterationResult{
		iterResult(1, []float64{0.2, 0.4, 0.6}, nil, map[string]float64{"auc": 0.9}),
		iterResult(2, []float64{0.3, 0.5, 0.7}, nil, map[string]float64{"auc": 0.8}),
		iterResult(3, []float64{0.1, 0.9, 0.5}, nil, map[string]float64{"auc": 0.7}),
	}

	agg, err := Aggregate(results)
	require.NoError(t, err)
	assert.Equal(t, 3, agg.Iterations)

	assert.InDelta(t, 0.2, agg.Mean[0], 1e-12)
	assert.InDelta(t, 0.1, agg.Min[0], 1e-12)
	assert.InDelta(t, 0.3, agg.Max[0], 1e-12)

	assert.InDelta(t, 0.6, agg.Mean[1], 1e-12)
	assert.InDelta(t, 0.4, agg.Min[1], 1e-12)
	assert.InDelta(t, 0.9, agg.Max[1], 1e-12)

	// Population standard deviation at row 0 of {0.2, 0.3, 0.1}.
	wantStd := math.Sqrt(((0.0)*(0.0) + 0.1*0.1 + 0.1*0.1) / 3)
	assert.InDelta(t, wantStd, agg.Uncertainty[0], 1e-12)

	assert.InDelta(t, 0.8, agg.Metrics["auc"], 1e-12)
}

func TestAggregateExtrapolationOr(t *testing.T) {
	results := []*IterationResult{
		iterResult(1, []float64{0, 0, 0}, []bool{false, true, false}, nil),
		iterResult(2, []float64{0, 0, 0}, []bool{false, false, false}, nil),
		iterResult(3, []float64{0, 0, 0}, []bool{true, true, false}, nil),
	}

	agg, err := Aggregate(results)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, true, false}, agg.Extrapolated)
}

func TestAggregateAllFalseFlagsStayFalse(t *testing.T) {
	results := []*IterationResult{
		iterResult(1, []float64{0.5}, nil, nil),
		iterResult(2, []float64{0.5}, nil, nil),
	}

	agg, err := Aggregate(results)
	require.NoError(t, err)
	assert.False(t, agg.Extrapolated[0])
}

func TestAggregateEmpty(t *testing.T) {
	_, err := Aggregate(nil)
	assert.Error(t, err)
}

func TestAggregateRowCountMismatch(t *testing.T) {
	results := []*IterationResult{
		iterResult(1, []float64{0.5, 0.5}, nil, nil),
		iterResult(2, []float64{0.5}, nil, nil),
	}
	_, err := Aggregate(results)
	assert.Error(t, err)
}

func TestAggregateMetricsAverageOverCarriers(t *testing.T) {
	results := []*IterationResult{
		iterResult(1, []float64{0.5}, nil, map[string]float64{"r2": 0.8}),
		iterResult(2, []float64{0.5}, nil, map[string]float64{"r2": 0.6, "cv_r2": 0.5}),
	}

	agg, err := Aggregate(results)
	require.NoError(t, err)

	// r2 averages over both iterations; cv_r2 only over the one that
	// reported it, not diluted by the other's absence.
	assert.InDelta(t, 0.7, agg.Metrics["r2"], 1e-12)
	assert.InDelta(t, 0.5, agg.Metrics["cv_r2"], 1e-12)
}
