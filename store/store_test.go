package store

import (
	"encoding/csv"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/habitatlab/sdmgo/dataset"
	"github.com/habitatlab/sdmgo/forest"
	"github.com/habitatlab/sdmgo/geo"
	"github.com/habitatlab/sdmgo/pipeline"
)

func trainedForest(t *testing.T) *forest.Forest {
	t.Helper()
	r := rand.New(rand.NewPCG(1, 1))
	n := 60
	x := mat.NewDense(n, 2, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x.Set(i, 0, r.Float64())
		x.Set(i, 1, r.Float64())
		if x.At(i, 0) > 0.5 {
			y[i] = 1
		}
	}
	f, _, err := forest.Train(x, y, forest.Hyperparameters{
		VariablesPerSplit: 1,
		MinLeafPopulation: 2,
		MaxNodes:          32,
		NumTrees:          10,
	}, forest.ModeClassification, 3)
	require.NoError(t, err)
	return f
}

func TestModelRoundTrip(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "run.db"))
	require.NoError(t, err)
	defer s.Close()

	f := trainedForest(t)
	require.NoError(t, s.SaveModel(2, f))

	count, err := s.ModelCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	loaded, err := s.LoadForest(2)
	require.NoError(t, err)

	x := mat.NewDense(1, 2, []float64{0.8, 0.1})
	want, err := f.Predict(x)
	require.NoError(t, err)
	got, err := loaded.Predict(x)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = s.LoadForest(9)
	assert.Error(t, err)
}

func TestSaveModelOverwriteIsIdempotent(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "run.db"))
	require.NoError(t, err)
	defer s.Close()

	f := trainedForest(t)
	require.NoError(t, s.SaveModel(1, f))
	require.NoError(t, s.SaveModel(1, f))

	count, err := s.ModelCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestIterationMetricsRoundTrip(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "run.db"))
	require.NoError(t, err)
	defer s.Close()

	in := map[string]float64{"auc": 0.91, "tss": 0.62}
	require.NoError(t, s.SaveIterationMetrics(1, in))

	out, err := s.LoadIterationMetrics(1)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func testGrid(t *testing.T, n int) *geo.Grid {
	t.Helper()
	rows := make([][]string, n)
	for i := range rows {
		rows[i] = []string{"1.5", "2.5", "100"}
	}
	tbl, err := dataset.NewTable("grid", []string{"x", "y", "elev"}, rows)
	require.NoError(t, err)
	g, err := geo.LoadGrid(tbl, geo.WGS84, "x", "y")
	require.NoError(t, err)
	return g
}

func testAggregate(n int) *pipeline.AggregateResult {
	agg := &pipeline.AggregateResult{
		Mean:         make([]float64, n),
		Min:          make([]float64, n),
		Max:          make([]float64, n),
		Uncertainty:  make([]float64, n),
		Extrapolated: make([]bool, n),
		Metrics:      map[string]float64{"auc": 0.9},
		Iterations:   3,
	}
	for i := 0; i < n; i++ {
		agg.Mean[i] = float64(i%10) / 10
		agg.Min[i] = agg.Mean[i] / 2
		agg.Max[i] = agg.Mean[i]*1.5 + 0.01
		agg.Extrapolated[i] = i%7 == 0
	}
	return agg
}

func TestWritePredictionsBatching(t *testing.T) {
	dir := t.TempDir()
	grid := testGrid(t, 25)
	agg := testAggregate(25)

	paths, err := WritePredictions(dir, "predictions", 10, grid, pipeline.KindOccurrence, agg)
	require.NoError(t, err)
	require.Len(t, paths, 3, "25 rows at batch size 10 gives 3 files")

	total := 0
	for _, p := range paths {
		f, err := os.Open(p)
		require.NoError(t, err)
		recs, err := csv.NewReader(f).ReadAll()
		f.Close()
		require.NoError(t, err)

		assert.Equal(t, "occurrence_mean", recs[0][2])
		assert.LessOrEqual(t, len(recs)-1, 10)
		total += len(recs) - 1
	}
	assert.Equal(t, 25, total)
}

func TestWritePredictionsFlags(t *testing.T) {
	dir := t.TempDir()
	grid := testGrid(t, 8)
	agg := testAggregate(8)

	paths, err := WritePredictions(dir, "predictions", 0, grid, pipeline.KindCover, agg)
	require.NoError(t, err)
	require.Len(t, paths, 1)

	f, err := os.Open(paths[0])
	require.NoError(t, err)
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	assert.Equal(t, "cover_mean", recs[0][2])
	// Row 0 is extrapolated (i%7==0) and mean 0 < 0.5.
	assert.Equal(t, "0", recs[1][5])
	assert.Equal(t, "2", recs[1][9])
	// Row 5: mean 0.5 crosses the suitability threshold, inside envelope.
	assert.Equal(t, "1", recs[6][5])
	assert.Equal(t, "1", recs[6][9])
}

func TestWriteMetricsTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.csv")
	results := []*pipeline.IterationResult{
		{Iteration: 1, Metrics: map[string]float64{"auc": 0.9, "tss": 0.5}},
		{Iteration: 2, Metrics: map[string]float64{"auc": 0.7, "tss": 0.3}},
	}
	agg := &pipeline.AggregateResult{Metrics: map[string]float64{"auc": 0.8, "tss": 0.4}}

	require.NoError(t, WriteMetricsTable(path, []string{"auc", "tss"}, results, agg))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, recs, 4) // header, two iterations, averaged row
	assert.Equal(t, []string{"iteration", "auc", "tss"}, recs[0])
	assert.Equal(t, []string{"1", "0.9", "0.5"}, recs[1])
	assert.Equal(t, []string{"mean", "0.8", "0.4"}, recs[3])
}
