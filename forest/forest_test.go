package forest

import (
	"bytes"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

var testHP = Hyperparameters{
	VariablesPerSplit: 1,
	MinLeafPopulation: 2,
	MaxNodes:          64,
	NumTrees:          25,
}

// separableData builds a binary problem where the first feature fully
// separates the classes at 0.5.
func separableData(n int, seed uint64) (*mat.Dense, []float64) {
	r := rand.New(rand.NewPCG(seed, seed))
	x := mat.NewDense(n, 2, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			x.Set(i, 0, r.Float64()*0.4) // class 0 in [0, 0.4)
		} else {
			x.Set(i, 0, 0.6+r.Float64()*0.4) // class 1 in [0.6, 1)
			y[i] = 1
		}
		x.Set(i, 1, r.NormFloat64()) // noise feature
	}
	return x, y
}

func TestTrainClassificationSeparable(t *testing.T) {
	x, y := separableData(200, 5)

	f, oob, err := Train(x, y, testHP, ModeClassification, 42)
	require.NoError(t, err)
	require.Len(t, f.Trees, testHP.NumTrees)
	require.Len(t, oob, 200)

	preds, err := f.Predict(x)
	require.NoError(t, err)

	correct := 0
	for i := range preds {
		if (preds[i] >= 0.5) == (y[i] == 1) {
			correct++
		}
	}
	assert.Greater(t, float64(correct)/200.0, 0.95, "separable data should be nearly perfectly classified")

	// OOB predictions should carry signal too, if a bit noisier.
	oobCorrect := 0
	for i := range oob {
		if (oob[i] >= 0.5) == (y[i] == 1) {
			oobCorrect++
		}
	}
	assert.Greater(t, float64(oobCorrect)/200.0, 0.9)
}

func TestTrainRegressionLinearSignal(t *testing.T) {
	r := rand.New(rand.NewPCG(8, 8))
	n := 300
	x := mat.NewDense(n, 2, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		v := r.Float64() * 10
		x.Set(i, 0, v)
		x.Set(i, 1, r.NormFloat64())
		y[i] = 3 * v
	}

	f, oob, err := Train(x, y, testHP, ModeRegression, 42)
	require.NoError(t, err)
	require.Len(t, oob, n)

	preds, err := f.Predict(x)
	require.NoError(t, err)

	// In-sample predictions should track the signal closely.
	for i := 0; i < n; i += 37 {
		assert.InDelta(t, y[i], preds[i], 4.0, "row %d", i)
	}

	// Every per-tree in-bag score is an R^2 over the tree's own sample.
	require.Len(t, f.InBagScores, testHP.NumTrees)
	for t2, s := range f.InBagScores {
		assert.Greater(t, s, 0.8, "tree %d in-bag score", t2)
		assert.LessOrEqual(t, s, 1.0)
	}
}

func TestTrainDeterminism(t *testing.T) {
	x, y := separableData(150, 5)

	_, oob1, err := Train(x, y, testHP, ModeClassification, 7)
	require.NoError(t, err)
	_, oob2, err := Train(x, y, testHP, ModeClassification, 7)
	require.NoError(t, err)

	for i := range oob1 {
		assert.InDelta(t, oob1[i], oob2[i], 1e-12, "row %d", i)
	}

	_, oob3, err := Train(x, y, testHP, ModeClassification, 8)
	require.NoError(t, err)
	same := true
	for i := range oob1 {
		if oob1[i] != oob3[i] {
			same = false
			break
		}
	}
	assert.False(t, same, "different seeds must change the ensemble")
}

func TestMaxNodesBound(t *testing.T) {
	x, y := separableData(400, 3)

	hp := testHP
	hp.MaxNodes = 7

	f, _, err := Train(x, y, hp, ModeClassification, 1)
	require.NoError(t, err)
	for i := range f.Trees {
		assert.LessOrEqual(t, len(f.Trees[i].Nodes), hp.MaxNodes, "tree %d", i)
	}
}

func TestHyperparameterValidation(t *testing.T) {
	x, y := separableData(20, 1)

	bad := testHP
	bad.NumTrees = 0
	_, _, err := Train(x, y, bad, ModeClassification, 1)
	assert.Error(t, err)

	bad = testHP
	bad.MaxNodes = 2
	_, _, err = Train(x, y, bad, ModeClassification, 1)
	assert.Error(t, err)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	x, y := separableData(100, 2)

	f, _, err := Train(x, y, testHP, ModeClassification, 9)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.Encode(&buf))

	loaded, err := Decode(&buf)
	require.NoError(t, err)
	require.Len(t, loaded.Trees, len(f.Trees))

	want, err := f.Predict(x)
	require.NoError(t, err)
	got, err := loaded.Predict(x)
	require.NoError(t, err)
	for i := range want {
		assert.Equal(t, want[i], got[i], "row %d", i)
	}
}

func TestPredictDimensionMismatch(t *testing.T) {
	x, y := separableData(50, 4)
	f, _, err := Train(x, y, testHP, ModeClassification, 3)
	require.NoError(t, err)

	_, err = f.Predict(mat.NewDense(2, 3, nil))
	assert.Error(t, err)
}
