package forest

import (
	"encoding/gob"
	"io"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/habitatlab/sdmgo/core/parallel"
	"github.com/habitatlab/sdmgo/metrics"
	"github.com/habitatlab/sdmgo/pkg/errors"
)

// Mode selects the split criterion and leaf semantics.
type Mode int

const (
	// ModeClassification grows gini trees over binary 0/1 labels; leaf
	// values are positive-class fractions, so the ensemble's soft vote is
	// an occurrence probability.
	ModeClassification Mode = iota
	// ModeRegression grows variance-reduction trees; leaf values are label
	// means.
	ModeRegression
)

// Hyperparameters is the fixed tuple every iteration trains with.
type Hyperparameters struct {
	VariablesPerSplit int `yaml:"variables_per_split"`
	MinLeafPopulation int `yaml:"min_leaf_population"`
	MaxNodes          int `yaml:"max_nodes"`
	NumTrees          int `yaml:"n_trees"`
}

// Validate checks the tuple's bounds.
func (hp Hyperparameters) Validate() error {
	if hp.NumTrees <= 0 {
		return errors.NewValueError("Hyperparameters", "n_trees must be positive")
	}
	if hp.MinLeafPopulation <= 0 {
		return errors.NewValueError("Hyperparameters", "min_leaf_population must be positive")
	}
	if hp.MaxNodes < 3 {
		return errors.NewValueError("Hyperparameters", "max_nodes must allow at least one split")
	}
	return nil
}

// Forest is a trained ensemble. It is immutable after Train returns and is
// gob-encodable for artifact persistence.
type Forest struct {
	Mode        Mode
	Trees       []Tree
	NumFeatures int
	// InBagScores holds each tree's R^2 on its own bootstrap sample, the
	// in-sample counterpart of the out-of-bag estimate.
	InBagScores []float64
}

// Train grows the ensemble on the given training matrix and labels and
// returns the model together with its out-of-bag predictions, one per
// training row.
//
// Trees are grown in parallel; every tree derives its own PCG stream from
// (seed, treeIndex), so results are identical regardless of scheduling.
func Train(x *mat.Dense, y []float64, hp Hyperparameters, mode Mode, seed int64) (*Forest, []float64, error) {
	if err := hp.Validate(); err != nil {
		return nil, nil, err
	}
	n, nFeat := x.Dims()
	if n == 0 {
		return nil, nil, errors.Wrap(errors.ErrEmptyData, "forest.Train")
	}
	if len(y) != n {
		return nil, nil, errors.NewDimensionError("forest.Train", n, len(y), 0)
	}

	f := &Forest{
		Mode:        mode,
		Trees:       make([]Tree, hp.NumTrees),
		NumFeatures: nFeat,
		InBagScores: make([]float64, hp.NumTrees),
	}
	inBag := make([][]bool, hp.NumTrees)

	parallel.Parallelize(hp.NumTrees, 1, func(start, end int) {
		for t := start; t < end; t++ {
			rng := rand.New(rand.NewPCG(uint64(seed), uint64(t)))

			// Bootstrap draw with replacement, same size as the input.
			idx := make([]int, n)
			bag := make([]bool, n)
			for i := range idx {
				j := rng.IntN(n)
				idx[i] = j
				bag[j] = true
			}

			b := &treeBuilder{
				x:        x,
				y:        y,
				mode:     mode,
				mtry:     hp.VariablesPerSplit,
				minLeaf:  hp.MinLeafPopulation,
				maxNodes: hp.MaxNodes,
				rng:      rng,
			}
			f.Trees[t] = b.build(idx)
			inBag[t] = bag
			f.InBagScores[t] = inBagScore(&f.Trees[t], x, y, idx)
		}
	})

	return f, f.oobPredictions(x, y, inBag), nil
}

// Predict returns the ensemble's soft-vote prediction for every row of x.
func (f *Forest) Predict(x *mat.Dense) ([]float64, error) {
	if len(f.Trees) == 0 {
		return nil, errors.WithStack(errors.ErrNotTrained)
	}
	n, nFeat := x.Dims()
	if nFeat != f.NumFeatures {
		return nil, errors.NewDimensionError("forest.Predict", f.NumFeatures, nFeat, 1)
	}

	preds := make([]float64, n)
	parallel.Parallelize(n, 256, func(start, end int) {
		row := make([]float64, nFeat)
		for i := start; i < end; i++ {
			mat.Row(row, i, x)
			var s float64
			for t := range f.Trees {
				s += f.Trees[t].Predict(row)
			}
			preds[i] = s / float64(len(f.Trees))
		}
	})
	return preds, nil
}

// oobPredictions averages, for each training row, the predictions of only
// the trees whose bootstrap draw excluded that row. A row seen by every
// tree (rare beyond a handful of trees) falls back to the full-ensemble
// prediction so the vector has no holes.
func (f *Forest) oobPredictions(x *mat.Dense, y []float64, inBag [][]bool) []float64 {
	n, nFeat := x.Dims()
	oob := make([]float64, n)

	parallel.Parallelize(n, 256, func(start, end int) {
		row := make([]float64, nFeat)
		for i := start; i < end; i++ {
			mat.Row(row, i, x)
			var s float64
			var k int
			for t := range f.Trees {
				if inBag[t][i] {
					continue
				}
				s += f.Trees[t].Predict(row)
				k++
			}
			if k == 0 {
				for t := range f.Trees {
					s += f.Trees[t].Predict(row)
				}
				k = len(f.Trees)
			}
			oob[i] = s / float64(k)
		}
	})
	return oob
}

// inBagScore computes one tree's R^2 over the rows of its own bootstrap
// draw.
func inBagScore(t *Tree, x *mat.Dense, y []float64, idx []int) float64 {
	_, nFeat := x.Dims()
	row := make([]float64, nFeat)

	truth := make([]float64, len(idx))
	preds := make([]float64, len(idx))
	for k, i := range idx {
		mat.Row(row, i, x)
		truth[k] = y[i]
		preds[k] = t.Predict(row)
	}

	r2, err := metrics.R2Score(mat.NewVecDense(len(truth), truth), mat.NewVecDense(len(preds), preds))
	if err != nil {
		return 0
	}
	return r2
}

// TreeInBagScores returns each tree's R^2 on its own bootstrap sample.
func (f *Forest) TreeInBagScores() []float64 {
	return f.InBagScores
}

// Encode writes the forest as a gob stream.
func (f *Forest) Encode(w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(f); err != nil {
		return errors.Wrap(err, "forest.Encode")
	}
	return nil
}

// Decode reads a forest previously written by Encode.
func Decode(r io.Reader) (*Forest, error) {
	var f Forest
	if err := gob.NewDecoder(r).Decode(&f); err != nil {
		return nil, errors.Wrap(err, "forest.Decode")
	}
	return &f, nil
}
