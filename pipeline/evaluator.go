package pipeline

import (
	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"

	"github.com/habitatlab/sdmgo/dataset"
	"github.com/habitatlab/sdmgo/forest"
	"github.com/habitatlab/sdmgo/metrics"
	"github.com/habitatlab/sdmgo/pkg/errors"
)

// occurrenceThreshold converts continuous occurrence predictions to class
// calls for the confusion-matrix metrics.
const occurrenceThreshold = 0.5

// Evaluator computes the metric set of the configured outcome kind from an
// iteration's out-of-bag predictions against the training labels. All
// metrics are pure functions of (truth, predictions); the evaluator itself
// holds only configuration.
type Evaluator struct {
	Kind OutcomeKind

	// KFoldSplits adds a cross-validated R^2 to cover runs when >= 2.
	// Cross-validation retrains on fold subsets, so the learner and
	// hyperparameters are needed.
	KFoldSplits int
	Learner     Learner
	HP          forest.Hyperparameters
}

// MetricKeys returns the metric names the evaluator produces, in report
// order.
func (e *Evaluator) MetricKeys() []string {
	if e.Kind == KindCover {
		keys := []string{"r2", "rmse", "in_bag_r2_mean", "in_bag_r2_std"}
		if e.KFoldSplits >= 2 {
			keys = append(keys, "cv_r2")
		}
		return keys
	}
	return []string{"auc", "kappa", "tss", "accuracy", "yule_q"}
}

// Evaluate computes the metric map for one iteration.
func (e *Evaluator) Evaluate(ts *dataset.TrainingSet, oob []float64, m Model, seed int64) (map[string]float64, error) {
	truth := mat.NewVecDense(len(ts.Y), ts.Y)
	preds := mat.NewVecDense(len(oob), oob)

	if e.Kind == KindCover {
		return e.evaluateCover(ts, truth, preds, m, seed)
	}
	return e.evaluateOccurrence(truth, preds)
}

func (e *Evaluator) evaluateOccurrence(truth, preds *mat.VecDense) (map[string]float64, error) {
	auc, err := metrics.AUC(truth, preds)
	if err != nil {
		return nil, err
	}
	c, err := metrics.Confusion(truth, preds, occurrenceThreshold)
	if err != nil {
		return nil, err
	}

	return map[string]float64{
		"auc":      auc,
		"kappa":    c.Kappa(),
		"tss":      c.TSS(),
		"accuracy": c.Accuracy(),
		"yule_q":   c.YuleQ(),
	}, nil
}

func (e *Evaluator) evaluateCover(ts *dataset.TrainingSet, truth, preds *mat.VecDense, m Model, seed int64) (map[string]float64, error) {
	r2, err := metrics.R2Score(truth, preds)
	if err != nil {
		return nil, err
	}
	rmse, err := metrics.RMSE(truth, preds)
	if err != nil {
		return nil, err
	}

	out := map[string]float64{"r2": r2, "rmse": rmse}

	if scorer, ok := m.(inBagScorer); ok {
		scores := stats.Float64Data(scorer.TreeInBagScores())
		if len(scores) > 0 {
			mean, err := stats.Mean(scores)
			if err != nil {
				return nil, errors.Wrap(err, "in-bag score mean")
			}
			std, err := stats.StdDevP(scores)
			if err != nil {
				return nil, errors.Wrap(err, "in-bag score std")
			}
			out["in_bag_r2_mean"] = mean
			out["in_bag_r2_std"] = std
		}
	}

	if e.KFoldSplits >= 2 && e.Learner != nil {
		if len(ts.Y) < 2 {
			errors.Warn(errors.NewUndefinedMetricWarning("cv_r2", "fewer than 2 training rows", 0))
		} else {
			cv, err := e.crossValidatedR2(ts, seed)
			if err != nil {
				return nil, err
			}
			out["cv_r2"] = cv
		}
	}

	return out, nil
}

// crossValidatedR2 retrains the learner on each fold's training subset and
// scores the held-out rows, assembling one prediction per training row.
// The split count is capped at leave-one-out so small training sets never
// produce folds without held-out rows.
func (e *Evaluator) crossValidatedR2(ts *dataset.TrainingSet, seed int64) (float64, error) {
	n, nFeat := ts.X.Dims()
	splits := e.KFoldSplits
	if splits > n {
		splits = n
	}
	folds := NewKFold(splits, true, seed).Split(n)

	preds := make([]float64, n)
	for fi, fold := range folds {
		trainX := mat.NewDense(len(fold.TrainIndices), nFeat, nil)
		trainY := make([]float64, len(fold.TrainIndices))
		for k, idx := range fold.TrainIndices {
			trainX.SetRow(k, mat.Row(nil, idx, ts.X))
			trainY[k] = ts.Y[idx]
		}

		testX := mat.NewDense(len(fold.TestIndices), nFeat, nil)
		for k, idx := range fold.TestIndices {
			testX.SetRow(k, mat.Row(nil, idx, ts.X))
		}

		sub := &dataset.TrainingSet{X: trainX, Y: trainY, NPositives: len(fold.TrainIndices)}
		m, _, err := e.Learner.Train(sub, e.HP, seed+int64(fi+1))
		if err != nil {
			return 0, errors.Wrap(err, "cross-validation fold")
		}
		foldPreds, err := m.Predict(testX)
		if err != nil {
			return 0, errors.Wrap(err, "cross-validation fold")
		}
		for k, idx := range fold.TestIndices {
			preds[idx] = foldPreds[k]
		}
	}

	return metrics.R2Score(mat.NewVecDense(n, ts.Y), mat.NewVecDense(n, preds))
}
