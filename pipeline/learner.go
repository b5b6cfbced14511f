package pipeline

import (
	"io"

	"gonum.org/v1/gonum/mat"

	"github.com/habitatlab/sdmgo/dataset"
	"github.com/habitatlab/sdmgo/forest"
)

// Model is a trained, immutable tree-ensemble artifact.
type Model interface {
	// Predict returns one scalar per row of x.
	Predict(x *mat.Dense) ([]float64, error)
	// Encode serializes the model so it can be reloaded independently.
	Encode(w io.Writer) error
}

// Learner is the injected tree-ensemble training primitive. Train grows an
// ensemble on the training set under the fixed hyperparameters and returns
// the model together with its out-of-bag predictions, one per training row.
// Identical (trainingSet, hyperparameters, seed) must reproduce identical
// out-of-bag predictions.
type Learner interface {
	Train(ts *dataset.TrainingSet, hp forest.Hyperparameters, seed int64) (Model, []float64, error)
}

// inBagScorer is implemented by models that expose each ensemble member's
// fit on its own bootstrap sample; the cover evaluator reports the spread.
type inBagScorer interface {
	TreeInBagScores() []float64
}

// ModelSink persists one model artifact per iteration, keyed by the
// iteration index. Artifacts are idempotent to overwrite.
type ModelSink interface {
	SaveModel(iteration int, m Model) error
}

// ForestLearner trains the in-package random forest. It is the production
// Learner; tests use StubLearner.
type ForestLearner struct {
	Mode forest.Mode
}

// Train implements Learner.
func (l ForestLearner) Train(ts *dataset.TrainingSet, hp forest.Hyperparameters, seed int64) (Model, []float64, error) {
	f, oob, err := forest.Train(ts.X, ts.Y, hp, l.Mode, seed)
	if err != nil {
		return nil, nil, err
	}
	return f, oob, nil
}

// StubLearner is a deterministic Learner for tests: every "model" predicts
// a fixed affine function of the first feature plus a per-seed offset, and
// out-of-bag predictions are the training labels shifted by the same
// offset. No randomness, no trees.
type StubLearner struct {
	// Scale applied to the per-seed offset; 0 means offsets of 0 and all
	// stub models are identical.
	OffsetScale float64
}

type stubModel struct {
	offset float64
}

func (m *stubModel) Predict(x *mat.Dense) ([]float64, error) {
	n, _ := x.Dims()
	preds := make([]float64, n)
	for i := 0; i < n; i++ {
		preds[i] = clamp01(x.At(i, 0)*0.1 + m.offset)
	}
	return preds, nil
}

func (m *stubModel) Encode(w io.Writer) error {
	_, err := w.Write([]byte{byte(m.offset * 100)})
	return err
}

// Train implements Learner.
func (l StubLearner) Train(ts *dataset.TrainingSet, _ forest.Hyperparameters, seed int64) (Model, []float64, error) {
	offset := l.OffsetScale * float64(seed%10) / 100
	oob := make([]float64, len(ts.Y))
	for i, y := range ts.Y {
		oob[i] = clamp01(y*0.8 + offset)
	}
	return &stubModel{offset: offset}, oob, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
