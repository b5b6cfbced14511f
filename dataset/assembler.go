package dataset

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/habitatlab/sdmgo/pkg/errors"
)

// TrainingSet is one iteration's balanced training data: all positive rows
// first, then the bootstrap draw of background rows labeled 0. Row order is
// stable for a given (baseSeed, iteration).
type TrainingSet struct {
	X          *mat.Dense
	Y          []float64
	NPositives int
}

// NumRows returns the number of training rows.
func (ts *TrainingSet) NumRows() int { r, _ := ts.X.Dims(); return r }

// Assembler draws per-iteration training sets from a fixed positive set and
// background pool. Both tables are coerced against the schema once, up
// front, so any schema violation surfaces before the first iteration runs.
type Assembler struct {
	posX     *mat.Dense
	posY     []float64
	bgX      *mat.Dense
	ratio    float64
	baseSeed int64
}

// NewAssembler validates both tables against the schema and prepares the
// resampler. ratio is the background draw size as a multiple of the
// positive count (1 for occurrence runs, typically 2 for cover runs).
func NewAssembler(positives, background *Table, schema *Schema, ratio float64, baseSeed int64) (*Assembler, error) {
	if ratio <= 0 {
		return nil, errors.NewValueError("NewAssembler", "ratio must be positive")
	}

	posX, err := schema.SelectAndCoerce(positives)
	if err != nil {
		return nil, err
	}
	posY, err := schema.OutcomeVector(positives)
	if err != nil {
		return nil, err
	}

	nPos, _ := posX.Dims()
	draws := drawCount(nPos, ratio)
	if background.NumRows() == 0 {
		return nil, errors.NewInsufficientBackgroundDataError(0, draws)
	}
	bgX, err := schema.SelectAndCoerce(background)
	if err != nil {
		return nil, err
	}

	return &Assembler{
		posX:     posX,
		posY:     posY,
		bgX:      bgX,
		ratio:    ratio,
		baseSeed: baseSeed,
	}, nil
}

// NumPositives returns the number of positive training rows.
func (a *Assembler) NumPositives() int { r, _ := a.posX.Dims(); return r }

// Seed returns the deterministic seed used by the given iteration.
func (a *Assembler) Seed(iteration int) int64 {
	return a.baseSeed + int64(iteration)
}

// Assemble builds the training set for one iteration: the positives,
// followed by ratio*len(positives) background rows drawn with replacement
// under the iteration's seed.
func (a *Assembler) Assemble(iteration int) *TrainingSet {
	nPos, nFeat := a.posX.Dims()
	nBg, _ := a.bgX.Dims()
	draws := drawCount(nPos, a.ratio)

	seed := uint64(a.Seed(iteration))
	r := rand.New(rand.NewPCG(seed, seed))

	x := mat.NewDense(nPos+draws, nFeat, nil)
	y := make([]float64, nPos+draws)

	for i := 0; i < nPos; i++ {
		x.SetRow(i, a.posX.RawRowView(i))
		y[i] = a.posY[i]
	}
	for i := 0; i < draws; i++ {
		src := r.IntN(nBg)
		x.SetRow(nPos+i, a.bgX.RawRowView(src))
		// Background rows are pseudo-absences: outcome 0.
	}

	return &TrainingSet{X: x, Y: y, NPositives: nPos}
}

func drawCount(nPos int, ratio float64) int {
	return int(math.Round(ratio * float64(nPos)))
}
