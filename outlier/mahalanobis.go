// Package outlier flags prediction locations that lie outside the
// statistical envelope of the training data, using Mahalanobis distance
// against the training feature distribution.
package outlier

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/habitatlab/sdmgo/core/parallel"
	"github.com/habitatlab/sdmgo/pkg/errors"
)

// DefaultConfidenceLevel is the chi-square confidence level used when the
// caller does not configure one.
const DefaultConfidenceLevel = 0.95

// parallelRowThreshold is the grid size below which the per-row distance
// loop is not worth fanning out.
const parallelRowThreshold = 1024

// Detector flags extrapolation by comparing each prediction row's
// Mahalanobis distance from the training mean against the chi-square
// quantile at ConfidenceLevel with one degree of freedom per feature.
type Detector struct {
	ConfidenceLevel float64
}

// NewDetector returns a Detector at the given confidence level, or the
// default when level is not in (0, 1).
func NewDetector(level float64) *Detector {
	if level <= 0 || level >= 1 {
		level = DefaultConfidenceLevel
	}
	return &Detector{ConfidenceLevel: level}
}

// FlagExtrapolation returns one flag per prediction row, true when the row
// is outside the training envelope.
//
// When the training covariance cannot be formed or inverted (fewer rows than
// features, or a factorization failure) the detector degrades gracefully:
// it emits a CovarianceSingularityWarning and returns all-false flags, so a
// run never dies on collinear or constant features.
func (d *Detector) FlagExtrapolation(train, predict *mat.Dense) []bool {
	nTrain, p := train.Dims()
	nPred, pPred := predict.Dims()
	flags := make([]bool, nPred)

	if pPred != p {
		errors.Warn(errors.NewCovarianceSingularityWarning(nTrain, p, "train/predict feature count mismatch"))
		return flags
	}
	if nTrain <= p {
		errors.Warn(errors.NewCovarianceSingularityWarning(nTrain, p, "fewer training rows than features"))
		return flags
	}

	mean := make([]float64, p)
	for j := 0; j < p; j++ {
		mean[j] = stat.Mean(mat.Col(nil, j, train), nil)
	}

	cov := mat.NewSymDense(p, nil)
	stat.CovarianceMatrix(cov, train, nil)

	// A plain inverse blows up on collinear or constant features, so the
	// covariance is inverted through its SVD pseudo-inverse.
	covInv, ok := pseudoInverse(cov)
	if !ok {
		errors.Warn(errors.NewCovarianceSingularityWarning(nTrain, p, "SVD factorization failed"))
		return flags
	}

	chi := distuv.ChiSquared{K: float64(p)}
	threshold := math.Sqrt(chi.Quantile(d.ConfidenceLevel))

	parallel.Parallelize(nPred, parallelRowThreshold, func(start, end int) {
		diff := make([]float64, p)
		tmp := make([]float64, p)
		for i := start; i < end; i++ {
			for j := 0; j < p; j++ {
				diff[j] = predict.At(i, j) - mean[j]
			}
			flags[i] = mahalanobis(diff, tmp, covInv) > threshold
		}
	})

	return flags
}

// mahalanobis computes sqrt(diff^T * covInv * diff), clamping the tiny
// negative quadratic forms a pseudo-inverse can produce.
func mahalanobis(diff, tmp []float64, covInv *mat.Dense) float64 {
	p := len(diff)
	for j := 0; j < p; j++ {
		var s float64
		for k := 0; k < p; k++ {
			s += covInv.At(j, k) * diff[k]
		}
		tmp[j] = s
	}
	var d2 float64
	for j := 0; j < p; j++ {
		d2 += diff[j] * tmp[j]
	}
	if d2 < 0 {
		d2 = 0
	}
	return math.Sqrt(d2)
}

// pseudoInverse computes the Moore-Penrose pseudo-inverse of a symmetric
// matrix, zeroing singular values below a relative tolerance.
func pseudoInverse(a *mat.SymDense) (*mat.Dense, bool) {
	p := a.SymmetricDim()

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, false
	}

	values := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	maxSV := 0.0
	for _, s := range values {
		if s > maxSV {
			maxSV = s
		}
	}
	tol := float64(p) * maxSV * 1e-15

	// V * diag(1/s) * U^T with small singular values dropped.
	dInv := mat.NewDense(p, p, nil)
	for j, s := range values {
		if s > tol {
			dInv.Set(j, j, 1/s)
		}
	}

	var tmp, pinv mat.Dense
	tmp.Mul(&v, dInv)
	pinv.Mul(&tmp, u.T())
	return &pinv, true
}
