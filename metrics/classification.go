package metrics

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/habitatlab/sdmgo/pkg/errors"
)

// ConfusionMatrix is a 2x2 contingency table of thresholded predictions
// against binary truth.
type ConfusionMatrix struct {
	TP, FP, FN, TN int
}

// Confusion tallies the confusion matrix of continuous predictions
// thresholded at the given cutoff against binary truth labels.
func Confusion(yTrue, yPred *mat.VecDense, threshold float64) (ConfusionMatrix, error) {
	n := yTrue.Len()
	if n == 0 {
		return ConfusionMatrix{}, errors.NewValueError("Confusion", "empty vector")
	}
	if yPred.Len() != n {
		return ConfusionMatrix{}, errors.NewDimensionError("Confusion", n, yPred.Len(), 0)
	}

	var c ConfusionMatrix
	for i := 0; i < n; i++ {
		truth := yTrue.AtVec(i)
		if truth != 0 && truth != 1 {
			return ConfusionMatrix{}, errors.NewValueError("Confusion", "labels must be binary 0/1")
		}
		pred := yPred.AtVec(i) >= threshold
		switch {
		case truth == 1 && pred:
			c.TP++
		case truth == 1 && !pred:
			c.FN++
		case truth == 0 && pred:
			c.FP++
		default:
			c.TN++
		}
	}
	return c, nil
}

func (c ConfusionMatrix) total() float64 {
	return float64(c.TP + c.FP + c.FN + c.TN)
}

// Accuracy is the fraction of correctly classified rows.
func (c ConfusionMatrix) Accuracy() float64 {
	if c.total() == 0 {
		return 0
	}
	return float64(c.TP+c.TN) / c.total()
}

// Sensitivity is the true-positive rate. 0 when no positives exist.
func (c ConfusionMatrix) Sensitivity() float64 {
	if c.TP+c.FN == 0 {
		return 0
	}
	return float64(c.TP) / float64(c.TP+c.FN)
}

// Specificity is the true-negative rate. 0 when no negatives exist.
func (c ConfusionMatrix) Specificity() float64 {
	if c.TN+c.FP == 0 {
		return 0
	}
	return float64(c.TN) / float64(c.TN+c.FP)
}

// TSS is the true skill statistic: sensitivity - (1 - specificity).
func (c ConfusionMatrix) TSS() float64 {
	return c.Sensitivity() - (1 - c.Specificity())
}

// Kappa is Cohen's chance-corrected agreement. When expected agreement is
// exactly 1 the statistic is undefined and 0 is returned with a warning.
func (c ConfusionMatrix) Kappa() float64 {
	n := c.total()
	if n == 0 {
		return 0
	}
	observed := float64(c.TP+c.TN) / n
	expected := (float64(c.TP+c.FN)*float64(c.TP+c.FP) + float64(c.TN+c.FP)*float64(c.TN+c.FN)) / (n * n)
	if expected == 1 {
		errors.Warn(errors.NewUndefinedMetricWarning("kappa", "expected agreement is 1", 0))
		return 0
	}
	return (observed - expected) / (1 - expected)
}

// YuleQ is the co-occurrence association statistic (ad - bc)/(ad + bc) with
// a=TP, b=FP, c=FN, d=TN. A zero denominator (ad + bc = 0) is a defined
// edge case: the statistic is 0 with a warning, never an error. Note that
// a matrix with a = d = 0 but b, c > 0 has a nonzero denominator and yields
// -1 from the formula; only the true zero-denominator case maps to 0.
func (c ConfusionMatrix) YuleQ() float64 {
	ad := float64(c.TP) * float64(c.TN)
	bc := float64(c.FP) * float64(c.FN)
	if ad+bc == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("yule_q", "ad + bc = 0", 0))
		return 0
	}
	return (ad - bc) / (ad + bc)
}

// AUC computes the area under the ROC curve by the rank-sum method, with
// average ranks over tied prediction scores. A single-class truth vector
// makes the score undefined; 0.5 is returned together with a warning.
func AUC(yTrue, yPred *mat.VecDense) (float64, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError("AUC", "empty vector")
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError("AUC", n, yPred.Len(), 0)
	}

	nPos := 0
	for i := 0; i < n; i++ {
		switch yTrue.AtVec(i) {
		case 1:
			nPos++
		case 0:
		default:
			return 0, errors.NewValueError("AUC", "labels must be binary 0/1")
		}
	}
	nNeg := n - nPos
	if nPos == 0 || nNeg == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("auc", "single-class labels", 0.5))
		return 0.5, nil
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		return yPred.AtVec(idx[a]) < yPred.AtVec(idx[b])
	})

	// Rank sum of the positive class, averaging ranks across ties.
	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j < n && yPred.AtVec(idx[j]) == yPred.AtVec(idx[i]) {
			j++
		}
		avg := float64(i+j+1) / 2 // ranks are 1-based
		for k := i; k < j; k++ {
			ranks[idx[k]] = avg
		}
		i = j
	}

	var posRankSum float64
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == 1 {
			posRankSum += ranks[i]
		}
	}

	u := posRankSum - float64(nPos)*float64(nPos+1)/2
	return u / (float64(nPos) * float64(nNeg)), nil
}
