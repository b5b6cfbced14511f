// Package pipeline orchestrates a full modeling run: N bootstrap
// iterations of assemble, train, evaluate, predict, and flag, folded into
// one aggregate suitability surface with per-row uncertainty and
// extrapolation flags.
package pipeline

import (
	"runtime"

	"github.com/habitatlab/sdmgo/forest"
	"github.com/habitatlab/sdmgo/geo"
	"github.com/habitatlab/sdmgo/outlier"
	"github.com/habitatlab/sdmgo/pkg/errors"
)

// OutcomeKind distinguishes binary occurrence runs from continuous cover
// runs. It is dispatched only in the metrics evaluator and in output column
// naming; assembly, training orchestration, and extrapolation detection are
// kind-agnostic.
type OutcomeKind int

const (
	// KindOccurrence predicts presence probability from binary labels.
	KindOccurrence OutcomeKind = iota
	// KindCover predicts a continuous percent-cover value.
	KindCover
)

func (k OutcomeKind) String() string {
	if k == KindCover {
		return "cover"
	}
	return "occurrence"
}

// ForestMode maps the outcome kind to the split criterion the ensemble
// grows with.
func (k OutcomeKind) ForestMode() forest.Mode {
	if k == KindCover {
		return forest.ModeRegression
	}
	return forest.ModeClassification
}

// ParseOutcomeKind maps a config string to an OutcomeKind.
func ParseOutcomeKind(s string) (OutcomeKind, error) {
	switch s {
	case "", "occurrence":
		return KindOccurrence, nil
	case "cover":
		return KindCover, nil
	default:
		return KindOccurrence, errors.NewValueError("ParseOutcomeKind", "unknown outcome kind "+s)
	}
}

// RunConfig is the explicit, passed-in configuration of one run. No
// process-wide state survives between runs; everything an iteration needs
// is threaded through this record.
type RunConfig struct {
	OutcomeKind   OutcomeKind
	OutcomeColumn string

	// Iterations is the ensemble size N. Default 10.
	Iterations int
	// BackgroundRatio is the background draw size as a multiple of the
	// positive count. Default 1.
	BackgroundRatio float64
	// BaseSeed is the seed iteration i derives its own seed from
	// (baseSeed + i).
	BaseSeed int64
	// ConfidenceLevel is the chi-square level of the extrapolation
	// detector. Default 0.95.
	ConfidenceLevel float64

	Hyperparameters forest.Hyperparameters

	CRSPolicy geo.Policy

	// ContinueOnIterationFailure drops an iteration whose training set is
	// degenerate instead of aborting, with the aggregate divisor adjusting
	// to the completed count. Off by default: silently changing N changes
	// the aggregate statistics.
	ContinueOnIterationFailure bool

	// KFoldSplits enables cross-validated R^2 for cover runs when >= 2.
	KFoldSplits int

	// Concurrency bounds how many iterations run at once. Iterations share
	// no mutable state, so any value up to Iterations is safe; memory is
	// the only cost. Default NumCPU.
	Concurrency int
}

func (c RunConfig) withDefaults() RunConfig {
	if c.Iterations <= 0 {
		c.Iterations = 10
	}
	if c.BackgroundRatio <= 0 {
		c.BackgroundRatio = 1
	}
	if c.ConfidenceLevel <= 0 || c.ConfidenceLevel >= 1 {
		c.ConfidenceLevel = outlier.DefaultConfidenceLevel
	}
	if c.Concurrency <= 0 {
		c.Concurrency = runtime.NumCPU()
	}
	return c
}
