package outlier

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// gaussianCloud draws n rows of p loosely correlated standard-normal
// features under a fixed seed.
func gaussianCloud(n, p int, seed uint64) *mat.Dense {
	r := rand.New(rand.NewPCG(seed, seed))
	x := mat.NewDense(n, p, nil)
	for i := 0; i < n; i++ {
		base := r.NormFloat64()
		for j := 0; j < p; j++ {
			x.Set(i, j, base*0.3+r.NormFloat64())
		}
	}
	return x
}

func TestFlagExtrapolationObviousOutlier(t *testing.T) {
	train := gaussianCloud(500, 3, 11)

	predict := mat.NewDense(2, 3, []float64{
		0, 0, 0, // at the center of the cloud
		50, -50, 50, // far outside it
	})

	flags := NewDetector(0.95).FlagExtrapolation(train, predict)
	require.Len(t, flags, 2)
	assert.False(t, flags[0], "center of the training cloud must not be flagged")
	assert.True(t, flags[1], "a point 50 sigma out must be flagged")
}

func TestFlagExtrapolationFalsePositiveRate(t *testing.T) {
	train := gaussianCloud(2000, 2, 3)
	predict := gaussianCloud(2000, 2, 4)

	flags := NewDetector(0.95).FlagExtrapolation(train, predict)

	flagged := 0
	for _, f := range flags {
		if f {
			flagged++
		}
	}
	// Same-distribution points should be flagged at roughly 1-confidence.
	rate := float64(flagged) / float64(len(flags))
	assert.Less(t, rate, 0.15, "flag rate %v too high for in-distribution points", rate)
}

func TestFlagExtrapolationDegradesGracefully(t *testing.T) {
	// Fewer training rows than features: covariance is unusable and the
	// detector must return all-false flags of the right length.
	train := mat.NewDense(2, 4, []float64{
		1, 2, 3, 4,
		5, 6, 7, 8,
	})
	predict := mat.NewDense(3, 4, []float64{
		1, 2, 3, 4,
		100, 100, 100, 100,
		-9, 9, -9, 9,
	})

	flags := NewDetector(0.95).FlagExtrapolation(train, predict)
	require.Len(t, flags, 3)
	for i, f := range flags {
		assert.False(t, f, "row %d", i)
	}
}

func TestFlagExtrapolationConstantFeature(t *testing.T) {
	// A constant column makes the covariance singular; the pseudo-inverse
	// must still produce usable distances instead of failing.
	n := 200
	train := mat.NewDense(n, 2, nil)
	r := rand.New(rand.NewPCG(9, 9))
	for i := 0; i < n; i++ {
		train.Set(i, 0, r.NormFloat64())
		train.Set(i, 1, 7.0)
	}

	predict := mat.NewDense(2, 2, []float64{
		0, 7,
		40, 7,
	})

	flags := NewDetector(0.95).FlagExtrapolation(train, predict)
	require.Len(t, flags, 2)
	assert.False(t, flags[0])
	assert.True(t, flags[1])
}

func TestNewDetectorDefaultLevel(t *testing.T) {
	assert.Equal(t, DefaultConfidenceLevel, NewDetector(0).ConfidenceLevel)
	assert.Equal(t, DefaultConfidenceLevel, NewDetector(1.5).ConfidenceLevel)
	assert.Equal(t, 0.99, NewDetector(0.99).ConfidenceLevel)
}
