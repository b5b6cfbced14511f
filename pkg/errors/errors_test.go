package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaViolationError(t *testing.T) {
	err := NewSchemaViolationError("grid", "elevation", "column missing")
	require.Error(t, err)

	var sv *SchemaViolationError
	require.True(t, As(err, &sv))
	assert.Equal(t, "grid", sv.Dataset)
	assert.Equal(t, "elevation", sv.Feature)
	assert.Contains(t, err.Error(), "schema violation")
}

func TestInsufficientBackgroundDataError(t *testing.T) {
	err := NewInsufficientBackgroundDataError(0, 50)

	var ib *InsufficientBackgroundDataError
	require.True(t, As(err, &ib))
	assert.Equal(t, 0, ib.Available)
	assert.Equal(t, 50, ib.Requested)
}

func TestDegenerateTrainingSetError(t *testing.T) {
	err := NewDegenerateTrainingSetError(3, "single outcome class")

	var dg *DegenerateTrainingSetError
	require.True(t, As(err, &dg))
	assert.Equal(t, 3, dg.Iteration)
	assert.Contains(t, err.Error(), "iteration 3")
}

func TestCRSViolationError(t *testing.T) {
	err := NewCRSViolationError("EPSG:4326", "EPSG:3857")

	var crs *CRSViolationError
	require.True(t, As(err, &crs))
	assert.Equal(t, "EPSG:4326", crs.Expected)
	assert.Equal(t, "EPSG:3857", crs.Got)
}

func TestWarnUsesInstalledHandler(t *testing.T) {
	var captured error
	SetWarningHandler(func(w error) { captured = w })
	t.Cleanup(func() { SetWarningHandler(nil) })

	w := NewCovarianceSingularityWarning(3, 5, "fewer rows than features")
	Warn(w)

	require.NotNil(t, captured)
	assert.Contains(t, captured.Error(), "extrapolation flags disabled")
}

func TestWrapPreservesType(t *testing.T) {
	base := NewSchemaViolationError("training", "ndvi", "not numeric")
	wrapped := Wrap(base, "validating inputs")

	var sv *SchemaViolationError
	assert.True(t, As(wrapped, &sv))
}
