// Package errors provides the error and warning system used across sdmgo.
// Fatal conditions are structured error types carrying the context a caller
// needs to diagnose a failed run; recoverable conditions are warnings routed
// through a configurable handler.
package errors

import (
	"fmt"
	"log"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	Global warning handling
//
// ===========================================================================
var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		log.Printf("sdmgo-warning: %v\n", w)
	}
	// zerolog sink, set lazily to avoid an import cycle with pkg/log.
	zerologWarnFunc func(warning error)
)

// SetWarningHandler replaces the process-wide warning handler.
//
// Example:
//
//	errors.SetWarningHandler(func(w error) {
//	    // ignore warnings
//	})
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc installs a zerolog-backed warning sink.
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn emits a warning. The zerolog sink wins when configured; otherwise the
// plain handler is used.
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}

	if warningHandler != nil {
		warningHandler(w)
	}
}

// ===========================================================================
//
//	Fatal error types (abort the run before any output is written)
//
// ===========================================================================

// SchemaViolationError reports a feature column that is missing from a
// dataset or cannot be coerced to the type the schema declares for it.
type SchemaViolationError struct {
	Dataset string
	Feature string
	Reason  string
}

func (e *SchemaViolationError) Error() string {
	return fmt.Sprintf("sdmgo: schema violation in dataset %q: feature %q: %s", e.Dataset, e.Feature, e.Reason)
}

// MarshalZerologObject adds structured error context to a zerolog event.
func (e *SchemaViolationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("dataset", e.Dataset).
		Str("feature", e.Feature).
		Str("reason", e.Reason).
		Str("type", "SchemaViolationError")
}

// NewSchemaViolationError creates a SchemaViolationError with a stack trace.
func NewSchemaViolationError(dataset, feature, reason string) error {
	err := &SchemaViolationError{Dataset: dataset, Feature: feature, Reason: reason}
	return errors.WithStack(err)
}

// CRSViolationError reports a prediction grid whose coordinate reference
// system differs from the one the run requires.
type CRSViolationError struct {
	Expected string
	Got      string
}

func (e *CRSViolationError) Error() string {
	return fmt.Sprintf("sdmgo: prediction grid CRS is %s, want %s (set crs_policy: reproject to convert)", e.Got, e.Expected)
}

// MarshalZerologObject adds structured error context to a zerolog event.
func (e *CRSViolationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("expected", e.Expected).
		Str("got", e.Got).
		Str("type", "CRSViolationError")
}

// NewCRSViolationError creates a CRSViolationError with a stack trace.
func NewCRSViolationError(expected, got string) error {
	err := &CRSViolationError{Expected: expected, Got: got}
	return errors.WithStack(err)
}

// InsufficientBackgroundDataError reports a background pool too small to
// resample the requested number of pseudo-absences from.
type InsufficientBackgroundDataError struct {
	Available int
	Requested int
}

func (e *InsufficientBackgroundDataError) Error() string {
	return fmt.Sprintf("sdmgo: background pool has %d rows, cannot draw %d pseudo-absences", e.Available, e.Requested)
}

// MarshalZerologObject adds structured error context to a zerolog event.
func (e *InsufficientBackgroundDataError) MarshalZerologObject(event *zerolog.Event) {
	event.Int("available", e.Available).
		Int("requested", e.Requested).
		Str("type", "InsufficientBackgroundDataError")
}

// NewInsufficientBackgroundDataError creates an InsufficientBackgroundDataError
// with a stack trace.
func NewInsufficientBackgroundDataError(available, requested int) error {
	err := &InsufficientBackgroundDataError{Available: available, Requested: requested}
	return errors.WithStack(err)
}

// DegenerateTrainingSetError reports an iteration whose combined training
// labels carry no signal: a single class for occurrence runs, zero variance
// for cover runs.
type DegenerateTrainingSetError struct {
	Iteration int
	Reason    string
}

func (e *DegenerateTrainingSetError) Error() string {
	return fmt.Sprintf("sdmgo: iteration %d: degenerate training set: %s", e.Iteration, e.Reason)
}

// MarshalZerologObject adds structured error context to a zerolog event.
func (e *DegenerateTrainingSetError) MarshalZerologObject(event *zerolog.Event) {
	event.Int("iteration", e.Iteration).
		Str("reason", e.Reason).
		Str("type", "DegenerateTrainingSetError")
}

// NewDegenerateTrainingSetError creates a DegenerateTrainingSetError with a
// stack trace.
func NewDegenerateTrainingSetError(iteration int, reason string) error {
	err := &DegenerateTrainingSetError{Iteration: iteration, Reason: reason}
	return errors.WithStack(err)
}

// DimensionError reports an input whose shape differs from what an
// operation expects.
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns/features
}

func (e *DimensionError) Error() string {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	return fmt.Sprintf("sdmgo: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, axisName, e.Expected, e.Got)
}

// MarshalZerologObject adds structured error context to a zerolog event.
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("type", "DimensionError")
}

// NewDimensionError creates a DimensionError with a stack trace.
func NewDimensionError(op string, expected, got, axis int) error {
	err := &DimensionError{Op: op, Expected: expected, Got: got, Axis: axis}
	return errors.WithStack(err)
}

// ValueError reports an argument whose value is invalid for an operation.
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("sdmgo: %s: %s", e.Op, e.Message)
}

// NewValueError creates a ValueError with a stack trace.
func NewValueError(op, message string) error {
	err := &ValueError{Op: op, Message: message}
	return errors.WithStack(err)
}

// ===========================================================================
//
//	Warning types (logged, never fatal)
//
// ===========================================================================

// CovarianceSingularityWarning is emitted when the training covariance
// matrix cannot be formed or inverted and the extrapolation detector falls
// back to flagging nothing.
type CovarianceSingularityWarning struct {
	Rows     int
	Features int
	Reason   string
}

func (w *CovarianceSingularityWarning) Error() string {
	return fmt.Sprintf("covariance of %d rows x %d features unusable (%s); extrapolation flags disabled for this iteration", w.Rows, w.Features, w.Reason)
}

// MarshalZerologObject adds structured warning context to a zerolog event.
func (w *CovarianceSingularityWarning) MarshalZerologObject(event *zerolog.Event) {
	event.Int("rows", w.Rows).
		Int("features", w.Features).
		Str("reason", w.Reason).
		Str("type", "CovarianceSingularityWarning")
}

// NewCovarianceSingularityWarning creates a CovarianceSingularityWarning.
func NewCovarianceSingularityWarning(rows, features int, reason string) *CovarianceSingularityWarning {
	return &CovarianceSingularityWarning{Rows: rows, Features: features, Reason: reason}
}

// UndefinedMetricWarning is emitted when a metric is ill-defined for the
// observed inputs and a documented substitute value is returned instead.
type UndefinedMetricWarning struct {
	Metric    string
	Condition string
	Result    float64
}

func (w *UndefinedMetricWarning) Error() string {
	return fmt.Sprintf("'%s' is ill-defined and being set to %g due to %s", w.Metric, w.Result, w.Condition)
}

// NewUndefinedMetricWarning creates an UndefinedMetricWarning.
func NewUndefinedMetricWarning(metric, condition string, result float64) *UndefinedMetricWarning {
	return &UndefinedMetricWarning{Metric: metric, Condition: condition, Result: result}
}

// ===========================================================================
//
//	cockroachdb/errors wrappers
//
// ===========================================================================

// Is reports whether err matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As reports whether err can be assigned to target's type.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with a message.
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New creates a new error.
func New(message string) error {
	return errors.New(message)
}

// Newf creates a new formatted error.
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack attaches a stack trace to an error.
func WithStack(err error) error {
	return errors.WithStack(err)
}

// ===========================================================================
//
//	Shared error values
//
// ===========================================================================

var (
	// ErrEmptyData is returned when a dataset has no rows.
	ErrEmptyData = New("empty data")

	// ErrNotTrained is returned when prediction is requested from a model
	// that has not been trained.
	ErrNotTrained = New("model is not trained")
)
