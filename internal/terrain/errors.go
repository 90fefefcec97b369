package terrain

import (
	"errors"
	"fmt"
)

// InputError reports a request that can never succeed: a malformed sampling
// spec, a polar or out-of-range center, a missing field elevation, or an
// unknown airport identifier.
type InputError struct {
	Field string
	Err   error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// NewInputError wraps err as an InputError for the named field.
func NewInputError(field string, err error) *InputError {
	return &InputError{Field: field, Err: err}
}

// EmptyGridError is returned when there is nothing to aggregate, either
// because the grid had no points or every point resolved to nodata.
type EmptyGridError struct {
	Points int
	NoData int
}

func (e *EmptyGridError) Error() string {
	return fmt.Sprintf("empty sample grid (%d points, %d nodata)", e.Points, e.NoData)
}

// SourceUnavailableError means the elevation source cannot be opened or read.
// It is fatal for a whole run.
type SourceUnavailableError struct {
	Source string
	Err    error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("elevation source %s unavailable: %v", e.Source, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error {
	return e.Err
}

// NewSourceUnavailableError wraps err as a SourceUnavailableError.
func NewSourceUnavailableError(source string, err error) *SourceUnavailableError {
	return &SourceUnavailableError{Source: source, Err: err}
}

// NoDataError is returned under NodataFail when a grid point resolves to the
// source's nodata sentinel.
type NoDataError struct {
	Point GeoPoint
	Count int
}

func (e *NoDataError) Error() string {
	return fmt.Sprintf("%d nodata samples, first at (%.6f, %.6f)", e.Count, e.Point.Lon, e.Point.Lat)
}

// IsFatal reports whether err should abort a whole batch rather than a
// single record.
func IsFatal(err error) bool {
	var su *SourceUnavailableError
	return errors.As(err, &su)
}

// IsInputError reports whether err (or anything it wraps) is an InputError.
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}
