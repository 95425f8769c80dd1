package models

import (
	"errors"
	"fmt"
)

// DataFetchError reports symbols that failed to fetch. It is non-fatal: the
// scan proceeds with the rest of the universe and the exclusions travel in
// the response.
type DataFetchError struct {
	Failed []FailedSymbol
}

func (e *DataFetchError) Error() string {
	return fmt.Sprintf("data fetch: %d symbols failed", len(e.Failed))
}

// InvalidParameterError marks a parameter outside its declared range or one
// that produces an unexecutable run. Fatal for the run, never clamped.
type InvalidParameterError struct {
	Name   string
	Value  float64
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %q=%v: %s", e.Name, e.Value, e.Reason)
}

// InsufficientDataError marks results that cannot be computed meaningfully
// (too few bars for a lookback, too few OOS trades). Surfaced explicitly,
// never as a fabricated zero metric.
type InsufficientDataError struct {
	What string
	Need int
	Have int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: %s (need %d, have %d)", e.What, e.Need, e.Have)
}

// ErrUnknownSetup is returned when a scan names a setup type that is not
// registered.
var ErrUnknownSetup = errors.New("unknown setup type")

// ErrResultNotFound is returned when a backtest_result_ref does not resolve.
var ErrResultNotFound = errors.New("backtest result not found")

// IsDataFetch reports whether err is a DataFetchError.
func IsDataFetch(err error) bool {
	var fe *DataFetchError
	return errors.As(err, &fe)
}

// IsInsufficientData reports whether err is an InsufficientDataError.
func IsInsufficientData(err error) bool {
	var ie *InsufficientDataError
	return errors.As(err, &ie)
}

// IsInvalidParameter reports whether err is an InvalidParameterError.
func IsInvalidParameter(err error) bool {
	var pe *InvalidParameterError
	return errors.As(err, &pe)
}
