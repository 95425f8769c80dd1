package models

import "time"

// Bar is one OHLCV observation for a symbol. Immutable once fetched.
type Bar struct {
	Symbol    string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// DateRange is an inclusive [Start, End] window over daily bars.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the range (inclusive).
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// Years returns the range length in calendar years, never below a small floor
// so annualization does not blow up on short windows.
func (r DateRange) Years() float64 {
	y := r.End.Sub(r.Start).Hours() / (24 * 365.25)
	if y < 1.0/365.25 {
		y = 1.0 / 365.25
	}
	return y
}

// Valid reports whether Start <= End and both are set.
func (r DateRange) Valid() bool {
	return !r.Start.IsZero() && !r.End.IsZero() && !r.Start.After(r.End)
}

// FailedSymbol records one symbol excluded from a fetch with the reason.
type FailedSymbol struct {
	Symbol string `json:"symbol"`
	Reason string `json:"reason"`
}

// FetchResult is the outcome of one grouped fetch: bars per symbol plus the
// symbols that could not be retrieved. Partial failure is not an error.
type FetchResult struct {
	Bars   map[string][]Bar
	Failed []FailedSymbol
}
