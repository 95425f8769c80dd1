package models

import "time"

// FeatureRow is a Bar enriched with computed indicators. One per symbol per
// timestamp, produced by the feature pipeline, immutable after creation.
// Every value depends only on that symbol's bars at or before Timestamp.
type FeatureRow struct {
	Symbol    string
	Timestamp time.Time
	Bar       Bar

	SMA       float64 // simple moving average of close
	EMAFast   float64
	EMASlow   float64
	ATR       float64
	RSI       float64
	GapFrac   float64 // |open - prior close| / prior close
	VolumeAvg float64
	VolRatio  float64 // volume / rolling average volume

	// EMA cloud and ATR deviation bands.
	CloudTop    float64
	CloudBottom float64
	BandUpper   float64
	BandLower   float64

	// Warm reports whether the longest lookback window was fully covered at
	// this row; detection predicates must ignore cold rows.
	Warm bool
}

// Direction of a detected setup.
type Direction string

const (
	Long  Direction = "long"
	Short Direction = "short"
)

// Signal is a detected setup occurrence. Read-only after Stage 3.
type Signal struct {
	Symbol    string             `json:"symbol"`
	Timestamp time.Time          `json:"timestamp"`
	SetupType string             `json:"setup_type"`
	Direction Direction          `json:"direction"`
	Features  map[string]float64 `json:"features"`
	EntryRef  float64            `json:"entry_ref"` // reference entry price (signal bar close)
	StopRef   float64            `json:"stop_ref"`  // reference protective stop
}
