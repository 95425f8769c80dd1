package models

import "time"

// ExitReason explains why a position was closed.
type ExitReason string

const (
	ExitStop     ExitReason = "stop"
	ExitTarget   ExitReason = "target"
	ExitTrailing ExitReason = "trailing"
	ExitTime     ExitReason = "time"
	ExitEndOfRun ExitReason = "end_of_data"
)

// Trade is the realized outcome of acting on a Signal. Immutable once the
// backtest run completes.
type Trade struct {
	Symbol    string     `json:"symbol"`
	SetupType string     `json:"setup_type"`
	Direction Direction  `json:"direction"`
	EntryTime time.Time  `json:"entry_time"`
	EntryPx   float64    `json:"entry_price"`
	ExitTime  time.Time  `json:"exit_time"`
	ExitPx    float64    `json:"exit_price"`
	StopPx    float64    `json:"stop_price"`
	Quantity  float64    `json:"quantity"`
	PnL       float64    `json:"pnl"`        // absolute P&L per unit notional
	ReturnPct float64    `json:"return_pct"` // fractional return on entry price
	HoldBars  int        `json:"hold_bars"`
	Reason    ExitReason `json:"exit_reason"`
}

// Win reports whether the trade closed profitably.
func (t Trade) Win() bool { return t.PnL > 0 }

// ExecutionRules declares how signals become simulated orders.
type ExecutionRules struct {
	Entry            string  `json:"entry" default:"market" validate:"oneof=market limit"`
	LimitOffsetFrac  float64 `json:"limit_offset_frac" validate:"gte=0,lte=0.2"` // limit below (long) / above (short) signal close
	StopATRMult      float64 `json:"stop_atr_mult" default:"2" validate:"gt=0,lte=20"`
	TakeProfitR      float64 `json:"take_profit_r" validate:"gte=0,lte=50"` // 0 disables
	TrailingAfterR   float64 `json:"trailing_after_r" validate:"gte=0,lte=50"`
	TrailingATRMult  float64 `json:"trailing_atr_mult" validate:"gte=0,lte=20"`
	MaxHoldBars      int     `json:"max_hold_bars" validate:"gte=0,lte=10000"` // 0 disables the time exit
	Pyramiding       bool    `json:"pyramiding"`
	MaxPyramids      int     `json:"max_pyramids" default:"2" validate:"gte=1,lte=10"`
	EntryTimeoutBars int     `json:"entry_timeout_bars" default:"3" validate:"gte=1,lte=100"`
}

// BacktestResult is the unit of analysis: the trade ledger of one run plus
// the covering range and parameter set that produced it.
type BacktestResult struct {
	Ref       string         `json:"ref"`
	Trades    []Trade        `json:"trades"`
	Range     DateRange      `json:"date_range"`
	Params    ParameterSet   `json:"parameters"`
	SetupType string         `json:"setup_type"`
	Rules     ExecutionRules `json:"execution_rules"`
	CreatedAt time.Time      `json:"created_at"`
}
