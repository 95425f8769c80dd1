package models

// MetricsVector is a pure function of a trade ledger. Metrics that cannot be
// computed (no trades, zero-variance returns) are listed in Undefined and the
// corresponding fields must not be read — never a silent zero or NaN.
type MetricsVector struct {
	TotalReturn      float64 `json:"total_return"`
	AnnualizedReturn float64 `json:"annualized_return"`
	Sharpe           float64 `json:"sharpe"`
	Sortino          float64 `json:"sortino"`
	Calmar           float64 `json:"calmar"`
	Omega            float64 `json:"omega"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	WinRate          float64 `json:"win_rate"`
	ProfitFactor     float64 `json:"profit_factor"`
	Expectancy       float64 `json:"expectancy"`
	AvgWin           float64 `json:"avg_win"`
	AvgLoss          float64 `json:"avg_loss"`
	TradeCount       int     `json:"trade_count"`
	WinCount         int     `json:"win_count"`
	LossCount        int     `json:"loss_count"`

	// Insufficient is true when there were too few trades to compute
	// anything meaningful; all ratio fields are then undefined.
	Insufficient bool     `json:"insufficient_data,omitempty"`
	Undefined    []string `json:"undefined,omitempty"`
}

// Defined reports whether the named metric was computed.
func (m MetricsVector) Defined(name string) bool {
	if m.Insufficient {
		return false
	}
	for _, u := range m.Undefined {
		if u == name {
			return false
		}
	}
	return true
}

// InsufficientMetrics returns the explicit "insufficient data" vector.
func InsufficientMetrics() MetricsVector {
	return MetricsVector{Insufficient: true}
}
