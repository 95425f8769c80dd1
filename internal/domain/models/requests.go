package models

// Requests for the engine HTTP endpoints. Defined in domain for consistency
// and reuse by the Kafka request intake.

// ScanRequest asks for one scan of a universe over a date range.
type ScanRequest struct {
	Universe   []string     `json:"universe"` // empty or ["ALL"] means the full configured universe
	DateRange  DateRange    `json:"date_range" validate:"required"`
	SetupType  string       `json:"setup_type" validate:"required"`
	Parameters ParameterSet `json:"parameters"`
}

// ScanResponse carries merged signals plus the fetch exclusions.
type ScanResponse struct {
	Signals        []Signal       `json:"signals"`
	SymbolsScanned int            `json:"symbols_scanned"`
	FailedSymbols  []FailedSymbol `json:"failed_symbols,omitempty"`
	Status         string         `json:"status"` // ok | partial | cancelled
}

// BacktestRequest replays signals (inline or produced by an embedded scan
// request) under a rule set.
type BacktestRequest struct {
	Scan      *ScanRequest   `json:"scan,omitempty"`
	Signals   []Signal       `json:"signals,omitempty"`
	Rules     ExecutionRules `json:"execution_rules"`
	DateRange DateRange      `json:"date_range" validate:"required"`
}

// BacktestResponse returns the ledger, its metrics, and a reference usable by
// the validate/montecarlo endpoints.
type BacktestResponse struct {
	ResultRef string        `json:"result_ref"`
	Trades    []Trade       `json:"trades"`
	Metrics   MetricsVector `json:"metrics"`
	Scan      *ScanResponse `json:"scan,omitempty"`
	Status    string        `json:"status"`
}

// ValidateRequest splits a stored result into IS/OOS windows.
type ValidateRequest struct {
	ResultRef      string    `json:"result_ref" validate:"required"`
	InSample       DateRange `json:"in_sample_range" validate:"required"`
	OutOfSample    DateRange `json:"out_of_sample_range" validate:"required"`
	MinOOSTrades   int       `json:"min_oos_trades" default:"10" validate:"gte=1,lte=100000"`
}

// Degradation is one per-metric IS→OOS decay insight.
type Degradation struct {
	Metric   string  `json:"metric"`
	InSample float64 `json:"in_sample"`
	OutOf    float64 `json:"out_of_sample"`
	Decay    float64 `json:"decay"` // clipped to >= 0
}

// ValidateResponse is the IS/OOS verdict.
type ValidateResponse struct {
	OverfittingScore float64       `json:"overfitting_score"`
	Overfit          bool          `json:"overfit"`
	InSample         MetricsVector `json:"in_sample"`
	OutOfSample      MetricsVector `json:"out_of_sample"`
	Degradations     []Degradation `json:"degradations"`
}

// MonteCarloRequest resamples a stored result's trade sequence.
type MonteCarloRequest struct {
	ResultRef       string  `json:"result_ref" validate:"required"`
	Simulations     int     `json:"simulations" default:"1000" validate:"gte=10,lte=100000"`
	Method          string  `json:"method" default:"shuffle" validate:"oneof=shuffle resample bootstrap"`
	Seed            int64   `json:"seed"`
	ConfidenceLevel float64 `json:"confidence_level" default:"0.95" validate:"gt=0.5,lt=1"`
	RuinDrawdown    float64 `json:"ruin_drawdown_threshold" default:"0.5" validate:"gt=0,lte=1"`
}

// MonteCarloResponse summarizes the simulated outcome distribution.
type MonteCarloResponse struct {
	Simulations  int           `json:"simulations"`
	Method       string        `json:"method"`
	Mean         MetricsVector `json:"mean"`
	Median       MetricsVector `json:"median"`
	P5           MetricsVector `json:"p5"`
	P95          MetricsVector `json:"p95"`
	ReturnCILow  float64       `json:"return_ci_low"`
	ReturnCIHigh float64       `json:"return_ci_high"`
	Confidence   float64       `json:"confidence_level"`
	ProbProfit   float64       `json:"probability_of_profit"`
	RiskOfRuin   float64       `json:"risk_of_ruin"`
}

// OptimizeRequest searches a parameter space around a base scan/backtest
// configuration.
type OptimizeRequest struct {
	Scan          ScanRequest    `json:"scan" validate:"required"`
	Rules         ExecutionRules `json:"execution_rules"`
	Ranges        ParameterSpace `json:"parameter_ranges" validate:"required,min=1,dive"`
	Objective     string         `json:"objective" default:"sharpe" validate:"oneof=sharpe profit_factor return composite"`
	Constraints   Constraints    `json:"constraints"`
	Method        string         `json:"method" default:"grid" validate:"oneof=grid random adaptive"`
	MaxIterations int            `json:"max_iterations" default:"100" validate:"gte=1,lte=100000"`
	Seed          int64          `json:"seed"`
}

// OptimizeResponse is the OptimizationRun plus transport status.
type OptimizeResponse struct {
	OptimizationRun
	Status string `json:"status"`
}
