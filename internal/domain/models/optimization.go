package models

// Objective names accepted by the optimizer.
const (
	ObjectiveSharpe       = "sharpe"
	ObjectiveProfitFactor = "profit_factor"
	ObjectiveReturn       = "return"
	ObjectiveComposite    = "composite"
)

// Search methods.
const (
	MethodGrid     = "grid"
	MethodRandom   = "random"
	MethodAdaptive = "adaptive"
)

// Constraints are hard filters on candidate results. Zero values disable a
// constraint.
type Constraints struct {
	MaxDrawdown float64 `json:"max_drawdown" validate:"gte=0,lte=1"`
	MinTrades   int     `json:"min_trades" validate:"gte=0"`
	MinWinRate  float64 `json:"min_win_rate" validate:"gte=0,lte=1"`
}

// TrailEntry is one evaluated candidate.
type TrailEntry struct {
	Params  ParameterSet  `json:"parameters"`
	Metrics MetricsVector `json:"metrics"`
	Score   float64       `json:"score"`
}

// SkippedCandidate records a candidate rejected by a hard constraint.
type SkippedCandidate struct {
	Params ParameterSet `json:"parameters"`
	Reason string       `json:"reason"`
}

// OptimizationRun is the full record of one search: the trail in evaluation
// order, constraint rejections, and the best candidate found.
type OptimizationRun struct {
	Objective  string             `json:"objective"`
	Method     string             `json:"method"`
	BestParams ParameterSet       `json:"best_parameters"`
	BestScore  float64            `json:"best_score"`
	Best       MetricsVector      `json:"best_metrics"`
	Trail      []TrailEntry       `json:"trail"`
	Skipped    []SkippedCandidate `json:"skipped"`
	Iterations int                `json:"iterations_run"`
	Converged  bool               `json:"converged"`
	Cancelled  bool               `json:"cancelled,omitempty"`
}
