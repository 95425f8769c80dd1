package optimizer

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"MarketSweep/internal/domain/models"
	"MarketSweep/pkg/logger"
)

// Evaluator runs one candidate parameter set end to end and returns its
// metrics. Evaluations must be independent; the optimizer calls them from a
// worker pool.
type Evaluator func(ctx context.Context, ps models.ParameterSet) (models.MetricsVector, error)

// ProgressFn is invoked after every evaluated batch.
type ProgressFn func(done, total int, best *models.TrailEntry)

// Request describes one search.
type Request struct {
	Space         models.ParameterSpace
	Base          models.ParameterSet
	Objective     string
	Constraints   models.Constraints
	Method        string
	MaxIterations int
	Seed          int64
}

// Optimizer searches a declared parameter space for the best-scoring
// candidate. Candidates are generated in a deterministic order per seed,
// evaluated concurrently in batches, and folded back in generation order so
// the trail and the best-so-far curve are reproducible.
type Optimizer struct {
	log     *logger.Logger
	workers int
}

func New(log *logger.Logger, workers int) *Optimizer {
	if workers <= 0 {
		workers = 4
	}
	return &Optimizer{log: log, workers: workers}
}

// Run executes the search. The best candidate only ever improves; a batch
// whose best does not beat the incumbent leaves it untouched. The search
// stops early once the best score has improved by less than one percent over
// the trailing ten percent of the iteration budget.
func (o *Optimizer) Run(ctx context.Context, req Request, eval Evaluator, progress ProgressFn) (*models.OptimizationRun, error) {
	if req.MaxIterations <= 0 {
		return nil, &models.InvalidParameterError{Name: "max_iterations", Value: float64(req.MaxIterations), Reason: "must be positive"}
	}
	if len(req.Space) == 0 {
		return nil, &models.InvalidParameterError{Name: "parameter_ranges", Reason: "at least one range required"}
	}
	for _, r := range req.Space {
		if !r.Bool && r.Max < r.Min {
			return nil, &models.InvalidParameterError{Name: r.Name, Reason: fmt.Sprintf("range max %v < min %v", r.Max, r.Min)}
		}
	}

	seed := req.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	gen := newGenerator(req, rand.New(rand.NewSource(seed)))

	run := &models.OptimizationRun{
		Objective: req.Objective,
		Method:    req.Method,
		BestScore: math.Inf(-1),
	}
	window := req.MaxIterations / 10
	if window < 10 {
		window = 10
	}
	var scoreAtWindowStart float64
	windowStart := 0

	seen := make(map[uint64]struct{})
	for run.Iterations < req.MaxIterations {
		if err := ctx.Err(); err != nil {
			run.Cancelled = true
			return run, nil
		}

		batch := o.nextBatch(gen, seen, req.MaxIterations-run.Iterations, run)
		if len(batch) == 0 {
			break // space exhausted
		}

		entries := o.evaluateBatch(ctx, batch, eval)
		for _, ev := range entries {
			run.Iterations++
			if ev.err != nil {
				if ctx.Err() != nil {
					run.Cancelled = true
					return run, nil
				}
				run.Skipped = append(run.Skipped, models.SkippedCandidate{Params: ev.params, Reason: ev.err.Error()})
				continue
			}
			if reason := violates(req.Constraints, ev.metrics); reason != "" {
				run.Skipped = append(run.Skipped, models.SkippedCandidate{Params: ev.params, Reason: reason})
				continue
			}
			score, ok := scoreOf(req.Objective, ev.metrics)
			if !ok {
				run.Skipped = append(run.Skipped, models.SkippedCandidate{Params: ev.params, Reason: "objective undefined for this ledger"})
				continue
			}
			entry := models.TrailEntry{Params: ev.params, Metrics: ev.metrics, Score: score}
			run.Trail = append(run.Trail, entry)
			if score > run.BestScore {
				run.BestScore = score
				run.BestParams = ev.params
				run.Best = ev.metrics
				gen.observeBest(ev.params)
			}
		}

		if progress != nil {
			var best *models.TrailEntry
			if run.BestParams != nil {
				best = &models.TrailEntry{Params: run.BestParams, Metrics: run.Best, Score: run.BestScore}
			}
			progress(run.Iterations, req.MaxIterations, best)
		}

		if run.Iterations-windowStart >= window {
			if run.BestParams != nil && !improved(scoreAtWindowStart, run.BestScore) && windowStart > 0 {
				run.Converged = true
				break
			}
			windowStart = run.Iterations
			scoreAtWindowStart = run.BestScore
		}
	}

	if run.BestParams == nil {
		run.BestScore = 0
	}
	o.log.Info("optimization finished",
		logger.String("method", req.Method),
		logger.String("objective", req.Objective),
		logger.Int("iterations", run.Iterations),
		logger.Int("skipped", len(run.Skipped)),
		logger.Bool("converged", run.Converged))
	return run, nil
}

func improved(before, after float64) bool {
	if math.IsInf(before, -1) {
		return true
	}
	base := math.Abs(before)
	if base < 1e-9 {
		base = 1e-9
	}
	return (after-before)/base >= 0.01
}

func (o *Optimizer) nextBatch(gen *generator, seen map[uint64]struct{}, remaining int, run *models.OptimizationRun) []models.ParameterSet {
	size := o.workers
	if size > remaining {
		size = remaining
	}
	var batch []models.ParameterSet
	for len(batch) < size && remaining > 0 {
		ps, ok := gen.next()
		if !ok {
			break
		}
		h := ps.Hash()
		if _, dup := seen[h]; dup {
			if gen.exhaustive {
				continue
			}
			// random/adaptive may legitimately revisit; a dup still spends
			// budget so a saturated space cannot loop forever
			run.Iterations++
			remaining--
			run.Skipped = append(run.Skipped, models.SkippedCandidate{Params: ps, Reason: "duplicate candidate"})
			continue
		}
		seen[h] = struct{}{}
		batch = append(batch, ps)
		remaining--
	}
	return batch
}

type evaluation struct {
	params  models.ParameterSet
	metrics models.MetricsVector
	err     error
}

func (o *Optimizer) evaluateBatch(ctx context.Context, batch []models.ParameterSet, eval Evaluator) []evaluation {
	out := make([]evaluation, len(batch))
	var wg sync.WaitGroup
	for i, ps := range batch {
		wg.Add(1)
		go func(i int, ps models.ParameterSet) {
			defer wg.Done()
			m, err := eval(ctx, ps)
			out[i] = evaluation{params: ps, metrics: m, err: err}
		}(i, ps)
	}
	wg.Wait()
	return out
}

func violates(c models.Constraints, m models.MetricsVector) string {
	if m.Insufficient {
		return "no trades produced"
	}
	if c.MinTrades > 0 && m.TradeCount < c.MinTrades {
		return fmt.Sprintf("trade count %d below minimum %d", m.TradeCount, c.MinTrades)
	}
	if c.MaxDrawdown > 0 && m.MaxDrawdown > c.MaxDrawdown {
		return fmt.Sprintf("max drawdown %.4f above limit %.4f", m.MaxDrawdown, c.MaxDrawdown)
	}
	if c.MinWinRate > 0 && m.WinRate < c.MinWinRate {
		return fmt.Sprintf("win rate %.4f below minimum %.4f", m.WinRate, c.MinWinRate)
	}
	return ""
}

func scoreOf(objective string, m models.MetricsVector) (float64, bool) {
	switch objective {
	case models.ObjectiveProfitFactor:
		return m.ProfitFactor, m.Defined("profit_factor")
	case models.ObjectiveReturn:
		return m.TotalReturn, m.Defined("total_return")
	case models.ObjectiveComposite:
		if !m.Defined("sharpe") || !m.Defined("profit_factor") {
			return 0, false
		}
		return 0.5*m.Sharpe + 0.3*m.ProfitFactor + 0.2*m.TotalReturn, true
	default: // sharpe
		return m.Sharpe, m.Defined("sharpe")
	}
}
