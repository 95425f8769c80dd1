package optimizer

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketSweep/internal/domain/models"
	"MarketSweep/pkg/logger"
)

func newTestOptimizer(t *testing.T, workers int) *Optimizer {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "stderr"})
	require.NoError(t, err)
	return New(log, workers)
}

func smallSpace() models.ParameterSpace {
	return models.ParameterSpace{
		{Name: "sma_period", Min: 10, Max: 30, Step: 10},
		{Name: "rsi_max", Min: 40, Max: 60, Step: 10},
	}
}

// peakEval scores a candidate by proximity to sma_period=20, rsi_max=50.
func peakEval(ctx context.Context, ps models.ParameterSet) (models.MetricsVector, error) {
	d := (ps["sma_period"]-20)*(ps["sma_period"]-20) + (ps["rsi_max"]-50)*(ps["rsi_max"]-50)
	return models.MetricsVector{
		Sharpe:       10 - d/100,
		TotalReturn:  0.5,
		ProfitFactor: 2,
		TradeCount:   40,
		WinRate:      0.6,
		MaxDrawdown:  0.1,
	}, nil
}

func TestGridEnumeratesFullSpace(t *testing.T) {
	o := newTestOptimizer(t, 2)
	req := Request{
		Space:         smallSpace(),
		Objective:     models.ObjectiveSharpe,
		Method:        models.MethodGrid,
		MaxIterations: 100,
		Seed:          1,
	}
	run, err := o.Run(context.Background(), req, peakEval, nil)
	require.NoError(t, err)

	assert.Equal(t, 9, run.Iterations) // 3 x 3 grid
	assert.Len(t, run.Trail, 9)
	assert.Equal(t, 20.0, run.BestParams["sma_period"])
	assert.Equal(t, 50.0, run.BestParams["rsi_max"])
	assert.InDelta(t, 10.0, run.BestScore, 1e-9)
	assert.Empty(t, run.Skipped)
}

func TestBestScoreIsMonotonic(t *testing.T) {
	o := newTestOptimizer(t, 4)
	req := Request{
		Space:         smallSpace(),
		Objective:     models.ObjectiveSharpe,
		Method:        models.MethodRandom,
		MaxIterations: 60,
		Seed:          7,
	}

	var mu sync.Mutex
	var bests []float64
	progress := func(done, total int, best *models.TrailEntry) {
		mu.Lock()
		defer mu.Unlock()
		if best != nil {
			bests = append(bests, best.Score)
		}
	}

	run, err := o.Run(context.Background(), req, peakEval, progress)
	require.NoError(t, err)
	require.NotNil(t, run.BestParams)
	for i := 1; i < len(bests); i++ {
		assert.GreaterOrEqual(t, bests[i], bests[i-1])
	}
}

func TestRandomSeedReproducible(t *testing.T) {
	req := Request{
		Space:         smallSpace(),
		Objective:     models.ObjectiveSharpe,
		Method:        models.MethodRandom,
		MaxIterations: 40,
		Seed:          99,
	}
	a, err := newTestOptimizer(t, 1).Run(context.Background(), req, peakEval, nil)
	require.NoError(t, err)
	b, err := newTestOptimizer(t, 1).Run(context.Background(), req, peakEval, nil)
	require.NoError(t, err)

	assert.Equal(t, a.BestParams, b.BestParams)
	assert.Equal(t, a.BestScore, b.BestScore)
	assert.Equal(t, len(a.Trail)+len(a.Skipped), len(b.Trail)+len(b.Skipped))
}

func TestConstraintRejectionsAreRecorded(t *testing.T) {
	o := newTestOptimizer(t, 2)
	req := Request{
		Space:         smallSpace(),
		Objective:     models.ObjectiveSharpe,
		Constraints:   models.Constraints{MinTrades: 100},
		Method:        models.MethodGrid,
		MaxIterations: 100,
	}
	run, err := o.Run(context.Background(), req, peakEval, nil)
	require.NoError(t, err)

	assert.Empty(t, run.Trail) // every candidate trades 40 times, under the floor
	assert.Len(t, run.Skipped, 9)
	assert.Nil(t, run.BestParams)
	assert.Zero(t, run.BestScore)
	for _, s := range run.Skipped {
		assert.Contains(t, s.Reason, "trade count")
	}
}

func TestEvaluatorErrorsAreSkippedNotFatal(t *testing.T) {
	o := newTestOptimizer(t, 2)
	req := Request{
		Space:         smallSpace(),
		Objective:     models.ObjectiveSharpe,
		Method:        models.MethodGrid,
		MaxIterations: 100,
	}
	boom := errors.New("feed unavailable")
	eval := func(ctx context.Context, ps models.ParameterSet) (models.MetricsVector, error) {
		if ps["sma_period"] == 10 {
			return models.MetricsVector{}, boom
		}
		return peakEval(ctx, ps)
	}

	run, err := o.Run(context.Background(), req, eval, nil)
	require.NoError(t, err)
	assert.Len(t, run.Skipped, 3)
	assert.Len(t, run.Trail, 6)
	assert.NotNil(t, run.BestParams)
}

func TestUndefinedObjectiveIsSkipped(t *testing.T) {
	o := newTestOptimizer(t, 2)
	req := Request{
		Space:         smallSpace(),
		Objective:     models.ObjectiveSharpe,
		Method:        models.MethodGrid,
		MaxIterations: 100,
	}
	eval := func(context.Context, models.ParameterSet) (models.MetricsVector, error) {
		return models.MetricsVector{TradeCount: 5, Undefined: []string{"sharpe"}}, nil
	}

	run, err := o.Run(context.Background(), req, eval, nil)
	require.NoError(t, err)
	assert.Empty(t, run.Trail)
	assert.Len(t, run.Skipped, 9)
}

func TestAdaptiveConvergesNearPeak(t *testing.T) {
	o := newTestOptimizer(t, 4)
	req := Request{
		Space:         smallSpace(),
		Base:          models.ParameterSet{"min_vol_ratio": 0.8},
		Objective:     models.ObjectiveSharpe,
		Method:        models.MethodAdaptive,
		MaxIterations: 200,
		Seed:          5,
	}
	run, err := o.Run(context.Background(), req, peakEval, nil)
	require.NoError(t, err)

	require.NotNil(t, run.BestParams)
	// Candidates snap to the declared step grid.
	assert.Zero(t, int(run.BestParams["sma_period"])%10)
	assert.Zero(t, int(run.BestParams["rsi_max"])%10)
	assert.GreaterOrEqual(t, run.BestScore, 9.0) // at worst one grid step off the peak
	assert.Equal(t, 0.8, run.BestParams["min_vol_ratio"]) // base params survive
}

func TestInvalidRequests(t *testing.T) {
	o := newTestOptimizer(t, 2)
	ctx := context.Background()

	_, err := o.Run(ctx, Request{Space: smallSpace(), Method: models.MethodGrid}, peakEval, nil)
	assert.True(t, models.IsInvalidParameter(err), "zero iteration budget")

	_, err = o.Run(ctx, Request{Method: models.MethodGrid, MaxIterations: 10}, peakEval, nil)
	assert.True(t, models.IsInvalidParameter(err), "empty space")

	bad := models.ParameterSpace{{Name: "x", Min: 10, Max: 5, Step: 1}}
	_, err = o.Run(ctx, Request{Space: bad, Method: models.MethodGrid, MaxIterations: 10}, peakEval, nil)
	assert.True(t, models.IsInvalidParameter(err), "inverted range")
}

func TestCancelledRunReturnsPartialTrail(t *testing.T) {
	o := newTestOptimizer(t, 1)
	ctx, cancel := context.WithCancel(context.Background())

	var calls int
	eval := func(ctx context.Context, ps models.ParameterSet) (models.MetricsVector, error) {
		calls++
		if calls >= 3 {
			cancel()
		}
		return peakEval(ctx, ps)
	}

	req := Request{
		Space:         smallSpace(),
		Objective:     models.ObjectiveSharpe,
		Method:        models.MethodGrid,
		MaxIterations: 100,
	}
	run, err := o.Run(ctx, req, eval, nil)
	require.NoError(t, err)
	assert.True(t, run.Cancelled)
	assert.NotEmpty(t, run.Trail)
	assert.Less(t, run.Iterations, 9)
}

func TestCompositeObjective(t *testing.T) {
	m := models.MetricsVector{Sharpe: 2, ProfitFactor: 3, TotalReturn: 0.5}
	score, ok := scoreOf(models.ObjectiveComposite, m)
	require.True(t, ok)
	assert.InDelta(t, 0.5*2+0.3*3+0.2*0.5, score, 1e-9)

	_, ok = scoreOf(models.ObjectiveComposite, models.MetricsVector{Undefined: []string{"sharpe"}})
	assert.False(t, ok)
}
