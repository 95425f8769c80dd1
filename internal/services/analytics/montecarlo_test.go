package analytics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketSweep/internal/domain/models"
)

func mcResult(returns []float64) *models.BacktestResult {
	trades := make([]models.Trade, len(returns))
	for i, r := range returns {
		trades[i] = mkTrade(i, r)
	}
	return &models.BacktestResult{
		Ref:    "mc-ref",
		Trades: trades,
		Range:  yearRange(),
	}
}

func mcRequest(method string) models.MonteCarloRequest {
	return models.MonteCarloRequest{
		ResultRef:       "mc-ref",
		Simulations:     200,
		Method:          method,
		Seed:            42,
		ConfidenceLevel: 0.9,
		RuinDrawdown:    0.5,
	}
}

func TestSimulateTooFewTrades(t *testing.T) {
	var mc MonteCarlo
	_, err := mc.Simulate(context.Background(), mcResult([]float64{0.02}), mcRequest(MCShuffle))
	require.Error(t, err)
	assert.True(t, models.IsInsufficientData(err))
}

func TestSimulateSeedReproducible(t *testing.T) {
	var mc MonteCarlo
	res := mcResult(variedReturns(20, 0.02))

	a, err := mc.Simulate(context.Background(), res, mcRequest(MCResample))
	require.NoError(t, err)
	b, err := mc.Simulate(context.Background(), res, mcRequest(MCResample))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSimulateShufflePreservesTotalReturn(t *testing.T) {
	// Shuffling reorders the same trades, so the compounded total return is
	// identical in every simulation.
	var mc MonteCarlo
	res := mcResult(variedReturns(20, 0.02))

	resp, err := mc.Simulate(context.Background(), res, mcRequest(MCShuffle))
	require.NoError(t, err)
	base := Compute(res.Trades, res.Range)
	assert.InDelta(t, base.TotalReturn, resp.Mean.TotalReturn, 1e-9)
	assert.InDelta(t, base.TotalReturn, resp.P5.TotalReturn, 1e-9)
	assert.InDelta(t, base.TotalReturn, resp.P95.TotalReturn, 1e-9)
	assert.InDelta(t, resp.ReturnCILow, resp.ReturnCIHigh, 1e-9)
}

func TestSimulateProfitableLedger(t *testing.T) {
	var mc MonteCarlo
	resp, err := mc.Simulate(context.Background(), mcResult(variedReturns(30, 0.02)), mcRequest(MCShuffle))
	require.NoError(t, err)

	assert.Equal(t, 200, resp.Simulations)
	assert.InDelta(t, 1.0, resp.ProbProfit, 1e-9)
	assert.Zero(t, resp.RiskOfRuin)
	assert.LessOrEqual(t, resp.P5.TotalReturn, resp.P95.TotalReturn)
	assert.LessOrEqual(t, resp.ReturnCILow, resp.ReturnCIHigh)
}

func TestSimulateResampleSpreadsOutcomes(t *testing.T) {
	var mc MonteCarlo
	resp, err := mc.Simulate(context.Background(), mcResult(variedReturns(30, 0.02)), mcRequest(MCResample))
	require.NoError(t, err)
	// Resampling with replacement produces a genuine distribution.
	assert.Less(t, resp.P5.TotalReturn, resp.P95.TotalReturn)
	assert.Less(t, resp.ReturnCILow, resp.ReturnCIHigh)
}

func TestSimulateBootstrapRuns(t *testing.T) {
	var mc MonteCarlo
	resp, err := mc.Simulate(context.Background(), mcResult(variedReturns(30, 0.02)), mcRequest(MCBootstrap))
	require.NoError(t, err)
	assert.Equal(t, MCBootstrap, resp.Method)
	assert.Equal(t, 30, resp.Mean.TradeCount)
}

func TestSimulateCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var mc MonteCarlo
	_, err := mc.Simulate(ctx, mcResult(variedReturns(20, 0.02)), mcRequest(MCShuffle))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSimulateAllLosingLedger(t *testing.T) {
	returns := make([]float64, 10)
	for i := range returns {
		returns[i] = -0.05
	}
	var mc MonteCarlo
	resp, err := mc.Simulate(context.Background(), mcResult(returns), mcRequest(MCShuffle))
	require.NoError(t, err)
	assert.Zero(t, resp.ProbProfit)
}

func TestSimulateRiskOfRuin(t *testing.T) {
	// A 60% single-trade loss breaches the 50% ruin threshold in every
	// ordering.
	returns := []float64{0.02, 0.02, -0.6, 0.02, 0.02}
	var mc MonteCarlo
	resp, err := mc.Simulate(context.Background(), mcResult(returns), mcRequest(MCShuffle))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, resp.RiskOfRuin, 1e-9)
}
