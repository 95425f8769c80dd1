package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketSweep/internal/domain/models"
)

func defaultValidator() *Validator {
	return NewValidator(ValidatorConfig{
		ReturnDecayWeight:  0.3,
		SharpeDecayWeight:  0.3,
		WinRateDecayWeight: 0.2,
		DrawdownWeight:     0.2,
		SharpeDecayConcern: 0.4,
		ReturnDecayConcern: 0.3,
	})
}

// ledgerResult builds one result whose trades alternate between the IS and
// OOS windows with the given per-window return patterns.
func ledgerResult(isStart time.Time, isReturns, oosReturns []float64) (*models.BacktestResult, models.DateRange, models.DateRange) {
	is := models.DateRange{Start: isStart, End: isStart.AddDate(1, 0, 0)}
	oos := models.DateRange{Start: is.End.AddDate(0, 0, 1), End: is.End.AddDate(0, 6, 0)}

	var trades []models.Trade
	for i, r := range isReturns {
		t := mkTrade(0, r)
		t.EntryTime = is.Start.AddDate(0, 0, 2+i*5)
		trades = append(trades, t)
	}
	for i, r := range oosReturns {
		t := mkTrade(0, r)
		t.EntryTime = oos.Start.AddDate(0, 0, 2+i*5)
		trades = append(trades, t)
	}
	res := &models.BacktestResult{
		Ref:    "test-ref",
		Trades: trades,
		Range:  models.DateRange{Start: is.Start, End: oos.End},
	}
	return res, is, oos
}

func variedReturns(n int, base float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = base
		if i%3 == 0 {
			out[i] = -base / 2
		}
	}
	return out
}

func TestValidateHealthyStrategyNotOverfit(t *testing.T) {
	// OOS performance close to IS: mild decay, no verdict.
	res, is, oos := ledgerResult(time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC),
		variedReturns(30, 0.02), variedReturns(15, 0.018))

	resp, err := defaultValidator().Validate(res, is, oos, 5)
	require.NoError(t, err)
	assert.False(t, resp.Overfit)
	assert.Less(t, resp.OverfittingScore, 0.5)
	assert.NotEmpty(t, resp.Degradations)
	for _, d := range resp.Degradations {
		assert.GreaterOrEqual(t, d.Decay, 0.0)
		assert.LessOrEqual(t, d.Decay, 1.0)
	}
}

func TestValidateCollapsedStrategyOverfit(t *testing.T) {
	// Strongly profitable in sample, losing out of sample.
	res, is, oos := ledgerResult(time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC),
		variedReturns(30, 0.03), variedReturns(15, -0.02))

	resp, err := defaultValidator().Validate(res, is, oos, 5)
	require.NoError(t, err)
	assert.True(t, resp.Overfit)
}

func TestValidateTooFewOOSTrades(t *testing.T) {
	res, is, oos := ledgerResult(time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC),
		variedReturns(30, 0.02), variedReturns(3, 0.02))

	_, err := defaultValidator().Validate(res, is, oos, 10)
	require.Error(t, err)
	assert.True(t, models.IsInsufficientData(err))
}

func TestValidateNoISTrades(t *testing.T) {
	res, is, oos := ledgerResult(time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC),
		nil, variedReturns(15, 0.02))

	_, err := defaultValidator().Validate(res, is, oos, 5)
	require.Error(t, err)
	assert.True(t, models.IsInsufficientData(err))
}

func TestDecayClipping(t *testing.T) {
	assert.Zero(t, decay(1.0, 1.5)) // improvement is never negative decay
	assert.Equal(t, 1.0, decay(0.0, -0.5))
	assert.InDelta(t, 0.21, decay(1.9, 1.5), 0.005)
	assert.Equal(t, 1.0, decay(1.0, -5.0)) // clipped at full decay
}

func TestDrawdownDecay(t *testing.T) {
	assert.Zero(t, drawdownDecay(0.2, 0.1)) // shallower OOS drawdown is fine
	assert.InDelta(t, 0.5, drawdownDecay(0.2, 0.3), 1e-9)
	assert.Equal(t, 1.0, drawdownDecay(0.0, 0.5)) // floor keeps the ratio finite
}
