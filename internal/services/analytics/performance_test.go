package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketSweep/internal/domain/models"
)

var perfDay0 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func mkTrade(i int, ret float64) models.Trade {
	entry := perfDay0.AddDate(0, 0, i*3)
	return models.Trade{
		Symbol:    "TEST",
		Direction: models.Long,
		EntryTime: entry,
		ExitTime:  entry.AddDate(0, 0, 1),
		EntryPx:   100,
		ExitPx:    100 * (1 + ret),
		PnL:       100 * ret,
		ReturnPct: ret,
	}
}

func yearRange() models.DateRange {
	return models.DateRange{Start: perfDay0, End: perfDay0.AddDate(1, 0, 0)}
}

func TestComputeEmptyLedger(t *testing.T) {
	m := Compute(nil, yearRange())
	assert.True(t, m.Insufficient)
	assert.False(t, m.Defined("sharpe"))
}

func TestComputeMixedLedger(t *testing.T) {
	// 6 wins at +2%, 4 losses at -1%.
	var trades []models.Trade
	for i := 0; i < 6; i++ {
		trades = append(trades, mkTrade(i, 0.02))
	}
	for i := 6; i < 10; i++ {
		trades = append(trades, mkTrade(i, -0.01))
	}

	m := Compute(trades, yearRange())
	assert.Equal(t, 10, m.TradeCount)
	assert.Equal(t, 6, m.WinCount)
	assert.Equal(t, 4, m.LossCount)
	assert.InDelta(t, 0.6, m.WinRate, 1e-9)
	assert.InDelta(t, 0.008, m.Expectancy, 1e-9) // (6*0.02 - 4*0.01) / 10
	assert.InDelta(t, 3.0, m.ProfitFactor, 1e-9) // 12 / 4
	assert.InDelta(t, 0.02, m.AvgWin, 1e-9)
	assert.InDelta(t, -0.01, m.AvgLoss, 1e-9)
	assert.Greater(t, m.TotalReturn, 0.0)
	assert.Greater(t, m.Sharpe, 0.0)
	assert.True(t, m.Defined("sharpe"))
	assert.True(t, m.Defined("sortino"))
	assert.True(t, m.Defined("omega"))
	assert.InDelta(t, 3.0, m.Omega, 1e-9) // 0.12 / 0.04 on returns
}

func TestComputeDeterministic(t *testing.T) {
	trades := []models.Trade{mkTrade(0, 0.02), mkTrade(1, -0.01), mkTrade(2, 0.03)}
	assert.Equal(t, Compute(trades, yearRange()), Compute(trades, yearRange()))
}

func TestComputeAllWinners(t *testing.T) {
	trades := []models.Trade{mkTrade(0, 0.02), mkTrade(1, 0.02), mkTrade(2, 0.02)}
	m := Compute(trades, yearRange())

	// No losses: profit factor, omega, avg_loss and calmar (no drawdown)
	// have no defined value. Sharpe and sortino neither: identical returns
	// mean zero dispersion on either side of the mean.
	for _, name := range []string{"profit_factor", "sortino", "omega", "avg_loss", "calmar", "sharpe"} {
		assert.False(t, m.Defined(name), name)
	}
	assert.InDelta(t, 1.0, m.WinRate, 1e-9)
	assert.Zero(t, m.MaxDrawdown)
}

func TestComputeSortinoBelowMeanTarget(t *testing.T) {
	// All positive but varied: returns below the mean exist, so downside
	// deviation is positive and sortino is defined even without losses.
	rets := []float64{0.10, 0.02, 0.02, 0.06, 0.01}
	var trades []models.Trade
	for i, r := range rets {
		trades = append(trades, mkTrade(i, r))
	}

	m := Compute(trades, yearRange())
	require.True(t, m.Defined("sortino"))
	assert.Greater(t, m.Sortino, 0.0)
	assert.True(t, m.Defined("sharpe"))
}

func TestComputeMaxDrawdown(t *testing.T) {
	// +10%, -20%, +5%: trough after the loss.
	trades := []models.Trade{mkTrade(0, 0.10), mkTrade(1, -0.20), mkTrade(2, 0.05)}
	m := Compute(trades, yearRange())
	assert.InDelta(t, 0.20, m.MaxDrawdown, 1e-9)
	assert.True(t, m.Defined("calmar"))
}

func TestComputeCompoundsReturns(t *testing.T) {
	trades := []models.Trade{mkTrade(0, 0.10), mkTrade(1, 0.10)}
	m := Compute(trades, yearRange())
	require.False(t, m.Insufficient)
	assert.InDelta(t, 0.21, m.TotalReturn, 1e-9) // 1.1 * 1.1 - 1
}

func TestComputeTotalLossAnnualized(t *testing.T) {
	trades := []models.Trade{mkTrade(0, -1.0)}
	m := Compute(trades, yearRange())
	assert.InDelta(t, -1.0, m.TotalReturn, 1e-9)
	assert.InDelta(t, -1.0, m.AnnualizedReturn, 1e-9)
}
