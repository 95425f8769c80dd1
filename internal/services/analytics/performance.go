package analytics

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"MarketSweep/internal/domain/models"
)

// Compute derives the full metrics vector from a trade ledger. It is a pure
// function of the trades and the covering range: same ledger, same vector.
// Metrics that have no defined value for this ledger are listed in Undefined
// rather than reported as zero or NaN.
func Compute(trades []models.Trade, rng models.DateRange) models.MetricsVector {
	if len(trades) == 0 {
		return models.InsufficientMetrics()
	}

	returns := make([]float64, len(trades))
	var (
		grossWin, grossLoss float64
		winSum, lossSum     float64
		wins, losses        int
	)
	for i, t := range trades {
		returns[i] = t.ReturnPct
		if t.PnL > 0 {
			grossWin += t.PnL
			winSum += t.ReturnPct
			wins++
		} else if t.PnL < 0 {
			grossLoss += -t.PnL
			lossSum += t.ReturnPct
			losses++
		}
	}

	m := models.MetricsVector{
		TradeCount: len(trades),
		WinCount:   wins,
		LossCount:  losses,
		WinRate:    float64(wins) / float64(len(trades)),
		Expectancy: stat.Mean(returns, nil),
	}

	equity := 1.0
	peak := 1.0
	maxDD := 0.0
	for _, r := range returns {
		equity *= 1 + r
		if equity > peak {
			peak = equity
		}
		if dd := (peak - equity) / peak; dd > maxDD {
			maxDD = dd
		}
	}
	m.TotalReturn = equity - 1
	m.MaxDrawdown = maxDD

	years := rng.Years()
	if equity > 0 {
		m.AnnualizedReturn = math.Pow(equity, 1/years) - 1
	} else {
		m.AnnualizedReturn = -1
	}

	// Ratios are annualized at the realized trade frequency.
	perYear := float64(len(trades)) / years

	sd := stat.StdDev(returns, nil)
	mean := m.Expectancy
	if sd > 0 {
		m.Sharpe = mean / sd * math.Sqrt(perYear)
	} else {
		m.Undefined = append(m.Undefined, "sharpe")
	}

	if dd := downsideDeviation(returns, mean); dd > 0 {
		m.Sortino = mean / dd * math.Sqrt(perYear)
	} else {
		m.Undefined = append(m.Undefined, "sortino")
	}

	if maxDD > 0 {
		m.Calmar = m.AnnualizedReturn / maxDD
	} else {
		m.Undefined = append(m.Undefined, "calmar")
	}

	if lossSum < 0 {
		m.Omega = winSum / -lossSum
	} else {
		m.Undefined = append(m.Undefined, "omega")
	}

	if grossLoss > 0 {
		m.ProfitFactor = grossWin / grossLoss
	} else {
		m.Undefined = append(m.Undefined, "profit_factor")
	}

	if wins > 0 {
		m.AvgWin = winSum / float64(wins)
	} else {
		m.Undefined = append(m.Undefined, "avg_win")
	}
	if losses > 0 {
		m.AvgLoss = lossSum / float64(losses)
	} else {
		m.Undefined = append(m.Undefined, "avg_loss")
	}

	return m
}

// downsideDeviation is the root mean square of deviations below the mean
// return, over all observations. Returns above the mean contribute nothing.
func downsideDeviation(returns []float64, mean float64) float64 {
	var sum float64
	for _, r := range returns {
		if r < mean {
			d := r - mean
			sum += d * d
		}
	}
	return math.Sqrt(sum / float64(len(returns)))
}
