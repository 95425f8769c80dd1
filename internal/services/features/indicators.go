package features

import "MarketSweep/internal/domain/models"

// Rolling indicator primitives. All functions return a slice aligned with the
// input: out[i] is the indicator value at bar i, computed only from bars
// [0, i]. Positions before the warmup window hold zero and must be gated by
// FeatureRow.Warm.

// SMA computes the simple moving average of values over period.
func SMA(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA computes the exponential moving average with smoothing 2/(period+1),
// seeded with the SMA of the first period values.
func EMA(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	var seed float64
	for i := 0; i < period; i++ {
		seed += values[i]
	}
	seed /= float64(period)
	out[period-1] = seed

	k := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		out[i] = values[i]*k + out[i-1]*(1-k)
	}
	return out
}

// TrueRange returns the per-bar true range: max of high-low, |high - prior
// close| and |low - prior close|. The first bar uses high-low only.
func TrueRange(bars []models.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		tr := b.High - b.Low
		if i > 0 {
			prev := bars[i-1].Close
			if d := abs(b.High - prev); d > tr {
				tr = d
			}
			if d := abs(b.Low - prev); d > tr {
				tr = d
			}
		}
		out[i] = tr
	}
	return out
}

// ATR computes the Wilder-smoothed average true range.
func ATR(bars []models.Bar, period int) []float64 {
	out := make([]float64, len(bars))
	if period <= 0 || len(bars) < period {
		return out
	}
	tr := TrueRange(bars)

	var seed float64
	for i := 0; i < period; i++ {
		seed += tr[i]
	}
	out[period-1] = seed / float64(period)

	for i := period; i < len(bars); i++ {
		out[i] = (out[i-1]*float64(period-1) + tr[i]) / float64(period)
	}
	return out
}

// RSI computes the Wilder relative strength index over closes.
func RSI(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	if period <= 0 || len(closes) < period+1 {
		return out
	}

	var gain, loss float64
	for i := 1; i <= period; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		var g, l float64
		if d > 0 {
			g = d
		} else {
			l = -d
		}
		avgGain = (avgGain*float64(period-1) + g) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + l) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// GapFractions returns |open - prior close| / prior close per bar. The first
// bar has no prior close and reports zero.
func GapFractions(bars []models.Bar) []float64 {
	out := make([]float64, len(bars))
	for i := 1; i < len(bars); i++ {
		prev := bars[i-1].Close
		if prev > 0 {
			out[i] = abs(bars[i].Open-prev) / prev
		}
	}
	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
