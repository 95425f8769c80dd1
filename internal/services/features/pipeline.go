package features

import "MarketSweep/internal/domain/models"

// Lookbacks are the indicator windows the pipeline computes. Values come from
// the run's parameter set with conventional defaults.
type Lookbacks struct {
	SMAPeriod    int
	EMAFast      int
	EMASlow      int
	ATRPeriod    int
	RSIPeriod    int
	VolAvgPeriod int
	BandATRMult  float64
}

// LookbacksFrom derives the windows from a parameter set.
func LookbacksFrom(ps models.ParameterSet) Lookbacks {
	return Lookbacks{
		SMAPeriod:    ps.Int("sma_period", 20),
		EMAFast:      ps.Int("ema_fast", 8),
		EMASlow:      ps.Int("ema_slow", 21),
		ATRPeriod:    ps.Int("atr_period", 14),
		RSIPeriod:    ps.Int("rsi_period", 14),
		VolAvgPeriod: ps.Int("vol_avg_period", 20),
		BandATRMult:  ps.Get("band_atr_mult", 2.0),
	}
}

// Max returns the longest window; rows past it are warm.
func (l Lookbacks) Max() int {
	m := l.SMAPeriod
	for _, v := range []int{l.EMAFast, l.EMASlow, l.ATRPeriod, l.RSIPeriod, l.VolAvgPeriod} {
		if v > m {
			m = v
		}
	}
	return m
}

// PreFilter is the cheap first-pass gate. It only decides whether a symbol is
// worth the full indicator pass; it never alters the bar buffer, so the rows
// a surviving symbol produces are identical with or without it.
type PreFilter struct {
	MinBars      int
	MinAvgVolume float64
	MinPrice     float64
	MaxPrice     float64
}

// Pass reports whether the symbol's buffer can possibly satisfy the setup.
func (f PreFilter) Pass(bars []models.Bar) bool {
	if len(bars) < f.MinBars {
		return false
	}
	var volSum, closeSum float64
	for _, b := range bars {
		volSum += b.Volume
		closeSum += b.Close
	}
	n := float64(len(bars))
	if f.MinAvgVolume > 0 && volSum/n < f.MinAvgVolume {
		return false
	}
	avgClose := closeSum / n
	if f.MinPrice > 0 && avgClose < f.MinPrice {
		return false
	}
	if f.MaxPrice > 0 && avgClose > f.MaxPrice {
		return false
	}
	return true
}

// BuildRows runs the full indicator pass over the complete buffer. Indicators
// are always computed from the whole history regardless of which rows a
// detection predicate later inspects, so a row's values never depend on how
// the buffer was filtered.
func BuildRows(symbol string, bars []models.Bar, lb Lookbacks) []models.FeatureRow {
	if len(bars) == 0 {
		return nil
	}

	closes := make([]float64, len(bars))
	volumes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		volumes[i] = b.Volume
	}

	sma := SMA(closes, lb.SMAPeriod)
	emaFast := EMA(closes, lb.EMAFast)
	emaSlow := EMA(closes, lb.EMASlow)
	atr := ATR(bars, lb.ATRPeriod)
	rsi := RSI(closes, lb.RSIPeriod)
	volAvg := SMA(volumes, lb.VolAvgPeriod)
	gaps := GapFractions(bars)

	warmAt := lb.Max()
	rows := make([]models.FeatureRow, len(bars))
	for i, b := range bars {
		row := models.FeatureRow{
			Symbol:    symbol,
			Timestamp: b.Timestamp,
			Bar:       b,
			SMA:       sma[i],
			EMAFast:   emaFast[i],
			EMASlow:   emaSlow[i],
			ATR:       atr[i],
			RSI:       rsi[i],
			GapFrac:   gaps[i],
			VolumeAvg: volAvg[i],
			Warm:      i >= warmAt,
		}
		if row.VolumeAvg > 0 {
			row.VolRatio = b.Volume / row.VolumeAvg
		}
		if row.EMAFast >= row.EMASlow {
			row.CloudTop, row.CloudBottom = row.EMAFast, row.EMASlow
		} else {
			row.CloudTop, row.CloudBottom = row.EMASlow, row.EMAFast
		}
		row.BandUpper = row.SMA + lb.BandATRMult*row.ATR
		row.BandLower = row.SMA - lb.BandATRMult*row.ATR
		rows[i] = row
	}
	return rows
}
