package setups

import (
	"MarketSweep/internal/domain/models"
	"MarketSweep/internal/services/features"
)

// ATRBandReversal detects mean-reversion extremes: a close stretched beyond
// the ATR deviation band around the SMA with RSI confirming exhaustion. Below
// the lower band is a long reversal, above the upper band a short one.
type ATRBandReversal struct{}

func (s *ATRBandReversal) Name() string { return "atr_band_reversal" }

func (s *ATRBandReversal) Defaults() models.ParameterSet {
	return models.ParameterSet{
		"sma_period":     20,
		"atr_period":     14,
		"rsi_period":     14,
		"vol_avg_period": 20,
		"band_atr_mult":  2.0,
		"rsi_oversold":   30,
		"rsi_overbought": 70,
		"allow_short":    1,
		"min_avg_volume": 100000,
	}
}

func (s *ATRBandReversal) Space() models.ParameterSpace {
	return models.ParameterSpace{
		{Name: "sma_period", Min: 5, Max: 200, Step: 1},
		{Name: "atr_period", Min: 2, Max: 100, Step: 1},
		{Name: "rsi_period", Min: 2, Max: 100, Step: 1},
		{Name: "vol_avg_period", Min: 5, Max: 200, Step: 1},
		{Name: "band_atr_mult", Min: 0.5, Max: 5, Step: 0.1},
		{Name: "rsi_oversold", Min: 5, Max: 50, Step: 1},
		{Name: "rsi_overbought", Min: 50, Max: 95, Step: 1},
		{Name: "allow_short", Bool: true},
		{Name: "min_avg_volume", Min: 0, Max: 1e9, Step: 1000},
	}
}

func (s *ATRBandReversal) PreFilter(ps models.ParameterSet) features.PreFilter {
	return features.PreFilter{
		MinBars:      features.LookbacksFrom(ps).Max() + 1,
		MinAvgVolume: ps.Get("min_avg_volume", 0),
		MinPrice:     1,
	}
}

func (s *ATRBandReversal) Detect(rows []models.FeatureRow, ps models.ParameterSet) []models.Signal {
	oversold := ps.Get("rsi_oversold", 30)
	overbought := ps.Get("rsi_overbought", 70)
	allowShort := ps.Bool("allow_short")

	var out []models.Signal
	for _, row := range rows {
		if !row.Warm || row.ATR <= 0 {
			continue
		}
		longRev := row.Bar.Close < row.BandLower && row.RSI < oversold
		shortRev := row.Bar.Close > row.BandUpper && row.RSI > overbought && allowShort
		if !longRev && !shortRev {
			continue
		}

		dir := models.Long
		stop := row.Bar.Close - row.ATR
		if shortRev {
			dir = models.Short
			stop = row.Bar.Close + row.ATR
		}
		out = append(out, models.Signal{
			Symbol:    row.Symbol,
			Timestamp: row.Timestamp,
			SetupType: s.Name(),
			Direction: dir,
			Features: map[string]float64{
				"sma":        row.SMA,
				"atr":        row.ATR,
				"rsi":        row.RSI,
				"band_upper": row.BandUpper,
				"band_lower": row.BandLower,
			},
			EntryRef: row.Bar.Close,
			StopRef:  stop,
		})
	}
	return out
}
