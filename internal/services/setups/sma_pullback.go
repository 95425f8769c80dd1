package setups

import (
	"MarketSweep/internal/domain/models"
	"MarketSweep/internal/services/features"
)

// SMAPullback detects a dip below the moving average inside an uptrend: the
// prior close sat above the SMA, the current close dips below it by at most
// pullback_max_frac, and RSI confirms the pullback is not a breakdown.
type SMAPullback struct{}

func (s *SMAPullback) Name() string { return "sma_pullback" }

func (s *SMAPullback) Defaults() models.ParameterSet {
	return models.ParameterSet{
		"sma_period":        20,
		"atr_period":        14,
		"rsi_period":        14,
		"vol_avg_period":    20,
		"pullback_max_frac": 0.03,
		"rsi_max":           50,
		"min_vol_ratio":     0.8,
		"min_avg_volume":    100000,
	}
}

func (s *SMAPullback) Space() models.ParameterSpace {
	return models.ParameterSpace{
		{Name: "sma_period", Min: 5, Max: 200, Step: 1},
		{Name: "atr_period", Min: 2, Max: 100, Step: 1},
		{Name: "rsi_period", Min: 2, Max: 100, Step: 1},
		{Name: "vol_avg_period", Min: 5, Max: 200, Step: 1},
		{Name: "pullback_max_frac", Min: 0.001, Max: 0.2, Step: 0.001},
		{Name: "rsi_max", Min: 10, Max: 90, Step: 1},
		{Name: "min_vol_ratio", Min: 0, Max: 10, Step: 0.1},
		{Name: "min_avg_volume", Min: 0, Max: 1e9, Step: 1000},
	}
}

func (s *SMAPullback) PreFilter(ps models.ParameterSet) features.PreFilter {
	return features.PreFilter{
		MinBars:      features.LookbacksFrom(ps).Max() + 1,
		MinAvgVolume: ps.Get("min_avg_volume", 0),
		MinPrice:     1,
	}
}

func (s *SMAPullback) Detect(rows []models.FeatureRow, ps models.ParameterSet) []models.Signal {
	maxFrac := ps.Get("pullback_max_frac", 0.03)
	rsiMax := ps.Get("rsi_max", 50)
	minVol := ps.Get("min_vol_ratio", 0.8)

	var out []models.Signal
	for i := 1; i < len(rows); i++ {
		row, prev := rows[i], rows[i-1]
		if !row.Warm || !prev.Warm || row.SMA <= 0 {
			continue
		}
		if prev.Bar.Close <= prev.SMA {
			continue // no established uptrend to pull back from
		}
		dip := (row.SMA - row.Bar.Close) / row.SMA
		if dip <= 0 || dip > maxFrac {
			continue
		}
		if row.RSI > rsiMax || row.VolRatio < minVol {
			continue
		}
		out = append(out, models.Signal{
			Symbol:    row.Symbol,
			Timestamp: row.Timestamp,
			SetupType: s.Name(),
			Direction: models.Long,
			Features: map[string]float64{
				"sma":       row.SMA,
				"atr":       row.ATR,
				"rsi":       row.RSI,
				"dip_frac":  dip,
				"vol_ratio": row.VolRatio,
			},
			EntryRef: row.Bar.Close,
			StopRef:  row.BandLower,
		})
	}
	return out
}
