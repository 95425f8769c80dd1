package setups

import (
	"MarketSweep/internal/domain/models"
	"MarketSweep/internal/services/features"
)

// EMACloudBreakout detects closes crossing out of the fast/slow EMA cloud on
// expanding volume: a cross above the cloud top is a long, a cross below the
// cloud bottom is a short when shorts are enabled.
type EMACloudBreakout struct{}

func (s *EMACloudBreakout) Name() string { return "ema_cloud_breakout" }

func (s *EMACloudBreakout) Defaults() models.ParameterSet {
	return models.ParameterSet{
		"ema_fast":       8,
		"ema_slow":       21,
		"atr_period":     14,
		"vol_avg_period": 20,
		"min_vol_ratio":  1.2,
		"allow_short":    0,
		"min_avg_volume": 100000,
	}
}

func (s *EMACloudBreakout) Space() models.ParameterSpace {
	return models.ParameterSpace{
		{Name: "ema_fast", Min: 2, Max: 100, Step: 1},
		{Name: "ema_slow", Min: 5, Max: 300, Step: 1},
		{Name: "atr_period", Min: 2, Max: 100, Step: 1},
		{Name: "vol_avg_period", Min: 5, Max: 200, Step: 1},
		{Name: "min_vol_ratio", Min: 0, Max: 10, Step: 0.1},
		{Name: "allow_short", Bool: true},
		{Name: "min_avg_volume", Min: 0, Max: 1e9, Step: 1000},
	}
}

func (s *EMACloudBreakout) PreFilter(ps models.ParameterSet) features.PreFilter {
	return features.PreFilter{
		MinBars:      features.LookbacksFrom(ps).Max() + 1,
		MinAvgVolume: ps.Get("min_avg_volume", 0),
		MinPrice:     1,
	}
}

func (s *EMACloudBreakout) Detect(rows []models.FeatureRow, ps models.ParameterSet) []models.Signal {
	minVol := ps.Get("min_vol_ratio", 1.2)
	allowShort := ps.Bool("allow_short")

	var out []models.Signal
	for i := 1; i < len(rows); i++ {
		row, prev := rows[i], rows[i-1]
		if !row.Warm || !prev.Warm || row.VolRatio < minVol {
			continue
		}
		crossUp := prev.Bar.Close <= prev.CloudTop && row.Bar.Close > row.CloudTop
		crossDown := prev.Bar.Close >= prev.CloudBottom && row.Bar.Close < row.CloudBottom
		if !crossUp && !(crossDown && allowShort) {
			continue
		}

		dir := models.Long
		stop := row.CloudBottom
		if crossDown {
			dir = models.Short
			stop = row.CloudTop
		}
		out = append(out, models.Signal{
			Symbol:    row.Symbol,
			Timestamp: row.Timestamp,
			SetupType: s.Name(),
			Direction: dir,
			Features: map[string]float64{
				"cloud_top":    row.CloudTop,
				"cloud_bottom": row.CloudBottom,
				"atr":          row.ATR,
				"vol_ratio":    row.VolRatio,
			},
			EntryRef: row.Bar.Close,
			StopRef:  stop,
		})
	}
	return out
}
