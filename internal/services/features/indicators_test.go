package features

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketSweep/internal/domain/models"
)

func barsFromCloses(closes []float64) []models.Bar {
	t0 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, len(closes))
	for i, c := range closes {
		bars[i] = models.Bar{
			Symbol:    "TEST",
			Timestamp: t0.AddDate(0, 0, i),
			Open:      c,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    1000,
		}
	}
	return bars
}

func TestSMA(t *testing.T) {
	got := SMA([]float64{1, 2, 3, 4, 5}, 3)
	require.Len(t, got, 5)
	assert.Zero(t, got[0])
	assert.Zero(t, got[1])
	assert.InDelta(t, 2.0, got[2], 1e-9)
	assert.InDelta(t, 3.0, got[3], 1e-9)
	assert.InDelta(t, 4.0, got[4], 1e-9)
}

func TestSMAShortInput(t *testing.T) {
	got := SMA([]float64{1, 2}, 5)
	assert.Equal(t, []float64{0, 0}, got)
}

func TestEMASeededWithSMA(t *testing.T) {
	values := []float64{2, 4, 6, 8}
	got := EMA(values, 3)
	require.Len(t, got, 4)
	assert.Zero(t, got[0])
	assert.Zero(t, got[1])
	// seed = SMA(2,4,6) = 4; next = 8*0.5 + 4*0.5 = 6
	assert.InDelta(t, 4.0, got[2], 1e-9)
	assert.InDelta(t, 6.0, got[3], 1e-9)
}

func TestTrueRangeUsesPriorClose(t *testing.T) {
	bars := []models.Bar{
		{High: 12, Low: 10, Close: 11},
		{High: 13, Low: 12, Close: 12.5}, // gap up: |13-11| beats 13-12
	}
	got := TrueRange(bars)
	assert.InDelta(t, 2.0, got[0], 1e-9)
	assert.InDelta(t, 2.0, got[1], 1e-9)
}

func TestATRWilderSmoothing(t *testing.T) {
	bars := barsFromCloses([]float64{10, 10, 10, 10, 10})
	got := ATR(bars, 3)
	// every true range is high-low = 2
	assert.Zero(t, got[0])
	assert.InDelta(t, 2.0, got[2], 1e-9)
	assert.InDelta(t, 2.0, got[4], 1e-9)
}

func TestRSIAllGains(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5, 6}
	got := RSI(closes, 3)
	assert.Zero(t, got[2])
	assert.InDelta(t, 100.0, got[3], 1e-9)
	assert.InDelta(t, 100.0, got[5], 1e-9)
}

func TestRSIFlatSeries(t *testing.T) {
	closes := []float64{5, 5, 5, 5, 5}
	got := RSI(closes, 3)
	assert.InDelta(t, 50.0, got[3], 1e-9)
}

func TestRSIMixed(t *testing.T) {
	closes := []float64{10, 11, 10, 11, 10, 11}
	got := RSI(closes, 2)
	for i := 2; i < len(got); i++ {
		assert.Greater(t, got[i], 0.0)
		assert.Less(t, got[i], 100.0)
	}
}

func TestGapFractions(t *testing.T) {
	bars := []models.Bar{
		{Open: 100, Close: 100},
		{Open: 105, Close: 104}, // 5% gap vs prior close
		{Open: 104, Close: 103}, // no gap
	}
	got := GapFractions(bars)
	assert.Zero(t, got[0])
	assert.InDelta(t, 0.05, got[1], 1e-9)
	assert.InDelta(t, 0.0, got[2], 1e-9)
}
