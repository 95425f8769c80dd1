package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketSweep/internal/domain/models"
)

func TestLookbacksFromDefaults(t *testing.T) {
	lb := LookbacksFrom(models.ParameterSet{})
	assert.Equal(t, 20, lb.SMAPeriod)
	assert.Equal(t, 8, lb.EMAFast)
	assert.Equal(t, 21, lb.EMASlow)
	assert.Equal(t, 14, lb.ATRPeriod)
	assert.Equal(t, 21, lb.Max())
}

func TestLookbacksFromParams(t *testing.T) {
	lb := LookbacksFrom(models.ParameterSet{"sma_period": 50, "ema_slow": 30})
	assert.Equal(t, 50, lb.SMAPeriod)
	assert.Equal(t, 30, lb.EMASlow)
	assert.Equal(t, 50, lb.Max())
}

func TestPreFilterMinBars(t *testing.T) {
	f := PreFilter{MinBars: 10}
	assert.False(t, f.Pass(barsFromCloses([]float64{1, 2, 3})))
	assert.True(t, f.Pass(barsFromCloses(make([]float64, 10))))
}

func TestPreFilterVolumeAndPrice(t *testing.T) {
	bars := barsFromCloses([]float64{100, 100, 100})
	assert.True(t, PreFilter{MinAvgVolume: 500}.Pass(bars))
	assert.False(t, PreFilter{MinAvgVolume: 5000}.Pass(bars))
	assert.True(t, PreFilter{MinPrice: 50}.Pass(bars))
	assert.False(t, PreFilter{MinPrice: 200}.Pass(bars))
	assert.False(t, PreFilter{MaxPrice: 50}.Pass(bars))
}

func TestPreFilterDoesNotMutateBuffer(t *testing.T) {
	bars := barsFromCloses([]float64{10, 20, 30})
	before := make([]models.Bar, len(bars))
	copy(before, bars)
	_ = PreFilter{MinBars: 2, MinAvgVolume: 1}.Pass(bars)
	assert.Equal(t, before, bars)
}

func TestBuildRowsWarmGating(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	lb := LookbacksFrom(models.ParameterSet{})
	rows := BuildRows("TEST", barsFromCloses(closes), lb)
	require.Len(t, rows, 30)

	warmAt := lb.Max()
	for i, row := range rows {
		assert.Equal(t, i >= warmAt, row.Warm, "row %d", i)
	}
}

func TestBuildRowsDerivedFields(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100 + float64(i%7)
	}
	rows := BuildRows("TEST", barsFromCloses(closes), LookbacksFrom(models.ParameterSet{}))

	last := rows[len(rows)-1]
	assert.GreaterOrEqual(t, last.CloudTop, last.CloudBottom)
	assert.InDelta(t, last.SMA+2.0*last.ATR, last.BandUpper, 1e-9)
	assert.InDelta(t, last.SMA-2.0*last.ATR, last.BandLower, 1e-9)
	assert.InDelta(t, 1.0, last.VolRatio, 1e-9) // constant volume
}

// A row's values must depend only on bars at or before it: appending future
// bars must not change earlier rows.
func TestBuildRowsNoLookAhead(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100 + float64(i%5)
	}
	bars := barsFromCloses(closes)
	lb := LookbacksFrom(models.ParameterSet{})

	short := BuildRows("TEST", bars[:30], lb)
	extended := append([]models.Bar{}, bars[:30]...)
	extended = append(extended, barsFromCloses([]float64{9999, 1, 9999, 1, 9999})...)
	long := BuildRows("TEST", extended, lb)

	for i := range short {
		assert.Equal(t, short[i], long[i], "row %d changed when future bars were appended", i)
	}
}

// Filtering never touches the buffer, so rows for a surviving symbol are
// identical whether or not the prefilter ran.
func TestFilterInvariance(t *testing.T) {
	closes := make([]float64, 35)
	for i := range closes {
		closes[i] = 50 + float64(i%3)
	}
	bars := barsFromCloses(closes)
	lb := LookbacksFrom(models.ParameterSet{})

	direct := BuildRows("TEST", bars, lb)
	require.True(t, PreFilter{MinBars: lb.Max() + 1, MinAvgVolume: 1}.Pass(bars))
	filtered := BuildRows("TEST", bars, lb)

	assert.Equal(t, direct, filtered)
}
