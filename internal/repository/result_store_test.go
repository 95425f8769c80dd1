package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketSweep/internal/domain/models"
	pkgcache "MarketSweep/pkg/cache"
)

func testResult(ref string) *models.BacktestResult {
	entry := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	return &models.BacktestResult{
		Ref:       ref,
		SetupType: "sma_pullback",
		Params:    models.ParameterSet{"sma_period": 20},
		Range: models.DateRange{
			Start: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC),
		},
		Trades: []models.Trade{{
			Symbol:    "AAPL",
			SetupType: "sma_pullback",
			Direction: models.Long,
			EntryTime: entry,
			EntryPx:   100,
			ExitTime:  entry.AddDate(0, 0, 5),
			ExitPx:    104,
			StopPx:    96,
			Quantity:  1,
			PnL:       4,
			ReturnPct: 0.04,
			HoldBars:  5,
			Reason:    models.ExitTarget,
		}},
		CreatedAt: entry,
	}
}

func newTestStore() *CacheResultStore {
	return NewCacheResultStore(pkgcache.NewMemoryCache(pkgcache.WithMemoryMaxSize(16)), time.Hour)
}

func TestResultStoreRoundTrip(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	want := testResult("run-1")

	require.NoError(t, s.Put(ctx, want))
	got, err := s.Get(ctx, "run-1")
	require.NoError(t, err)

	assert.Equal(t, want.Ref, got.Ref)
	assert.Equal(t, want.Params, got.Params)
	require.Len(t, got.Trades, 1)
	assert.Equal(t, want.Trades[0], got.Trades[0])
	assert.True(t, want.Range.Start.Equal(got.Range.Start))
	assert.True(t, want.Range.End.Equal(got.Range.End))
}

func TestResultStoreMiss(t *testing.T) {
	s := newTestStore()
	_, err := s.Get(context.Background(), "never-stored")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrResultNotFound)
}

func TestResultStoreDelete(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, testResult("run-2")))
	require.NoError(t, s.Delete(ctx, "run-2"))

	_, err := s.Get(ctx, "run-2")
	assert.ErrorIs(t, err, models.ErrResultNotFound)
}
