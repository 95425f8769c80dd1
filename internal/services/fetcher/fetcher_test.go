package fetcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketSweep/internal/domain/models"
	icache "MarketSweep/internal/service/cache"
	"MarketSweep/pkg/logger"
)

type nopMetrics struct{}

func (nopMetrics) RecordScan(int, int, int, float64) {}
func (nopMetrics) RecordBacktest(int, float64)       {}
func (nopMetrics) RecordFetchBatch(string, int)      {}
func (nopMetrics) RecordError(string)                {}
func (nopMetrics) RecordLatency(string, float64)     {}

// fakeProvider serves a fixed bar count per symbol and records every batch it
// receives.
type fakeProvider struct {
	mu        sync.Mutex
	batches   [][]string
	bars      map[string][]models.Bar
	failCalls int // first N calls fail
	calls     int
}

func (p *fakeProvider) FetchBatch(ctx context.Context, symbols []string, rng models.DateRange) (map[string][]models.Bar, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.batches = append(p.batches, append([]string{}, symbols...))
	if p.calls <= p.failCalls {
		return nil, errors.New("upstream 503")
	}
	out := make(map[string][]models.Bar, len(symbols))
	for _, s := range symbols {
		if bars, ok := p.bars[s]; ok {
			out[s] = append([]models.Bar{}, bars...)
		}
	}
	return out, nil
}

func (p *fakeProvider) ListSymbols(context.Context) ([]string, error) { return nil, nil }
func (p *fakeProvider) Health(context.Context) error                  { return nil }

func mkBars(symbol string, n int) []models.Bar {
	t0 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	out := make([]models.Bar, n)
	for i := range out {
		out[i] = models.Bar{
			Symbol:    symbol,
			Timestamp: t0.AddDate(0, 0, i),
			Open:      100, High: 101, Low: 99, Close: 100.5, Volume: 1000,
		}
	}
	return out
}

func testRange() models.DateRange {
	return models.DateRange{
		Start: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func newTestFetcher(t *testing.T, p *fakeProvider, c icache.BytesCache, cfg Config) *Fetcher {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "stderr"})
	require.NoError(t, err)
	return New(p, nil, c, nil, nopMetrics{}, log, cfg)
}

func TestFetchBatchesSymbols(t *testing.T) {
	provider := &fakeProvider{bars: map[string][]models.Bar{
		"AAPL": mkBars("AAPL", 40),
		"MSFT": mkBars("MSFT", 40),
		"NVDA": mkBars("NVDA", 40),
	}}
	f := newTestFetcher(t, provider, nil, Config{BatchSize: 2, Concurrency: 1, MinHistoryBars: 10})

	res, err := f.Fetch(context.Background(), []string{"AAPL", "MSFT", "NVDA"}, testRange())
	require.NoError(t, err)
	assert.Len(t, res.Bars, 3)
	assert.Empty(t, res.Failed)
	require.Len(t, provider.batches, 2) // 2 + 1, never one call per symbol
	assert.Len(t, provider.batches[0], 2)
	assert.Len(t, provider.batches[1], 1)
}

func TestFetchCollectsPartialFailures(t *testing.T) {
	provider := &fakeProvider{bars: map[string][]models.Bar{
		"AAPL": mkBars("AAPL", 40),
		"MSFT": mkBars("MSFT", 4), // below the history floor
	}}
	f := newTestFetcher(t, provider, nil, Config{BatchSize: 10, MinHistoryBars: 10})

	res, err := f.Fetch(context.Background(), []string{"AAPL", "MSFT", "ZZZZ"}, testRange())
	require.NoError(t, err)

	assert.Len(t, res.Bars, 1)
	assert.Contains(t, res.Bars, "AAPL")
	require.Len(t, res.Failed, 2)
	// sorted by symbol
	assert.Equal(t, "MSFT", res.Failed[0].Symbol)
	assert.Contains(t, res.Failed[0].Reason, "insufficient history")
	assert.Equal(t, "ZZZZ", res.Failed[1].Symbol)
	assert.Equal(t, "no data", res.Failed[1].Reason)
}

func TestFetchRetriesTransientErrors(t *testing.T) {
	provider := &fakeProvider{
		bars:      map[string][]models.Bar{"AAPL": mkBars("AAPL", 40)},
		failCalls: 2,
	}
	f := newTestFetcher(t, provider, nil, Config{
		BatchSize: 10, MaxRetries: 3, RetryBackoff: time.Millisecond, MinHistoryBars: 10,
	})

	res, err := f.Fetch(context.Background(), []string{"AAPL"}, testRange())
	require.NoError(t, err)
	assert.Len(t, res.Bars, 1)
	assert.Equal(t, 3, provider.calls)
}

func TestFetchExhaustedRetriesFailSymbols(t *testing.T) {
	provider := &fakeProvider{failCalls: 100}
	f := newTestFetcher(t, provider, nil, Config{
		BatchSize: 10, MaxRetries: 1, RetryBackoff: time.Millisecond, MinHistoryBars: 10,
	})

	res, err := f.Fetch(context.Background(), []string{"AAPL", "MSFT"}, testRange())
	require.NoError(t, err) // per-symbol failure, not a fetch error
	assert.Empty(t, res.Bars)
	assert.Len(t, res.Failed, 2)
}

func TestFetchUsesCache(t *testing.T) {
	provider := &fakeProvider{bars: map[string][]models.Bar{"AAPL": mkBars("AAPL", 40)}}
	c := icache.NewTTLCache()
	f := newTestFetcher(t, provider, c, Config{BatchSize: 10, MinHistoryBars: 10, CacheTTL: time.Minute})

	_, err := f.Fetch(context.Background(), []string{"AAPL"}, testRange())
	require.NoError(t, err)
	res, err := f.Fetch(context.Background(), []string{"AAPL"}, testRange())
	require.NoError(t, err)

	assert.Equal(t, 1, provider.calls) // second call served from cache
	assert.Len(t, res.Bars, 1)
	assert.Len(t, res.Bars["AAPL"], 40)
}

func TestInvalidateForcesRefetch(t *testing.T) {
	provider := &fakeProvider{bars: map[string][]models.Bar{"AAPL": mkBars("AAPL", 40)}}
	c := icache.NewTTLCache()
	f := newTestFetcher(t, provider, c, Config{BatchSize: 10, MinHistoryBars: 10, CacheTTL: time.Minute})

	_, err := f.Fetch(context.Background(), []string{"AAPL"}, testRange())
	require.NoError(t, err)
	require.NoError(t, f.Invalidate([]string{"AAPL"}, testRange()))

	_, err = f.Fetch(context.Background(), []string{"AAPL"}, testRange())
	require.NoError(t, err)
	assert.Equal(t, 2, provider.calls) // cache entry was dropped
}

func TestFetchSortsBars(t *testing.T) {
	bars := mkBars("AAPL", 30)
	// shuffle a few out of order
	bars[0], bars[10] = bars[10], bars[0]
	bars[5], bars[20] = bars[20], bars[5]
	provider := &fakeProvider{bars: map[string][]models.Bar{"AAPL": bars}}
	f := newTestFetcher(t, provider, nil, Config{BatchSize: 10, MinHistoryBars: 10})

	res, err := f.Fetch(context.Background(), []string{"AAPL"}, testRange())
	require.NoError(t, err)
	got := res.Bars["AAPL"]
	for i := 1; i < len(got); i++ {
		assert.True(t, got[i-1].Timestamp.Before(got[i].Timestamp))
	}
}

func TestFetchInvalidRange(t *testing.T) {
	f := newTestFetcher(t, &fakeProvider{}, nil, Config{})
	_, err := f.Fetch(context.Background(), []string{"AAPL"}, models.DateRange{})
	assert.Error(t, err)
}

func TestFetchEmptyUniverse(t *testing.T) {
	f := newTestFetcher(t, &fakeProvider{}, nil, Config{})
	res, err := f.Fetch(context.Background(), nil, testRange())
	require.NoError(t, err)
	assert.Empty(t, res.Bars)
}

func TestFetchCancelledReturnsPartial(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	provider := &fakeProvider{bars: map[string][]models.Bar{"AAPL": mkBars("AAPL", 40)}}
	f := newTestFetcher(t, provider, nil, Config{BatchSize: 1, Concurrency: 1, MinHistoryBars: 10})

	res, err := f.Fetch(ctx, []string{"AAPL", "MSFT"}, testRange())
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res) // partial result travels with the error
}
