package scan

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketSweep/internal/domain/models"
	"MarketSweep/internal/services/setups"
	"MarketSweep/pkg/logger"
)

type nopMetrics struct{}

func (nopMetrics) RecordScan(int, int, int, float64) {}
func (nopMetrics) RecordBacktest(int, float64)       {}
func (nopMetrics) RecordFetchBatch(string, int)      {}
func (nopMetrics) RecordError(string)                {}
func (nopMetrics) RecordLatency(string, float64)     {}

func newTestScanner(t *testing.T, concurrency int) *Scanner {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "stderr"})
	require.NoError(t, err)
	return New(setups.NewRegistry(), nopMetrics{}, log, concurrency)
}

// dipBars builds a 60-bar uptrend whose last close dips through the moving
// average, the shape sma_pullback fires on.
func dipBars(symbol string) []models.Bar {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i)*0.5
	}
	closes[59] = closes[58] - 6

	t0 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, len(closes))
	for i, c := range closes {
		bars[i] = models.Bar{
			Symbol:    symbol,
			Timestamp: t0.AddDate(0, 0, i),
			Open:      c,
			High:      c + 0.5,
			Low:       c - 0.5,
			Close:     c,
			Volume:    200000,
		}
	}
	return bars
}

func TestScanAcrossUniverse(t *testing.T) {
	s := newTestScanner(t, 4)
	bars := map[string][]models.Bar{
		"AAPL": dipBars("AAPL"),
		"MSFT": dipBars("MSFT"),
		"THIN": dipBars("THIN")[:5], // below the prefilter floor
	}

	res, err := s.Scan(context.Background(), bars, "sma_pullback", models.ParameterSet{"rsi_max": 90})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Scanned) // pre-filter rejections were still scanned
	assert.Equal(t, 1, res.Prefiltered)
	assert.Len(t, res.Rows, 2)
	assert.NotContains(t, res.Rows, "THIN")
	require.NotEmpty(t, res.Signals)
	assert.Equal(t, 90.0, res.Params["rsi_max"])
	assert.Equal(t, 20.0, res.Params["sma_period"]) // defaults merged in
}

func TestScanSignalOrdering(t *testing.T) {
	s := newTestScanner(t, 8)
	bars := map[string][]models.Bar{
		"NVDA": dipBars("NVDA"),
		"AMD":  dipBars("AMD"),
		"AAPL": dipBars("AAPL"),
	}

	res, err := s.Scan(context.Background(), bars, "sma_pullback", models.ParameterSet{"rsi_max": 90})
	require.NoError(t, err)
	require.NotEmpty(t, res.Signals)

	for i := 1; i < len(res.Signals); i++ {
		a, b := res.Signals[i-1], res.Signals[i]
		if a.Timestamp.Equal(b.Timestamp) {
			assert.LessOrEqual(t, a.Symbol, b.Symbol)
		} else {
			assert.True(t, a.Timestamp.Before(b.Timestamp))
		}
	}
}

func TestScanDeterministic(t *testing.T) {
	bars := map[string][]models.Bar{
		"AAPL": dipBars("AAPL"),
		"MSFT": dipBars("MSFT"),
	}
	params := models.ParameterSet{"rsi_max": 90}

	a, err := newTestScanner(t, 1).Scan(context.Background(), bars, "sma_pullback", params)
	require.NoError(t, err)
	b, err := newTestScanner(t, 8).Scan(context.Background(), bars, "sma_pullback", params)
	require.NoError(t, err)

	assert.Equal(t, a.Signals, b.Signals)
	assert.Equal(t, a.Rows, b.Rows)
}

func TestScanUnknownSetup(t *testing.T) {
	s := newTestScanner(t, 2)
	_, err := s.Scan(context.Background(), map[string][]models.Bar{"AAPL": dipBars("AAPL")}, "triple_bottom", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrUnknownSetup)
}

func TestScanInvalidParams(t *testing.T) {
	s := newTestScanner(t, 2)
	_, err := s.Scan(context.Background(), map[string][]models.Bar{"AAPL": dipBars("AAPL")}, "sma_pullback", models.ParameterSet{"sma_period": 2000})
	require.Error(t, err)
	assert.True(t, models.IsInvalidParameter(err))
}

func TestScanCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := newTestScanner(t, 1)

	res, err := s.Scan(ctx, map[string][]models.Bar{"AAPL": dipBars("AAPL"), "MSFT": dipBars("MSFT")}, "sma_pullback", nil)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
}
