package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketSweep/internal/domain/models"
	"MarketSweep/pkg/logger"
)

type nopMetrics struct{}

func (nopMetrics) RecordScan(int, int, int, float64) {}
func (nopMetrics) RecordBacktest(int, float64)       {}
func (nopMetrics) RecordFetchBatch(string, int)      {}
func (nopMetrics) RecordError(string)                {}
func (nopMetrics) RecordLatency(string, float64)     {}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "stderr"})
	require.NoError(t, err)
	return New(nopMetrics{}, log, 2)
}

var day0 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func row(i int, o, h, l, c, atr float64) models.FeatureRow {
	ts := day0.AddDate(0, 0, i)
	return models.FeatureRow{
		Symbol:    "TEST",
		Timestamp: ts,
		Bar:       models.Bar{Symbol: "TEST", Timestamp: ts, Open: o, High: h, Low: l, Close: c, Volume: 1000},
		ATR:       atr,
		Warm:      true,
	}
}

func longSignal(i int, entryRef, stopRef float64) models.Signal {
	return models.Signal{
		Symbol:    "TEST",
		Timestamp: day0.AddDate(0, 0, i),
		SetupType: "sma_pullback",
		Direction: models.Long,
		EntryRef:  entryRef,
		StopRef:   stopRef,
	}
}

func fullRange(rows []models.FeatureRow) models.DateRange {
	return models.DateRange{Start: rows[0].Timestamp, End: rows[len(rows)-1].Timestamp}
}

func marketRules() models.ExecutionRules {
	return models.ExecutionRules{Entry: "market", StopATRMult: 2, EntryTimeoutBars: 3, MaxPyramids: 2}
}

func TestMarketEntryFillsNextOpenThenTarget(t *testing.T) {
	rows := map[string][]models.FeatureRow{"TEST": {
		row(0, 100, 100.5, 99.5, 100, 1),
		row(1, 100, 101, 99, 100.5, 1),
		row(2, 101, 105, 100, 104, 1),
	}}
	rules := marketRules()
	rules.TakeProfitR = 2 // risk 2*ATR = 2, target = entry + 4

	res, err := newTestEngine(t).Run(context.Background(), []models.Signal{longSignal(0, 100, 95)},
		rows, rules, fullRange(rows["TEST"]))
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)

	tr := res.Trades[0]
	assert.Equal(t, 100.0, tr.EntryPx) // next bar's open, never the signal bar
	assert.Equal(t, rows["TEST"][1].Timestamp, tr.EntryTime)
	assert.Equal(t, models.ExitTarget, tr.Reason)
	assert.Equal(t, 104.0, tr.ExitPx)
	assert.InDelta(t, 4.0, tr.PnL, 1e-9)
	assert.Equal(t, 1, tr.HoldBars)
	assert.NotEmpty(t, res.Ref)
}

func TestStopBeatsTargetWithinOneBar(t *testing.T) {
	// Bar 2 spans both the stop (98) and the target (104): the adverse
	// outcome wins.
	rows := map[string][]models.FeatureRow{"TEST": {
		row(0, 100, 100.5, 99.5, 100, 1),
		row(1, 100, 101, 99, 100.5, 1),
		row(2, 100, 105, 97, 104, 1),
	}}
	rules := marketRules()
	rules.TakeProfitR = 2

	res, err := newTestEngine(t).Run(context.Background(), []models.Signal{longSignal(0, 100, 95)},
		rows, rules, fullRange(rows["TEST"]))
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, models.ExitStop, res.Trades[0].Reason)
	assert.Equal(t, 98.0, res.Trades[0].ExitPx)
}

func TestGapThroughStopExitsAtOpen(t *testing.T) {
	rows := map[string][]models.FeatureRow{"TEST": {
		row(0, 100, 100.5, 99.5, 100, 1),
		row(1, 100, 101, 99, 100.5, 1),
		row(2, 95, 96, 94, 95.5, 1), // opens well below the 98 stop
	}}
	res, err := newTestEngine(t).Run(context.Background(), []models.Signal{longSignal(0, 100, 95)},
		rows, marketRules(), fullRange(rows["TEST"]))
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, models.ExitStop, res.Trades[0].Reason)
	assert.Equal(t, 95.0, res.Trades[0].ExitPx) // the open, not the stop level
}

func TestLimitEntryFillsOnTouch(t *testing.T) {
	rows := map[string][]models.FeatureRow{"TEST": {
		row(0, 100, 100.5, 99.5, 100, 1),
		row(1, 100, 101, 98.5, 100.5, 1),  // low stays above the 98 limit
		row(2, 99, 100, 97.5, 99.5, 1),    // touches it
		row(3, 100, 101, 99.5, 100.5, 1),
	}}
	rules := marketRules()
	rules.Entry = "limit"
	rules.LimitOffsetFrac = 0.02
	rules.EntryTimeoutBars = 3

	res, err := newTestEngine(t).Run(context.Background(), []models.Signal{longSignal(0, 100, 95)},
		rows, rules, fullRange(rows["TEST"]))
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)

	tr := res.Trades[0]
	assert.Equal(t, 98.0, tr.EntryPx)
	assert.Equal(t, rows["TEST"][2].Timestamp, tr.EntryTime)
	assert.Equal(t, models.ExitEndOfRun, tr.Reason)
}

func TestLimitEntryGapThroughFillsAtOpen(t *testing.T) {
	rows := map[string][]models.FeatureRow{"TEST": {
		row(0, 100, 100.5, 99.5, 100, 1),
		row(1, 97, 98, 96.5, 97.5, 1), // opens below the 98 limit
		row(2, 98, 99, 97, 98.5, 1),
	}}
	rules := marketRules()
	rules.Entry = "limit"
	rules.LimitOffsetFrac = 0.02

	res, err := newTestEngine(t).Run(context.Background(), []models.Signal{longSignal(0, 100, 90)},
		rows, rules, fullRange(rows["TEST"]))
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, 97.0, res.Trades[0].EntryPx)
}

func TestLimitEntryTimesOutUnfilled(t *testing.T) {
	rows := map[string][]models.FeatureRow{"TEST": {
		row(0, 100, 100.5, 99.5, 100, 1),
		row(1, 100, 101, 99, 100.5, 1),
		row(2, 101, 102, 100, 101.5, 1),
		row(3, 102, 103, 101, 102.5, 1),
	}}
	rules := marketRules()
	rules.Entry = "limit"
	rules.LimitOffsetFrac = 0.02
	rules.EntryTimeoutBars = 2

	res, err := newTestEngine(t).Run(context.Background(), []models.Signal{longSignal(0, 100, 95)},
		rows, rules, fullRange(rows["TEST"]))
	require.NoError(t, err)
	assert.Empty(t, res.Trades)
}

func TestTimeExitAtMaxHoldBars(t *testing.T) {
	rows := map[string][]models.FeatureRow{"TEST": {
		row(0, 100, 100.5, 99.5, 100, 1),
		row(1, 100, 101, 99, 100.5, 1),
		row(2, 101, 102, 100, 101.5, 1),
		row(3, 102, 103, 101, 102.5, 1),
		row(4, 103, 104, 102, 103.5, 1),
	}}
	rules := marketRules()
	rules.MaxHoldBars = 2

	res, err := newTestEngine(t).Run(context.Background(), []models.Signal{longSignal(0, 100, 95)},
		rows, rules, fullRange(rows["TEST"]))
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)

	tr := res.Trades[0]
	assert.Equal(t, models.ExitTime, tr.Reason)
	assert.Equal(t, 2, tr.HoldBars)
	assert.Equal(t, 102.5, tr.ExitPx) // close of the time-limit bar
}

func TestEndOfDataClosesOpenPosition(t *testing.T) {
	rows := map[string][]models.FeatureRow{"TEST": {
		row(0, 100, 100.5, 99.5, 100, 1),
		row(1, 100, 101, 99, 100.5, 1),
		row(2, 101, 102, 100, 101.5, 1),
	}}
	res, err := newTestEngine(t).Run(context.Background(), []models.Signal{longSignal(0, 100, 95)},
		rows, marketRules(), fullRange(rows["TEST"]))
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, models.ExitEndOfRun, res.Trades[0].Reason)
	assert.Equal(t, 101.5, res.Trades[0].ExitPx)
}

func TestTrailingStopArmsAndRatchets(t *testing.T) {
	rows := map[string][]models.FeatureRow{"TEST": {
		row(0, 100, 100.5, 99.5, 100, 1),
		row(1, 100, 101.5, 99.5, 101, 1),
		row(2, 102, 104.5, 101.5, 104, 1), // clears 1R: trail arms at 104-1 = 103
		row(3, 103.5, 104, 102.5, 103, 1), // touches the trailed stop
	}}
	rules := marketRules()
	rules.TrailingAfterR = 1
	rules.TrailingATRMult = 1

	res, err := newTestEngine(t).Run(context.Background(), []models.Signal{longSignal(0, 100, 95)},
		rows, rules, fullRange(rows["TEST"]))
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)

	tr := res.Trades[0]
	assert.Equal(t, models.ExitTrailing, tr.Reason)
	assert.Equal(t, 103.0, tr.ExitPx)
	assert.InDelta(t, 3.0, tr.PnL, 1e-9)
}

func TestPyramidingBlendsEntryAndReanchorsStop(t *testing.T) {
	rows := map[string][]models.FeatureRow{"TEST": {
		row(0, 100, 100.5, 99.5, 100, 1),
		row(1, 100, 101, 99.5, 100.5, 1),
		row(2, 101, 103.5, 100.5, 103, 1), // second signal fires here
		row(3, 104, 105, 103, 104.5, 1),   // add fills at this open
		row(4, 105.5, 106.5, 105, 106, 1),
	}}
	rules := marketRules()
	rules.Pyramiding = true

	sigs := []models.Signal{longSignal(0, 100, 95), longSignal(2, 103, 99)}
	res, err := newTestEngine(t).Run(context.Background(), sigs, rows, rules, fullRange(rows["TEST"]))
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)

	tr := res.Trades[0]
	assert.Equal(t, 2.0, tr.Quantity)
	assert.InDelta(t, 102.0, tr.EntryPx, 1e-9) // (100 + 104) / 2
	assert.Equal(t, models.ExitEndOfRun, tr.Reason)
	assert.InDelta(t, (106.0-102.0)*2, tr.PnL, 1e-9)
	// Stop re-anchored off the blended entry at the add bar's ATR.
	assert.InDelta(t, 100.0, tr.StopPx, 1e-9)
}

func TestSignalsOutsideRangeAreIgnored(t *testing.T) {
	rows := map[string][]models.FeatureRow{"TEST": {
		row(0, 100, 100.5, 99.5, 100, 1),
		row(1, 100, 101, 99, 100.5, 1),
		row(2, 101, 102, 100, 101.5, 1),
	}}
	rng := models.DateRange{Start: day0.AddDate(0, 0, 1), End: day0.AddDate(0, 0, 2)}

	res, err := newTestEngine(t).Run(context.Background(), []models.Signal{longSignal(0, 100, 95)},
		rows, marketRules(), rng)
	require.NoError(t, err)
	assert.Empty(t, res.Trades)
}

func TestRunRejectsInvalidRules(t *testing.T) {
	rows := map[string][]models.FeatureRow{}
	e := newTestEngine(t)
	rng := models.DateRange{Start: day0, End: day0.AddDate(0, 0, 5)}

	cases := []struct {
		name  string
		rules models.ExecutionRules
	}{
		{"zero stop mult", models.ExecutionRules{Entry: "market"}},
		{"bad entry", models.ExecutionRules{Entry: "stop", StopATRMult: 2}},
		{"limit without timeout", models.ExecutionRules{Entry: "limit", StopATRMult: 2}},
		{"trailing without mult", models.ExecutionRules{Entry: "market", StopATRMult: 2, TrailingAfterR: 1}},
		{"pyramiding without budget", models.ExecutionRules{Entry: "market", StopATRMult: 2, Pyramiding: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.Run(context.Background(), nil, rows, tc.rules, rng)
			require.Error(t, err)
			assert.True(t, models.IsInvalidParameter(err))
		})
	}
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rows := map[string][]models.FeatureRow{"TEST": {row(0, 100, 101, 99, 100, 1)}}

	_, err := newTestEngine(t).Run(ctx, []models.Signal{longSignal(0, 100, 95)},
		rows, marketRules(), fullRange(rows["TEST"]))
	assert.ErrorIs(t, err, context.Canceled)
}
