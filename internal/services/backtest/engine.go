package backtest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"MarketSweep/internal/domain/models"
	"MarketSweep/internal/domain/repository"
	"MarketSweep/pkg/logger"
)

// Engine replays signals against feature rows under a rule set. Symbols are
// simulated independently; each holds at most one open position at a time.
//
// Per-symbol lifecycle: idle -> pending entry -> in position -> exited. A
// market entry fills at the next bar's open; a limit entry fills on the first
// touch within the timeout window. All fills happen strictly after the signal
// bar.
type Engine struct {
	metrics repository.Metrics
	log     *logger.Logger
	workers int
}

func New(m repository.Metrics, log *logger.Logger, workers int) *Engine {
	if workers <= 0 {
		workers = 4
	}
	return &Engine{metrics: m, log: log, workers: workers}
}

// Run validates the rules, simulates every symbol, and returns the merged
// trade ledger ordered by entry time. Invalid rules fail the whole run up
// front; they are never silently adjusted.
func (e *Engine) Run(ctx context.Context, signals []models.Signal, rows map[string][]models.FeatureRow,
	rules models.ExecutionRules, rng models.DateRange) (*models.BacktestResult, error) {

	if err := checkRules(rules); err != nil {
		return nil, err
	}

	started := time.Now()
	bySymbol := make(map[string][]models.Signal)
	for _, sig := range signals {
		if rng.Contains(sig.Timestamp) {
			bySymbol[sig.Symbol] = append(bySymbol[sig.Symbol], sig)
		}
	}

	symbols := make([]string, 0, len(bySymbol))
	for sym := range bySymbol {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		sem    = make(chan struct{}, e.workers)
		trades []models.Trade
	)
	for _, sym := range symbols {
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil, ctx.Err()
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			defer func() { <-sem }()

			out := simulateSymbol(rows[sym], bySymbol[sym], rules)
			mu.Lock()
			trades = append(trades, out...)
			mu.Unlock()
		}(sym)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(trades, func(i, j int) bool {
		a, b := trades[i], trades[j]
		if !a.EntryTime.Equal(b.EntryTime) {
			return a.EntryTime.Before(b.EntryTime)
		}
		return a.Symbol < b.Symbol
	})

	e.metrics.RecordBacktest(len(trades), time.Since(started).Seconds())
	e.log.Info("backtest complete",
		logger.Int("signals", len(signals)),
		logger.Int("symbols", len(symbols)),
		logger.Int("trades", len(trades)),
		logger.Duration("elapsed", time.Since(started)))

	return &models.BacktestResult{
		Ref:       uuid.NewString(),
		Trades:    trades,
		Range:     rng,
		Rules:     rules,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func checkRules(r models.ExecutionRules) error {
	if r.StopATRMult <= 0 {
		return &models.InvalidParameterError{Name: "stop_atr_mult", Value: r.StopATRMult, Reason: "must be positive"}
	}
	if r.Entry != "market" && r.Entry != "limit" {
		return &models.InvalidParameterError{Name: "entry", Reason: "must be market or limit"}
	}
	if r.Entry == "limit" && r.EntryTimeoutBars <= 0 {
		return &models.InvalidParameterError{Name: "entry_timeout_bars", Value: float64(r.EntryTimeoutBars), Reason: "must be positive for limit entries"}
	}
	if r.TrailingAfterR > 0 && r.TrailingATRMult <= 0 {
		return &models.InvalidParameterError{Name: "trailing_atr_mult", Value: r.TrailingATRMult, Reason: "must be positive when trailing is enabled"}
	}
	if r.Pyramiding && r.MaxPyramids < 1 {
		return &models.InvalidParameterError{Name: "max_pyramids", Value: float64(r.MaxPyramids), Reason: "must be at least 1"}
	}
	return nil
}

type pending struct {
	sig      models.Signal
	limitPx  float64
	deadline int // last row index at which the entry may still fill
}

type position struct {
	sig       models.Signal
	dir       float64 // +1 long, -1 short
	qty       float64
	avgEntry  float64
	stop      float64
	target    float64
	risk      float64 // per-unit initial risk distance
	trailing  bool
	entryIdx  int
	entryTime time.Time
	adds      int
	addQueued bool
}

// simulateSymbol walks one symbol's rows in time order, applying the entry
// and exit rules. Signal lookups are by row index so a fill can never occur
// on or before its signal bar.
func simulateSymbol(rows []models.FeatureRow, sigs []models.Signal, rules models.ExecutionRules) []models.Trade {
	if len(rows) == 0 || len(sigs) == 0 {
		return nil
	}

	sigAt := make(map[time.Time]models.Signal, len(sigs))
	for _, s := range sigs {
		sigAt[s.Timestamp] = s
	}

	var (
		trades []models.Trade
		pend   *pending
		pos    *position
	)
	for i, row := range rows {
		bar := row.Bar

		// Queued pyramid add fills at this bar's open.
		if pos != nil && pos.addQueued {
			pos.addQueued = false
			addUnit(pos, bar.Open, row.ATR, rules)
		}

		// Pending entry resolution.
		if pos == nil && pend != nil {
			if px, ok := fillPrice(pend, bar, rules); ok {
				pos = openPosition(pend.sig, px, i, bar.Timestamp, row.ATR, rules)
				pend = nil
			} else if i >= pend.deadline {
				pend = nil // entry timed out unfilled
			}
		}

		// Exit evaluation for the open position.
		if pos != nil {
			if t, closed := evaluateExits(pos, row, i, rules); closed {
				trades = append(trades, t)
				pos = nil
			}
		}

		// New signal on this bar: arm an entry when flat, queue an add when
		// pyramiding allows one.
		if sig, ok := sigAt[bar.Timestamp]; ok {
			switch {
			case pos == nil && pend == nil:
				pend = armEntry(sig, i, rules)
			case pos != nil && rules.Pyramiding && pos.adds < rules.MaxPyramids &&
				models.Direction(dirName(pos.dir)) == sig.Direction:
				pos.addQueued = true
			}
		}
	}

	// Whatever is still open closes at the final bar.
	if pos != nil {
		last := rows[len(rows)-1]
		trades = append(trades, closeTrade(pos, last.Bar.Close, last.Timestamp, len(rows)-1, models.ExitEndOfRun))
	}
	return trades
}

func armEntry(sig models.Signal, signalIdx int, rules models.ExecutionRules) *pending {
	p := &pending{sig: sig, deadline: signalIdx + rules.EntryTimeoutBars}
	if rules.Entry == "limit" {
		off := sig.EntryRef * rules.LimitOffsetFrac
		if sig.Direction == models.Long {
			p.limitPx = sig.EntryRef - off
		} else {
			p.limitPx = sig.EntryRef + off
		}
	} else {
		p.deadline = signalIdx + 1
	}
	return p
}

// fillPrice decides whether the pending entry fills on this bar. Market
// orders take the open. Limit orders fill on touch, at the open when the bar
// gaps through the limit.
func fillPrice(p *pending, bar models.Bar, rules models.ExecutionRules) (float64, bool) {
	if rules.Entry == "market" {
		return bar.Open, true
	}
	if p.sig.Direction == models.Long {
		if bar.Open <= p.limitPx {
			return bar.Open, true
		}
		if bar.Low <= p.limitPx {
			return p.limitPx, true
		}
	} else {
		if bar.Open >= p.limitPx {
			return bar.Open, true
		}
		if bar.High >= p.limitPx {
			return p.limitPx, true
		}
	}
	return 0, false
}

func openPosition(sig models.Signal, entryPx float64, idx int, ts time.Time, atr float64, rules models.ExecutionRules) *position {
	dir := 1.0
	if sig.Direction == models.Short {
		dir = -1
	}
	risk := rules.StopATRMult * atr
	if risk <= 0 {
		// Cold ATR at the fill bar: fall back to the signal's reference stop.
		risk = dir * (entryPx - sig.StopRef)
	}
	pos := &position{
		sig:       sig,
		dir:       dir,
		qty:       1,
		avgEntry:  entryPx,
		risk:      risk,
		stop:      entryPx - dir*risk,
		entryIdx:  idx,
		entryTime: ts,
	}
	if rules.TakeProfitR > 0 {
		pos.target = entryPx + dir*rules.TakeProfitR*risk
	}
	return pos
}

// addUnit blends a pyramid add into the position: average entry moves, the
// stop is re-anchored off the blended entry at the current ATR, and the
// target keeps its original R multiple from the new average.
func addUnit(pos *position, px, atr float64, rules models.ExecutionRules) {
	pos.avgEntry = (pos.avgEntry*pos.qty + px) / (pos.qty + 1)
	pos.qty++
	pos.adds++
	if !pos.trailing {
		pos.stop = pos.avgEntry - pos.dir*rules.StopATRMult*atr
	}
	if rules.TakeProfitR > 0 {
		pos.target = pos.avgEntry + pos.dir*rules.TakeProfitR*pos.risk
	}
}

// evaluateExits applies the bar to the open position. Precedence within one
// bar: an open gapping through the stop, then the stop, then the target, then
// the time limit at the close. When a bar spans both stop and target the stop
// wins; the simulation takes the adverse outcome.
func evaluateExits(pos *position, row models.FeatureRow, idx int, rules models.ExecutionRules) (models.Trade, bool) {
	bar := row.Bar
	if idx <= pos.entryIdx {
		// Entry bar: only a gap or touch after the fill can stop it out.
		if touched(pos, bar, pos.stop) {
			return closeTrade(pos, stopExitPx(pos, bar), bar.Timestamp, idx, stopReason(pos)), true
		}
		pos.updateTrailing(row, rules)
		return models.Trade{}, false
	}

	if pos.dir > 0 && bar.Open <= pos.stop || pos.dir < 0 && bar.Open >= pos.stop {
		return closeTrade(pos, bar.Open, bar.Timestamp, idx, stopReason(pos)), true
	}
	if touched(pos, bar, pos.stop) {
		return closeTrade(pos, pos.stop, bar.Timestamp, idx, stopReason(pos)), true
	}
	if pos.target != 0 {
		if pos.dir > 0 && bar.High >= pos.target || pos.dir < 0 && bar.Low <= pos.target {
			px := pos.target
			if pos.dir > 0 && bar.Open >= pos.target || pos.dir < 0 && bar.Open <= pos.target {
				px = bar.Open
			}
			return closeTrade(pos, px, bar.Timestamp, idx, models.ExitTarget), true
		}
	}

	pos.updateTrailing(row, rules)

	if rules.MaxHoldBars > 0 && idx-pos.entryIdx >= rules.MaxHoldBars {
		return closeTrade(pos, bar.Close, bar.Timestamp, idx, models.ExitTime), true
	}
	return models.Trade{}, false
}

// updateTrailing arms the trail once the close clears the activation R
// multiple, then ratchets the stop toward price. The stop only ever tightens.
func (pos *position) updateTrailing(row models.FeatureRow, rules models.ExecutionRules) {
	if rules.TrailingAfterR <= 0 || rules.TrailingATRMult <= 0 {
		return
	}
	last := row.Bar.Close
	if !pos.trailing {
		if pos.dir*(last-pos.avgEntry) >= rules.TrailingAfterR*pos.risk {
			pos.trailing = true
		} else {
			return
		}
	}
	candidate := last - pos.dir*rules.TrailingATRMult*row.ATR
	if pos.dir*(candidate-pos.stop) > 0 {
		pos.stop = candidate
	}
}

func touched(pos *position, bar models.Bar, level float64) bool {
	if pos.dir > 0 {
		return bar.Low <= level
	}
	return bar.High >= level
}

func stopExitPx(pos *position, bar models.Bar) float64 {
	if pos.dir > 0 && bar.Open <= pos.stop || pos.dir < 0 && bar.Open >= pos.stop {
		return bar.Open
	}
	return pos.stop
}

func stopReason(pos *position) models.ExitReason {
	if pos.trailing {
		return models.ExitTrailing
	}
	return models.ExitStop
}

func closeTrade(pos *position, px float64, ts time.Time, idx int, reason models.ExitReason) models.Trade {
	ret := pos.dir * (px - pos.avgEntry) / pos.avgEntry
	return models.Trade{
		Symbol:    pos.sig.Symbol,
		SetupType: pos.sig.SetupType,
		Direction: pos.sig.Direction,
		EntryTime: pos.entryTime,
		EntryPx:   pos.avgEntry,
		ExitTime:  ts,
		ExitPx:    px,
		StopPx:    pos.stop,
		Quantity:  pos.qty,
		PnL:       pos.dir * (px - pos.avgEntry) * pos.qty,
		ReturnPct: ret,
		HoldBars:  idx - pos.entryIdx,
		Reason:    reason,
	}
}

func dirName(dir float64) string {
	if dir > 0 {
		return string(models.Long)
	}
	return string(models.Short)
}
