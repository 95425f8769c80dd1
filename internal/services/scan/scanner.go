package scan

import (
	"context"
	"sort"
	"sync"
	"time"

	"MarketSweep/internal/domain/models"
	"MarketSweep/internal/domain/repository"
	"MarketSweep/internal/services/features"
	"MarketSweep/internal/services/setups"
	"MarketSweep/pkg/logger"
)

// Result is one completed scan: the merged signal stream plus the feature
// rows per surviving symbol, kept for the backtest engine to replay against.
type Result struct {
	Signals     []models.Signal
	Rows        map[string][]models.FeatureRow
	Scanned     int // every symbol examined, pre-filter rejections included
	Prefiltered int
	Params      models.ParameterSet
}

// Scanner runs the per-symbol feature pipeline across a universe and merges
// the detected signals into one deterministic stream. Symbols are independent
// and processed by a bounded worker pool.
type Scanner struct {
	registry    *setups.Registry
	metrics     repository.Metrics
	log         *logger.Logger
	concurrency int
}

func New(registry *setups.Registry, m repository.Metrics, log *logger.Logger, concurrency int) *Scanner {
	if concurrency <= 0 {
		concurrency = 16
	}
	return &Scanner{registry: registry, metrics: m, log: log, concurrency: concurrency}
}

// Scan resolves the setup, validates parameters up front, and runs both
// feature passes over every symbol's buffer. Detection sees only warm rows;
// indicator values are always computed from the full buffer so the same
// symbol always yields the same rows no matter what else was scanned.
func (s *Scanner) Scan(ctx context.Context, bars map[string][]models.Bar, setupName string, params models.ParameterSet) (*Result, error) {
	started := time.Now()

	setup, err := s.registry.Get(setupName)
	if err != nil {
		return nil, err
	}
	resolved, err := setups.Resolve(setup, params)
	if err != nil {
		return nil, err
	}

	lb := features.LookbacksFrom(resolved)
	pre := setup.PreFilter(resolved)

	symbols := make([]string, 0, len(bars))
	for sym := range bars {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	res := &Result{
		Rows:   make(map[string][]models.FeatureRow, len(symbols)),
		Params: resolved,
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, s.concurrency)
	)
	for _, sym := range symbols {
		select {
		case <-ctx.Done():
			wg.Wait()
			return res, ctx.Err()
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			defer func() { <-sem }()

			buf := bars[sym]
			if !pre.Pass(buf) {
				mu.Lock()
				res.Scanned++
				res.Prefiltered++
				mu.Unlock()
				return
			}
			rows := features.BuildRows(sym, buf, lb)
			sigs := setup.Detect(rows, resolved)

			mu.Lock()
			res.Scanned++
			res.Rows[sym] = rows
			res.Signals = append(res.Signals, sigs...)
			mu.Unlock()
		}(sym)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return res, err
	}

	sortSignals(res.Signals)
	s.metrics.RecordScan(len(symbols), len(res.Signals), 0, time.Since(started).Seconds())
	s.log.Info("scan complete",
		logger.String("setup", setupName),
		logger.Int("symbols", len(symbols)),
		logger.Int("prefiltered", res.Prefiltered),
		logger.Int("signals", len(res.Signals)),
		logger.Duration("elapsed", time.Since(started)))
	return res, nil
}

// sortSignals orders by timestamp, then symbol, then setup type. The stream
// is fully deterministic for a given input regardless of worker scheduling.
func sortSignals(sigs []models.Signal) {
	sort.Slice(sigs, func(i, j int) bool {
		a, b := sigs[i], sigs[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		return a.SetupType < b.SetupType
	})
}
