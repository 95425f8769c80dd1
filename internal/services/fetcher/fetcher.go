package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"MarketSweep/internal/domain/models"
	"MarketSweep/internal/domain/repository"
	"MarketSweep/internal/service/cache"
	"MarketSweep/internal/service/ratelimit"
	"MarketSweep/internal/services/universe"
	"MarketSweep/pkg/logger"
	"MarketSweep/pkg/util"
)

// Config tunes the grouped fetch stage.
type Config struct {
	BatchSize       int
	MaxRetries      int
	RetryBackoff    time.Duration
	MaxRetryBackoff time.Duration
	Concurrency     int
	MaxRPS          float64
	CacheTTL        time.Duration
	MinHistoryBars  int
}

// Fetcher retrieves bars for a whole universe in batched provider calls.
// Individual symbol failures never abort the fetch: they are collected and
// returned alongside the bars that did arrive.
type Fetcher struct {
	provider repository.BarProvider
	sink     repository.BarSink // optional bar persistence
	cache    cache.BytesCache   // optional result cache
	limiter  *ratelimit.Limiter
	metrics  repository.Metrics
	log      *logger.Logger
	cfg      Config
}

func New(provider repository.BarProvider, sink repository.BarSink, c cache.BytesCache,
	limiter *ratelimit.Limiter, m repository.Metrics, log *logger.Logger, cfg Config) *Fetcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 250 * time.Millisecond
	}
	if cfg.MaxRetryBackoff <= 0 {
		cfg.MaxRetryBackoff = 5 * time.Second
	}
	return &Fetcher{provider: provider, sink: sink, cache: c, limiter: limiter, metrics: m, log: log, cfg: cfg}
}

// Fetch retrieves bars for symbols over rng. On cancellation the bars fetched
// so far are returned together with ctx.Err so callers can report a partial
// result instead of discarding completed work.
func (f *Fetcher) Fetch(ctx context.Context, symbols []string, rng models.DateRange) (*models.FetchResult, error) {
	if !rng.Valid() {
		return nil, fmt.Errorf("invalid date range: start %v end %v", rng.Start, rng.End)
	}
	if len(symbols) == 0 {
		return &models.FetchResult{Bars: map[string][]models.Bar{}}, nil
	}
	// Daily bars: align the range so equivalent requests share a cache key.
	rng.Start, rng.End = util.AlignFromTo(rng.Start, rng.End, "1d")

	key := f.cacheKey(symbols, rng)
	if res, ok := f.fromCache(key); ok {
		f.log.Debug("bar cache hit", logger.String("key", key), logger.Int("symbols", len(symbols)))
		return res, nil
	}

	chunks := chunk(symbols, f.cfg.BatchSize)
	result := &models.FetchResult{Bars: make(map[string][]models.Bar, len(symbols))}

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		sem  = make(chan struct{}, f.cfg.Concurrency)
		done = ctx.Done()
	)

loop:
	for _, ch := range chunks {
		select {
		case <-done:
			break loop
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(syms []string) {
			defer wg.Done()
			defer func() { <-sem }()

			bars, err := f.fetchChunk(ctx, syms, rng)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				for _, s := range syms {
					result.Failed = append(result.Failed, models.FailedSymbol{Symbol: s, Reason: err.Error()})
				}
				f.metrics.RecordFetchBatch("error", len(syms))
				return
			}
			for _, s := range syms {
				sb, ok := bars[s]
				switch {
				case !ok || len(sb) == 0:
					result.Failed = append(result.Failed, models.FailedSymbol{Symbol: s, Reason: "no data"})
				case len(sb) < f.cfg.MinHistoryBars:
					result.Failed = append(result.Failed, models.FailedSymbol{
						Symbol: s,
						Reason: fmt.Sprintf("insufficient history: %d bars, need %d", len(sb), f.cfg.MinHistoryBars),
					})
				default:
					sortBars(sb)
					result.Bars[s] = sb
				}
			}
			f.metrics.RecordFetchBatch("ok", len(syms))
		}(ch)
	}
	wg.Wait()

	sort.Slice(result.Failed, func(i, j int) bool { return result.Failed[i].Symbol < result.Failed[j].Symbol })

	if err := ctx.Err(); err != nil {
		return result, err
	}

	f.toCache(key, result)
	if f.sink != nil && len(result.Bars) > 0 {
		if err := f.sink.StoreBars(ctx, result.Bars); err != nil {
			f.log.Warn("bar persistence failed", logger.Error(err))
		}
	}
	if len(result.Failed) > 0 {
		f.log.Warn("fetch completed with exclusions",
			logger.Int("fetched", len(result.Bars)),
			logger.Int("failed", len(result.Failed)))
	}
	return result, nil
}

// Invalidate drops the cached bars for this universe and range so the next
// Fetch goes back to the provider.
func (f *Fetcher) Invalidate(symbols []string, rng models.DateRange) error {
	if f.cache == nil || !rng.Valid() {
		return nil
	}
	rng.Start, rng.End = util.AlignFromTo(rng.Start, rng.End, "1d")
	return f.cache.Delete(f.cacheKey(symbols, rng))
}

func (f *Fetcher) fetchChunk(ctx context.Context, syms []string, rng models.DateRange) (map[string][]models.Bar, error) {
	backoff := f.cfg.RetryBackoff
	var lastErr error
	for attempt := 0; attempt <= f.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > f.cfg.MaxRetryBackoff {
				backoff = f.cfg.MaxRetryBackoff
			}
		}
		if err := f.waitForToken(ctx); err != nil {
			return nil, err
		}

		bars, err := f.provider.FetchBatch(ctx, syms, rng)
		if err == nil {
			return bars, nil
		}
		lastErr = err
		f.metrics.RecordError("fetch_batch")
		f.log.Warn("batch fetch attempt failed",
			logger.Int("attempt", attempt+1),
			logger.Int("symbols", len(syms)),
			logger.Error(err))
	}
	return nil, fmt.Errorf("fetch batch after %d attempts: %w", f.cfg.MaxRetries+1, lastErr)
}

func (f *Fetcher) waitForToken(ctx context.Context) error {
	if f.limiter == nil || f.cfg.MaxRPS <= 0 {
		return nil
	}
	for !f.limiter.Allow("provider", f.cfg.MaxRPS, f.cfg.MaxRPS) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(20 * time.Millisecond):
		}
	}
	return nil
}

func (f *Fetcher) cacheKey(symbols []string, rng models.DateRange) string {
	return fmt.Sprintf("bars:%x:%s:%s",
		universe.Hash(symbols),
		rng.Start.UTC().Format("20060102"),
		rng.End.UTC().Format("20060102"))
}

func (f *Fetcher) fromCache(key string) (*models.FetchResult, bool) {
	if f.cache == nil {
		return nil, false
	}
	b, ok, err := f.cache.GetBytes(key)
	if err != nil || !ok {
		return nil, false
	}
	var res models.FetchResult
	if err := json.Unmarshal(b, &res); err != nil {
		return nil, false
	}
	return &res, true
}

func (f *Fetcher) toCache(key string, res *models.FetchResult) {
	if f.cache == nil || f.cfg.CacheTTL <= 0 {
		return
	}
	b, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := f.cache.SetBytes(key, b, f.cfg.CacheTTL); err != nil {
		f.log.Warn("bar cache write failed", logger.Error(err))
	}
}

func chunk(symbols []string, size int) [][]string {
	var out [][]string
	for len(symbols) > size {
		out = append(out, symbols[:size])
		symbols = symbols[size:]
	}
	if len(symbols) > 0 {
		out = append(out, symbols)
	}
	return out
}

func sortBars(bars []models.Bar) {
	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
}
