package repository

import (
	"context"

	"MarketSweep/internal/domain/models"
)

// BarProvider retrieves OHLCV bars for a batch of symbols in one upstream
// round trip. Implementations must never fire one request per symbol.
type BarProvider interface {
	// FetchBatch returns bars for the requested symbols over the range.
	// Symbols missing from the result are reported by the fetcher as failed.
	FetchBatch(ctx context.Context, symbols []string, rng models.DateRange) (map[string][]models.Bar, error)

	// ListSymbols returns the provider's full listed universe, used when a
	// scan asks for "ALL".
	ListSymbols(ctx context.Context) ([]string, error)

	Health(ctx context.Context) error
}

// BarSink persists fetched bars for later provider-side reads. Optional.
type BarSink interface {
	StoreBars(ctx context.Context, bars map[string][]models.Bar) error
}

// SignalPublisher fans out aggregated signals (e.g. to Kafka).
type SignalPublisher interface {
	PublishSignals(ctx context.Context, signals []models.Signal) error
	Close() error
}

// ResultStore keeps BacktestResults addressable by ref for the analysis
// endpoints. Entries expire; the engine itself holds no long-lived state.
type ResultStore interface {
	Put(ctx context.Context, res *models.BacktestResult) error
	Get(ctx context.Context, ref string) (*models.BacktestResult, error)
	Delete(ctx context.Context, ref string) error
}

// Metrics records operational measurements.
type Metrics interface {
	RecordScan(symbols, signals, failed int, seconds float64)
	RecordBacktest(trades int, seconds float64)
	RecordFetchBatch(result string, symbols int)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
