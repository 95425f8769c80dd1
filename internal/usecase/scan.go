package usecase

import (
	"context"
	"errors"

	"MarketSweep/internal/domain/models"
	"MarketSweep/internal/domain/repository"
	"MarketSweep/internal/services/fetcher"
	"MarketSweep/internal/services/scan"
	"MarketSweep/internal/services/universe"
	"MarketSweep/pkg/logger"
)

// ScanUsecase wires the three pipeline stages: universe resolution and
// grouped fetch, the per-symbol feature pipeline, and signal aggregation.
type ScanUsecase struct {
	universe  *universe.Provider
	fetcher   *fetcher.Fetcher
	scanner   *scan.Scanner
	publisher repository.SignalPublisher
	log       *logger.Logger
}

func NewScanUsecase(u *universe.Provider, f *fetcher.Fetcher, s *scan.Scanner,
	pub repository.SignalPublisher, log *logger.Logger) *ScanUsecase {
	return &ScanUsecase{universe: u, fetcher: f, scanner: s, publisher: pub, log: log}
}

// Materialized is a completed scan with the intermediate state later stages
// replay against.
type Materialized struct {
	Scan      *scan.Result
	Fetch     *models.FetchResult
	Symbols   int
	Cancelled bool
}

// Materialize runs the pipeline and keeps the feature rows for the backtest
// engine. A cancelled context yields the partial state accumulated so far.
func (u *ScanUsecase) Materialize(ctx context.Context, req models.ScanRequest) (*Materialized, error) {
	symbols, err := u.universe.Resolve(ctx, req.Universe)
	if err != nil {
		return nil, err
	}

	fetch, err := u.fetcher.Fetch(ctx, symbols, req.DateRange)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}
	cancelled := err != nil

	if !cancelled && len(fetch.Bars) == 0 && len(fetch.Failed) > 0 {
		// Nothing survived the fetch; there is no partial result to scan.
		return nil, &models.DataFetchError{Failed: fetch.Failed}
	}

	res, err := u.scanner.Scan(ctx, fetch.Bars, req.SetupType, req.Parameters)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			cancelled = true
		} else {
			return nil, err
		}
	}
	return &Materialized{Scan: res, Fetch: fetch, Symbols: len(symbols), Cancelled: cancelled}, nil
}

// Execute runs a scan for the HTTP and Kafka intakes and fans the signals out
// to the configured publisher.
func (u *ScanUsecase) Execute(ctx context.Context, req models.ScanRequest) (*models.ScanResponse, error) {
	mat, err := u.Materialize(ctx, req)
	if err != nil {
		return nil, err
	}

	resp := &models.ScanResponse{
		Signals:        mat.Scan.Signals,
		SymbolsScanned: mat.Scan.Scanned,
		FailedSymbols:  mat.Fetch.Failed,
		Status:         scanStatus(mat),
	}
	if resp.Signals == nil {
		resp.Signals = []models.Signal{}
	}

	if len(resp.Signals) > 0 {
		if err := u.publisher.PublishSignals(ctx, resp.Signals); err != nil {
			// fan-out is best effort; the scan result is already complete
			u.log.Warn("signal publish failed", logger.Error(err))
		}
	}
	return resp, nil
}

func scanStatus(mat *Materialized) string {
	switch {
	case mat.Cancelled:
		return "cancelled"
	case len(mat.Fetch.Failed) > 0:
		return "partial"
	default:
		return "ok"
	}
}
