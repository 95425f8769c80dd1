package usecase

import (
	"context"
	"fmt"
	"time"

	"MarketSweep/internal/domain/models"
	"MarketSweep/internal/domain/repository"
	"MarketSweep/internal/services/analytics"
	"MarketSweep/internal/services/backtest"
	"MarketSweep/internal/services/features"
	"MarketSweep/internal/services/fetcher"
	"MarketSweep/pkg/logger"
)

// BacktestUsecase replays signals under execution rules and stores the ledger
// for the validation, Monte Carlo, and inspection endpoints.
type BacktestUsecase struct {
	scan    *ScanUsecase
	fetcher *fetcher.Fetcher
	engine  *backtest.Engine
	store   repository.ResultStore
	log     *logger.Logger
}

func NewBacktestUsecase(scan *ScanUsecase, f *fetcher.Fetcher, e *backtest.Engine,
	store repository.ResultStore, log *logger.Logger) *BacktestUsecase {
	return &BacktestUsecase{scan: scan, fetcher: f, engine: e, store: store, log: log}
}

// Execute runs the backtest. Signals come either from an embedded scan or
// inline from the caller; inline signals get their bars re-fetched so the
// engine has full rows to replay against.
func (u *BacktestUsecase) Execute(ctx context.Context, req models.BacktestRequest) (*models.BacktestResponse, error) {
	var (
		signals   []models.Signal
		rows      map[string][]models.FeatureRow
		scanResp  *models.ScanResponse
		setupType string
		params    models.ParameterSet
	)

	switch {
	case req.Scan != nil:
		mat, err := u.scan.Materialize(ctx, *req.Scan)
		if err != nil {
			return nil, err
		}
		signals = mat.Scan.Signals
		rows = mat.Scan.Rows
		setupType = req.Scan.SetupType
		params = mat.Scan.Params
		scanResp = &models.ScanResponse{
			Signals:        signals,
			SymbolsScanned: mat.Scan.Scanned,
			FailedSymbols:  mat.Fetch.Failed,
			Status:         scanStatus(mat),
		}
	case len(req.Signals) > 0:
		signals = req.Signals
		var err error
		rows, err = u.rowsForSignals(ctx, req.Signals, req.DateRange)
		if err != nil {
			return nil, err
		}
		setupType = req.Signals[0].SetupType
	default:
		return nil, fmt.Errorf("either scan or signals is required")
	}

	result, err := u.engine.Run(ctx, signals, rows, req.Rules, req.DateRange)
	if err != nil {
		return nil, err
	}
	result.SetupType = setupType
	result.Params = params

	if err := u.store.Put(ctx, result); err != nil {
		u.log.Warn("result store put failed", logger.Error(err))
	}

	status := "ok"
	if scanResp != nil && scanResp.Status != "ok" {
		status = scanResp.Status
	}
	return &models.BacktestResponse{
		ResultRef: result.Ref,
		Trades:    result.Trades,
		Metrics:   analytics.Compute(result.Trades, req.DateRange),
		Scan:      scanResp,
		Status:    status,
	}, nil
}

// Lookup returns a stored result by ref.
func (u *BacktestUsecase) Lookup(ctx context.Context, ref string) (*models.BacktestResult, error) {
	return u.store.Get(ctx, ref)
}

// rowsForSignals rebuilds feature rows for inline signals: fetch the bars of
// every referenced symbol over the range and run the full indicator pass with
// default lookbacks.
func (u *BacktestUsecase) rowsForSignals(ctx context.Context, signals []models.Signal, rng models.DateRange) (map[string][]models.FeatureRow, error) {
	seen := make(map[string]struct{})
	var symbols []string
	for _, sig := range signals {
		if _, ok := seen[sig.Symbol]; ok {
			continue
		}
		seen[sig.Symbol] = struct{}{}
		symbols = append(symbols, sig.Symbol)
	}

	started := time.Now()
	fetch, err := u.fetcher.Fetch(ctx, symbols, rng)
	if err != nil {
		return nil, err
	}
	lb := features.LookbacksFrom(models.ParameterSet{})
	rows := make(map[string][]models.FeatureRow, len(fetch.Bars))
	for sym, bars := range fetch.Bars {
		rows[sym] = features.BuildRows(sym, bars, lb)
	}
	u.log.Debug("rebuilt rows for inline signals",
		logger.Int("symbols", len(symbols)),
		logger.Duration("elapsed", time.Since(started)))
	return rows, nil
}
