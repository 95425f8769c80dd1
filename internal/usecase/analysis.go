package usecase

import (
	"context"

	"MarketSweep/internal/domain/models"
	"MarketSweep/internal/domain/repository"
	"MarketSweep/internal/services/analytics"
)

// AnalysisUsecase serves the post-backtest endpoints: IS/OOS validation and
// Monte Carlo simulation over stored ledgers.
type AnalysisUsecase struct {
	store     repository.ResultStore
	validator *analytics.Validator
	mc        analytics.MonteCarlo
	metrics   repository.Metrics
}

func NewAnalysisUsecase(store repository.ResultStore, v *analytics.Validator, m repository.Metrics) *AnalysisUsecase {
	return &AnalysisUsecase{store: store, validator: v, metrics: m}
}

// Validate splits a stored ledger into in-sample and out-of-sample windows
// and scores the degradation.
func (u *AnalysisUsecase) Validate(ctx context.Context, req models.ValidateRequest) (*models.ValidateResponse, error) {
	res, err := u.store.Get(ctx, req.ResultRef)
	if err != nil {
		return nil, err
	}
	resp, err := u.validator.Validate(res, req.InSample, req.OutOfSample, req.MinOOSTrades)
	if err != nil {
		u.metrics.RecordError("validate")
		return nil, err
	}
	return resp, nil
}

// MonteCarlo resamples a stored ledger's trade sequence.
func (u *AnalysisUsecase) MonteCarlo(ctx context.Context, req models.MonteCarloRequest) (*models.MonteCarloResponse, error) {
	res, err := u.store.Get(ctx, req.ResultRef)
	if err != nil {
		return nil, err
	}
	resp, err := u.mc.Simulate(ctx, res, req)
	if err != nil {
		u.metrics.RecordError("montecarlo")
		return nil, err
	}
	return resp, nil
}
