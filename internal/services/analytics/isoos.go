package analytics

import (
	"math"

	"MarketSweep/internal/domain/models"
)

// ValidatorConfig weights the per-metric degradations and sets the decay
// levels that flag a strategy as overfit on their own.
type ValidatorConfig struct {
	ReturnDecayWeight  float64
	SharpeDecayWeight  float64
	WinRateDecayWeight float64
	DrawdownWeight     float64
	SharpeDecayConcern float64
	ReturnDecayConcern float64
}

// Validator compares in-sample and out-of-sample performance of one ledger.
type Validator struct {
	cfg ValidatorConfig
}

func NewValidator(cfg ValidatorConfig) *Validator {
	return &Validator{cfg: cfg}
}

// Validate splits the result's trades by entry time into the two windows,
// computes both metric vectors, and scores the degradation. Too few
// out-of-sample trades is an explicit insufficient-data error, not a verdict.
func (v *Validator) Validate(res *models.BacktestResult, is, oos models.DateRange, minOOSTrades int) (*models.ValidateResponse, error) {
	var isTrades, oosTrades []models.Trade
	for _, t := range res.Trades {
		switch {
		case is.Contains(t.EntryTime):
			isTrades = append(isTrades, t)
		case oos.Contains(t.EntryTime):
			oosTrades = append(oosTrades, t)
		}
	}
	if len(oosTrades) < minOOSTrades {
		return nil, &models.InsufficientDataError{What: "out-of-sample trades", Need: minOOSTrades, Have: len(oosTrades)}
	}
	if len(isTrades) == 0 {
		return nil, &models.InsufficientDataError{What: "in-sample trades", Need: 1, Have: 0}
	}

	isM := Compute(isTrades, is)
	oosM := Compute(oosTrades, oos)

	type part struct {
		name   string
		weight float64
		is, oo float64
		decay  float64
		ok     bool
	}
	parts := []part{
		{name: "annualized_return", weight: v.cfg.ReturnDecayWeight,
			is: isM.AnnualizedReturn, oo: oosM.AnnualizedReturn,
			decay: decay(isM.AnnualizedReturn, oosM.AnnualizedReturn), ok: true},
		{name: "sharpe", weight: v.cfg.SharpeDecayWeight,
			is: isM.Sharpe, oo: oosM.Sharpe,
			decay: decay(isM.Sharpe, oosM.Sharpe),
			ok:    isM.Defined("sharpe") && oosM.Defined("sharpe")},
		{name: "win_rate", weight: v.cfg.WinRateDecayWeight,
			is: isM.WinRate, oo: oosM.WinRate,
			decay: decay(isM.WinRate, oosM.WinRate), ok: true},
		{name: "max_drawdown", weight: v.cfg.DrawdownWeight,
			is: isM.MaxDrawdown, oo: oosM.MaxDrawdown,
			decay: drawdownDecay(isM.MaxDrawdown, oosM.MaxDrawdown), ok: true},
	}

	resp := &models.ValidateResponse{InSample: isM, OutOfSample: oosM}
	var weighted, weightSum float64
	for _, p := range parts {
		if !p.ok {
			continue
		}
		resp.Degradations = append(resp.Degradations, models.Degradation{
			Metric: p.name, InSample: p.is, OutOf: p.oo, Decay: p.decay,
		})
		weighted += p.weight * p.decay
		weightSum += p.weight
	}
	if weightSum > 0 {
		resp.OverfittingScore = weighted / weightSum
	}

	sharpeDecay := decay(isM.Sharpe, oosM.Sharpe)
	returnDecay := decay(isM.AnnualizedReturn, oosM.AnnualizedReturn)
	resp.Overfit = resp.OverfittingScore >= 0.5 ||
		(isM.Defined("sharpe") && oosM.Defined("sharpe") && sharpeDecay > v.cfg.SharpeDecayConcern) ||
		returnDecay > v.cfg.ReturnDecayConcern

	return resp, nil
}

// decay is the relative in-sample to out-of-sample drop, clipped to [0, 1].
// Out-of-sample improvement is zero decay, never a negative credit.
func decay(is, oos float64) float64 {
	if oos >= is {
		return 0
	}
	if math.Abs(is) < 1e-9 {
		return 1
	}
	return clip01((is - oos) / math.Abs(is))
}

// drawdownDecay treats a deeper out-of-sample drawdown as degradation.
func drawdownDecay(isDD, oosDD float64) float64 {
	if oosDD <= isDD {
		return 0
	}
	base := isDD
	if base < 0.01 {
		base = 0.01
	}
	return clip01((oosDD - isDD) / base)
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
