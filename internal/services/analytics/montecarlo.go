package analytics

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"MarketSweep/internal/domain/models"
)

// Monte Carlo resampling methods.
const (
	MCShuffle   = "shuffle"
	MCResample  = "resample"
	MCBootstrap = "bootstrap"
)

// MonteCarlo estimates the distribution of outcomes a ledger could have
// produced under reordered or resampled trade sequences. A fixed seed makes
// a run fully reproducible.
type MonteCarlo struct{}

// Simulate runs the requested number of simulations over the result's trades.
func (MonteCarlo) Simulate(ctx context.Context, res *models.BacktestResult, req models.MonteCarloRequest) (*models.MonteCarloResponse, error) {
	trades := res.Trades
	if len(trades) < 2 {
		return nil, &models.InsufficientDataError{What: "trades for simulation", Need: 2, Have: len(trades)}
	}

	seed := req.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	vectors := make([]models.MetricsVector, 0, req.Simulations)
	sample := make([]models.Trade, len(trades))
	for i := 0; i < req.Simulations; i++ {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		switch req.Method {
		case MCResample:
			for j := range sample {
				sample[j] = trades[rng.Intn(len(trades))]
			}
		case MCBootstrap:
			blockSample(sample, trades, rng)
		default: // shuffle
			copy(sample, trades)
			rng.Shuffle(len(sample), func(a, b int) { sample[a], sample[b] = sample[b], sample[a] })
		}
		vectors = append(vectors, Compute(sample, res.Range))
	}

	resp := &models.MonteCarloResponse{
		Simulations: len(vectors),
		Method:      req.Method,
		Confidence:  req.ConfidenceLevel,
		Mean:        aggregate(vectors, aggMean),
		Median:      aggregate(vectors, aggQuantile(0.5)),
		P5:          aggregate(vectors, aggQuantile(0.05)),
		P95:         aggregate(vectors, aggQuantile(0.95)),
	}

	totals := make([]float64, len(vectors))
	var profitable, ruined int
	for i, v := range vectors {
		totals[i] = v.TotalReturn
		if v.TotalReturn > 0 {
			profitable++
		}
		if v.MaxDrawdown >= req.RuinDrawdown {
			ruined++
		}
	}
	sort.Float64s(totals)
	tail := (1 - req.ConfidenceLevel) / 2
	resp.ReturnCILow = stat.Quantile(tail, stat.Empirical, totals, nil)
	resp.ReturnCIHigh = stat.Quantile(1-tail, stat.Empirical, totals, nil)
	resp.ProbProfit = float64(profitable) / float64(len(vectors))
	resp.RiskOfRuin = float64(ruined) / float64(len(vectors))
	return resp, nil
}

// blockSample fills dst with circular blocks of roughly sqrt(n) consecutive
// trades, preserving short-range dependence in the sequence.
func blockSample(dst, src []models.Trade, rng *rand.Rand) {
	n := len(src)
	block := int(math.Round(math.Sqrt(float64(n))))
	if block < 1 {
		block = 1
	}
	for filled := 0; filled < n; {
		start := rng.Intn(n)
		for j := 0; j < block && filled < n; j++ {
			dst[filled] = src[(start+j)%n]
			filled++
		}
	}
}

type aggFn func(values []float64) float64

func aggMean(values []float64) float64 { return stat.Mean(values, nil) }

func aggQuantile(q float64) aggFn {
	return func(values []float64) float64 {
		sorted := append([]float64(nil), values...)
		sort.Float64s(sorted)
		return stat.Quantile(q, stat.Empirical, sorted, nil)
	}
}

// aggregate folds per-simulation vectors into one summary vector, field by
// field. A field contributes only from simulations where it was defined; a
// field defined in no simulation stays undefined in the summary.
func aggregate(vectors []models.MetricsVector, fn aggFn) models.MetricsVector {
	var out models.MetricsVector

	pick := func(name string, get func(models.MetricsVector) float64, set func(*models.MetricsVector, float64)) {
		var values []float64
		for _, v := range vectors {
			if v.Defined(name) {
				values = append(values, get(v))
			}
		}
		if len(values) == 0 {
			out.Undefined = append(out.Undefined, name)
			return
		}
		set(&out, fn(values))
	}

	pick("total_return", func(v models.MetricsVector) float64 { return v.TotalReturn },
		func(o *models.MetricsVector, x float64) { o.TotalReturn = x })
	pick("annualized_return", func(v models.MetricsVector) float64 { return v.AnnualizedReturn },
		func(o *models.MetricsVector, x float64) { o.AnnualizedReturn = x })
	pick("sharpe", func(v models.MetricsVector) float64 { return v.Sharpe },
		func(o *models.MetricsVector, x float64) { o.Sharpe = x })
	pick("sortino", func(v models.MetricsVector) float64 { return v.Sortino },
		func(o *models.MetricsVector, x float64) { o.Sortino = x })
	pick("calmar", func(v models.MetricsVector) float64 { return v.Calmar },
		func(o *models.MetricsVector, x float64) { o.Calmar = x })
	pick("omega", func(v models.MetricsVector) float64 { return v.Omega },
		func(o *models.MetricsVector, x float64) { o.Omega = x })
	pick("max_drawdown", func(v models.MetricsVector) float64 { return v.MaxDrawdown },
		func(o *models.MetricsVector, x float64) { o.MaxDrawdown = x })
	pick("win_rate", func(v models.MetricsVector) float64 { return v.WinRate },
		func(o *models.MetricsVector, x float64) { o.WinRate = x })
	pick("profit_factor", func(v models.MetricsVector) float64 { return v.ProfitFactor },
		func(o *models.MetricsVector, x float64) { o.ProfitFactor = x })
	pick("expectancy", func(v models.MetricsVector) float64 { return v.Expectancy },
		func(o *models.MetricsVector, x float64) { o.Expectancy = x })

	if len(vectors) > 0 {
		out.TradeCount = vectors[0].TradeCount
	}
	return out
}
