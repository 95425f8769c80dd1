package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"MarketSweep/internal/domain/models"
	"MarketSweep/internal/services/analytics"
	"MarketSweep/internal/services/backtest"
	"MarketSweep/internal/services/optimizer"
	"MarketSweep/internal/services/scan"
	"MarketSweep/pkg/logger"
	"MarketSweep/pkg/queue"
)

// ProgressBroadcaster pushes optimization progress events to live listeners.
type ProgressBroadcaster interface {
	Broadcast(v interface{})
}

// ProgressEvent is one websocket progress frame.
type ProgressEvent struct {
	JobID      string              `json:"job_id,omitempty"`
	Done       int                 `json:"done"`
	Total      int                 `json:"total"`
	BestScore  float64             `json:"best_score,omitempty"`
	BestParams models.ParameterSet `json:"best_parameters,omitempty"`
	Finished   bool                `json:"finished,omitempty"`
}

// OptimizeUsecase searches a parameter space. The universe is resolved and
// fetched once; every candidate re-scans and re-backtests the same bars.
type OptimizeUsecase struct {
	scan      *ScanUsecase
	scanner   *scan.Scanner
	engine    *backtest.Engine
	optimizer *optimizer.Optimizer
	progress  ProgressBroadcaster
	queue     queue.QueueService // nil unless async jobs are enabled
	log       *logger.Logger
}

func NewOptimizeUsecase(scanUC *ScanUsecase, scanner *scan.Scanner, engine *backtest.Engine,
	opt *optimizer.Optimizer, progress ProgressBroadcaster, log *logger.Logger) *OptimizeUsecase {
	return &OptimizeUsecase{
		scan: scanUC, scanner: scanner, engine: engine,
		optimizer: opt, progress: progress, log: log,
	}
}

// SetQueue enables async submission.
func (u *OptimizeUsecase) SetQueue(q queue.QueueService) { u.queue = q }

// Execute runs the search synchronously.
func (u *OptimizeUsecase) Execute(ctx context.Context, req models.OptimizeRequest) (*models.OptimizeResponse, error) {
	return u.run(ctx, req, "")
}

// Enqueue submits the search to the job queue and returns the job id.
func (u *OptimizeUsecase) Enqueue(ctx context.Context, req models.OptimizeRequest) (string, error) {
	jobID := uuid.NewString()
	payload := OptimizeJobPayload{JobID: jobID, Request: req}
	if err := u.queue.PublishMessage(ctx, OptimizeJobType, payload); err != nil {
		return "", err
	}
	return jobID, nil
}

// AsyncEnabled reports whether a job queue is configured.
func (u *OptimizeUsecase) AsyncEnabled() bool { return u.queue != nil }

func (u *OptimizeUsecase) run(ctx context.Context, req models.OptimizeRequest, jobID string) (*models.OptimizeResponse, error) {
	symbols, err := u.scan.universe.Resolve(ctx, req.Scan.Universe)
	if err != nil {
		return nil, err
	}
	fetch, err := u.scan.fetcher.Fetch(ctx, symbols, req.Scan.DateRange)
	if err != nil {
		return nil, err
	}

	eval := func(ctx context.Context, ps models.ParameterSet) (models.MetricsVector, error) {
		res, err := u.scanner.Scan(ctx, fetch.Bars, req.Scan.SetupType, ps)
		if err != nil {
			return models.MetricsVector{}, err
		}
		bt, err := u.engine.Run(ctx, res.Signals, res.Rows, req.Rules, req.Scan.DateRange)
		if err != nil {
			return models.MetricsVector{}, err
		}
		return analytics.Compute(bt.Trades, req.Scan.DateRange), nil
	}

	started := time.Now()
	run, err := u.optimizer.Run(ctx, optimizer.Request{
		Space:         req.Ranges,
		Base:          req.Scan.Parameters,
		Objective:     req.Objective,
		Constraints:   req.Constraints,
		Method:        req.Method,
		MaxIterations: req.MaxIterations,
		Seed:          req.Seed,
	}, eval, func(done, total int, best *models.TrailEntry) {
		ev := ProgressEvent{JobID: jobID, Done: done, Total: total}
		if best != nil {
			ev.BestScore = best.Score
			ev.BestParams = best.Params
		}
		u.progress.Broadcast(ev)
	})
	if err != nil {
		return nil, err
	}

	u.progress.Broadcast(ProgressEvent{
		JobID: jobID, Done: run.Iterations, Total: req.MaxIterations,
		BestScore: run.BestScore, BestParams: run.BestParams, Finished: true,
	})
	u.log.Info("optimize run served",
		logger.String("job_id", jobID),
		logger.Int("iterations", run.Iterations),
		logger.Duration("elapsed", time.Since(started)))

	status := "ok"
	if run.Cancelled {
		status = "cancelled"
	}
	return &models.OptimizeResponse{OptimizationRun: *run, Status: status}, nil
}
