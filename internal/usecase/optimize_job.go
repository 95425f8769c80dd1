package usecase

import (
	"context"
	"fmt"

	"MarketSweep/internal/domain/models"
	"MarketSweep/pkg/logger"
	"MarketSweep/pkg/queue"
)

// OptimizeJobType is the queue message type for async optimization.
const OptimizeJobType = "optimize_request"

// OptimizeJobPayload is the queued message body.
type OptimizeJobPayload struct {
	JobID   string                 `json:"job_id"`
	Request models.OptimizeRequest `json:"request"`
}

// OptimizeJob consumes queued optimization requests. Progress and the final
// outcome stream over the progress broadcaster; the worker holds no state.
type OptimizeJob struct {
	uc  *OptimizeUsecase
	log *logger.Logger
}

func NewOptimizeJob(uc *OptimizeUsecase, log *logger.Logger) *OptimizeJob {
	return &OptimizeJob{uc: uc, log: log}
}

func (j *OptimizeJob) Name() string { return "optimize-worker" }
func (j *OptimizeJob) Type() string { return OptimizeJobType }

func (j *OptimizeJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[OptimizeJobPayload](payload)
	if err != nil {
		return fmt.Errorf("parse optimize payload: %w", err)
	}

	resp, err := j.uc.run(ctx, p.Request, p.JobID)
	if err != nil {
		j.log.Error("async optimize failed",
			logger.String("job_id", p.JobID),
			logger.Error(err))
		return err
	}
	j.log.Info("async optimize finished",
		logger.String("job_id", p.JobID),
		logger.Int("iterations", resp.Iterations),
		logger.Bool("converged", resp.Converged))
	return nil
}
