package usecase

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Canceller requests cancellation of a queued or running job.
type Canceller interface {
	Cancel(ctx context.Context, id uuid.UUID) error
}

// CancelJobUsecase handles cancellation requests.
type CancelJobUsecase struct {
	scheduler Canceller
	logger    *zap.Logger
}

// NewCancelJobUsecase creates a new CancelJobUsecase.
func NewCancelJobUsecase(sched Canceller, logger *zap.Logger) *CancelJobUsecase {
	return &CancelJobUsecase{
		scheduler: sched,
		logger:    logger,
	}
}

// Execute requests cancellation. Cancellation of a running job is
// asynchronous: acceptance here does not mean the process is dead yet.
func (uc *CancelJobUsecase) Execute(ctx context.Context, id uuid.UUID) error {
	if err := uc.scheduler.Cancel(ctx, id); err != nil {
		uc.logger.Debug("Cancellation rejected", zap.String("job_id", id.String()), zap.Error(err))
		return err
	}
	uc.logger.Info("Cancellation accepted", zap.String("job_id", id.String()))
	return nil
}
