package usecase

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/1llyaa/subtitles-api/internal/domain"
	"github.com/1llyaa/subtitles-api/internal/store"
)

// GetJobUsecase handles fetching job status and results.
type GetJobUsecase struct {
	store  store.JobStore
	logger *zap.Logger
}

// NewGetJobUsecase creates a new GetJobUsecase.
func NewGetJobUsecase(st store.JobStore, logger *zap.Logger) *GetJobUsecase {
	return &GetJobUsecase{
		store:  st,
		logger: logger,
	}
}

// Execute retrieves a job snapshot by its ID.
func (uc *GetJobUsecase) Execute(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	job, err := uc.store.Get(ctx, id)
	if err != nil {
		uc.logger.Debug("Job not found", zap.String("job_id", id.String()), zap.Error(err))
		return nil, err
	}
	return job, nil
}
