package usecase

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/1llyaa/subtitles-api/internal/domain"
	"github.com/1llyaa/subtitles-api/internal/storage"
	"github.com/1llyaa/subtitles-api/internal/store"
)

// FetchResultUsecase streams the subtitle artifact of a finished job.
type FetchResultUsecase struct {
	store  store.JobStore
	blobs  storage.BlobStore
	logger *zap.Logger
}

// NewFetchResultUsecase creates a new FetchResultUsecase.
func NewFetchResultUsecase(st store.JobStore, blobs storage.BlobStore, logger *zap.Logger) *FetchResultUsecase {
	return &FetchResultUsecase{
		store:  st,
		blobs:  blobs,
		logger: logger,
	}
}

// Execute returns the job snapshot and a reader over its subtitle artifact.
// The caller owns closing the reader.
func (uc *FetchResultUsecase) Execute(ctx context.Context, id uuid.UUID) (*domain.Job, io.ReadCloser, error) {
	job, err := uc.store.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if job.Status != domain.StatusSucceeded || job.OutputRef == "" {
		return job, nil, domain.ErrResultNotReady
	}

	rc, err := uc.blobs.Open(ctx, job.OutputRef)
	if err != nil {
		uc.logger.Error("Failed to open subtitle artifact",
			zap.Error(err),
			zap.String("job_id", id.String()),
			zap.String("output_ref", job.OutputRef),
		)
		return nil, nil, fmt.Errorf("open artifact: %w", err)
	}
	return job, rc, nil
}
