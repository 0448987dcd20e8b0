package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/1llyaa/subtitles-api/internal/domain"
	"github.com/1llyaa/subtitles-api/internal/events"
	"github.com/1llyaa/subtitles-api/internal/storage"
	"github.com/1llyaa/subtitles-api/internal/store"
)

// Enqueuer hands an accepted job to the scheduler.
type Enqueuer interface {
	Enqueue(job *domain.Job) error
}

// SubmitJobUsecase handles the business logic for submitting transcription jobs.
type SubmitJobUsecase struct {
	store     store.JobStore
	blobs     storage.BlobStore
	scheduler Enqueuer
	publisher events.Publisher
	logger    *zap.Logger
}

// NewSubmitJobUsecase creates a new SubmitJobUsecase.
func NewSubmitJobUsecase(st store.JobStore, blobs storage.BlobStore, sched Enqueuer, pub events.Publisher, logger *zap.Logger) *SubmitJobUsecase {
	return &SubmitJobUsecase{
		store:     st,
		blobs:     blobs,
		scheduler: sched,
		publisher: pub,
		logger:    logger,
	}
}

// Execute validates the submission, persists a queued job, and enqueues it.
func (uc *SubmitJobUsecase) Execute(ctx context.Context, req *domain.SubmitRequest) (*domain.SubmitResponse, error) {
	opts, err := domain.ParseOptions(req.Options)
	if err != nil {
		return nil, err
	}

	if req.InputRef == "" {
		return nil, domain.ErrUnresolvableInput
	}
	size, err := uc.blobs.Stat(ctx, req.InputRef)
	if err != nil {
		uc.logger.Debug("Input ref does not resolve", zap.String("input_ref", req.InputRef), zap.Error(err))
		return nil, fmt.Errorf("%w: %s", domain.ErrUnresolvableInput, req.InputRef)
	}
	if size == 0 {
		return nil, domain.ErrEmptyUpload
	}

	jobID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate UUIDv7: %w", err)
	}

	job := &domain.Job{
		ID:          jobID,
		Status:      domain.StatusQueued,
		InputRef:    req.InputRef,
		InputDigest: req.InputDigest,
		Options:     opts,
		CreatedAt:   time.Now().UTC(),
	}

	if err := uc.store.Create(ctx, job); err != nil {
		uc.logger.Error("Failed to create job record", zap.Error(err), zap.String("job_id", jobID.String()))
		return nil, fmt.Errorf("create job: %w", err)
	}

	if err := uc.scheduler.Enqueue(job); err != nil {
		// The record never reached the queue, so it must not linger as a
		// permanently queued ghost.
		if derr := uc.store.Delete(ctx, jobID); derr != nil {
			uc.logger.Error("Failed to roll back rejected job", zap.Error(derr), zap.String("job_id", jobID.String()))
		}
		uc.logger.Warn("Admission queue rejected job", zap.Error(err), zap.String("job_id", jobID.String()))
		return nil, err
	}

	ev := &events.Event{
		Type:   events.TypeJobQueued,
		JobID:  jobID,
		Status: domain.StatusQueued,
		At:     time.Now().UTC(),
	}
	if err := uc.publisher.Publish(ctx, ev); err != nil {
		uc.logger.Warn("Failed to publish job queued event", zap.Error(err), zap.String("job_id", jobID.String()))
	}

	uc.logger.Info("Job submitted",
		zap.String("job_id", jobID.String()),
		zap.String("model", opts.Model),
		zap.String("format", opts.Format),
	)

	return &domain.SubmitResponse{
		JobID:  jobID,
		Status: domain.StatusQueued,
	}, nil
}
