package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/1llyaa/subtitles-api/internal/domain"
)

// TransitionPatch carries the fields applied atomically together with a
// status change. Nil/zero fields are left untouched.
type TransitionPatch struct {
	StartedAt    *time.Time
	FinishedAt   *time.Time
	CommandSpec  []string
	OutputRef    string
	Error        *domain.JobError
	MediaSeconds float64
}

// JobStore is the single source of truth for job records. Implementations
// must be safe for concurrent use and must enforce the job state machine:
// Transition fails with domain.ErrInvalidTransition on any illegal edge,
// which is what keeps terminal states irreversible under racing writers.
type JobStore interface {
	// Create inserts a new queued job.
	Create(ctx context.Context, job *domain.Job) error

	// Get returns a snapshot of the job, or domain.ErrJobNotFound.
	Get(ctx context.Context, id uuid.UUID) (*domain.Job, error)

	// Transition atomically moves the job to a new status, applying the
	// patch in the same step, and returns the updated snapshot.
	Transition(ctx context.Context, id uuid.UUID, to domain.JobStatus, patch TransitionPatch) (*domain.Job, error)

	// Delete removes a job record outright. Used to roll back submissions
	// that never reached the queue.
	Delete(ctx context.Context, id uuid.UUID) error

	// PurgeExpired removes terminal jobs that finished before the cutoff
	// and returns how many were removed.
	PurgeExpired(ctx context.Context, cutoff time.Time) (int, error)
}
