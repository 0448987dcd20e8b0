package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/1llyaa/subtitles-api/internal/domain"
	"github.com/1llyaa/subtitles-api/internal/store"
)

// Ensure pgStore implements store.JobStore.
var _ store.JobStore = (*pgStore)(nil)

type pgStore struct {
	pool *pgxpool.Pool
}

// New creates a PostgreSQL-backed job store. See db/schema.sql for the
// expected subtitle_jobs table.
func New(pool *pgxpool.Pool) store.JobStore {
	return &pgStore{pool: pool}
}

func (s *pgStore) Create(ctx context.Context, job *domain.Job) error {
	options, err := json.Marshal(job.Options)
	if err != nil {
		return fmt.Errorf("postgres: marshal options: %w", err)
	}

	query := `
		INSERT INTO subtitle_jobs (job_id, status, input_ref, input_digest, options, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	if _, err := s.pool.Exec(ctx, query,
		job.ID, job.Status, job.InputRef, job.InputDigest, options, job.CreatedAt,
	); err != nil {
		return fmt.Errorf("postgres: create job: %w", err)
	}
	return nil
}

func (s *pgStore) Get(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT job_id, status, input_ref, input_digest, output_ref, options,
		       command_spec, error, media_seconds, created_at, started_at, finished_at
		FROM subtitle_jobs
		WHERE job_id = $1`, id)

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("postgres: get job: %w", err)
	}
	return job, nil
}

// Transition locks the row, checks the state machine, and applies the patch
// in one transaction so concurrent terminal writers cannot both win.
func (s *pgStore) Transition(ctx context.Context, id uuid.UUID, to domain.JobStatus, patch store.TransitionPatch) (*domain.Job, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var current domain.JobStatus
	err = tx.QueryRow(ctx,
		`SELECT status FROM subtitle_jobs WHERE job_id = $1 FOR UPDATE`, id,
	).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("postgres: lock job: %w", err)
	}
	if !current.CanTransitionTo(to) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, current, to)
	}

	var commandSpec, jobErr []byte
	if patch.CommandSpec != nil {
		if commandSpec, err = json.Marshal(patch.CommandSpec); err != nil {
			return nil, fmt.Errorf("postgres: marshal command_spec: %w", err)
		}
	}
	if patch.Error != nil {
		if jobErr, err = json.Marshal(patch.Error); err != nil {
			return nil, fmt.Errorf("postgres: marshal error: %w", err)
		}
	}

	row := tx.QueryRow(ctx, `
		UPDATE subtitle_jobs
		SET status = $2,
		    started_at = COALESCE($3, started_at),
		    finished_at = COALESCE($4, finished_at),
		    command_spec = COALESCE($5, command_spec),
		    output_ref = COALESCE(NULLIF($6, ''), output_ref),
		    error = COALESCE($7, error),
		    media_seconds = CASE WHEN $8 > 0 THEN $8 ELSE media_seconds END
		WHERE job_id = $1
		RETURNING job_id, status, input_ref, input_digest, output_ref, options,
		          command_spec, error, media_seconds, created_at, started_at, finished_at`,
		id, to, patch.StartedAt, patch.FinishedAt, commandSpec, patch.OutputRef, jobErr, patch.MediaSeconds)

	job, err := scanJob(row)
	if err != nil {
		return nil, fmt.Errorf("postgres: transition: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("postgres: commit: %w", err)
	}
	return job, nil
}

func (s *pgStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM subtitle_jobs WHERE job_id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

func (s *pgStore) PurgeExpired(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM subtitle_jobs
		WHERE status IN ('succeeded', 'failed', 'cancelled') AND finished_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: purge expired: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var (
		job          domain.Job
		options      []byte
		commandSpec  []byte
		jobErr       []byte
		outputRef    *string
		mediaSeconds *float64
	)

	err := row.Scan(
		&job.ID, &job.Status, &job.InputRef, &job.InputDigest, &outputRef, &options,
		&commandSpec, &jobErr, &mediaSeconds, &job.CreatedAt, &job.StartedAt, &job.FinishedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(options, &job.Options); err != nil {
		return nil, fmt.Errorf("unmarshal options: %w", err)
	}
	if commandSpec != nil {
		if err := json.Unmarshal(commandSpec, &job.CommandSpec); err != nil {
			return nil, fmt.Errorf("unmarshal command_spec: %w", err)
		}
	}
	if jobErr != nil {
		job.Error = &domain.JobError{}
		if err := json.Unmarshal(jobErr, job.Error); err != nil {
			return nil, fmt.Errorf("unmarshal error: %w", err)
		}
	}
	if outputRef != nil {
		job.OutputRef = *outputRef
	}
	if mediaSeconds != nil {
		job.MediaSeconds = *mediaSeconds
	}
	return &job, nil
}
