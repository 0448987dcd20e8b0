package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/1llyaa/subtitles-api/internal/domain"
	"github.com/1llyaa/subtitles-api/internal/store"
)

// Ensure Store implements store.JobStore.
var _ store.JobStore = (*Store)(nil)

// Store is the in-memory job store used when no DATABASE_URL is configured.
// All reads return deep copies so callers can never observe a half-applied
// transition.
type Store struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*domain.Job
}

// New creates an empty in-memory job store.
func New() *Store {
	return &Store{jobs: make(map[uuid.UUID]*domain.Job)}
}

func (s *Store) Create(ctx context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; ok {
		return fmt.Errorf("memory: job %s already exists", job.ID)
	}
	s.jobs[job.ID] = job.Clone()
	return nil
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return job.Clone(), nil
}

func (s *Store) Transition(ctx context.Context, id uuid.UUID, to domain.JobStatus, patch store.TransitionPatch) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	if !job.Status.CanTransitionTo(to) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, job.Status, to)
	}

	job.Status = to
	if patch.StartedAt != nil {
		job.StartedAt = patch.StartedAt
	}
	if patch.FinishedAt != nil {
		job.FinishedAt = patch.FinishedAt
	}
	if patch.CommandSpec != nil {
		job.CommandSpec = append([]string(nil), patch.CommandSpec...)
	}
	if patch.OutputRef != "" {
		job.OutputRef = patch.OutputRef
	}
	if patch.Error != nil {
		e := *patch.Error
		job.Error = &e
	}
	if patch.MediaSeconds > 0 {
		job.MediaSeconds = patch.MediaSeconds
	}

	return job.Clone(), nil
}

func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return domain.ErrJobNotFound
	}
	delete(s.jobs, id)
	return nil
}

func (s *Store) PurgeExpired(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	purged := 0
	for id, job := range s.jobs {
		if job.Status.IsTerminal() && job.FinishedAt != nil && job.FinishedAt.Before(cutoff) {
			delete(s.jobs, id)
			purged++
		}
	}
	return purged, nil
}

// Len returns the number of stored jobs (for test assertions).
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}
