// Package scheduler admits queued jobs into a bounded pool of runner slots,
// preserving submission order and owning job cancellation.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/1llyaa/subtitles-api/internal/domain"
	"github.com/1llyaa/subtitles-api/internal/events"
	"github.com/1llyaa/subtitles-api/internal/metrics"
	"github.com/1llyaa/subtitles-api/internal/store"
)

// Runner is the execution backend the scheduler admits jobs into.
type Runner interface {
	// Prepare resolves the full command spec and work dir for a job.
	Prepare(job *domain.Job, timeout time.Duration) (*domain.RunRequest, error)

	// Run executes the prepared invocation until it finishes, is
	// cancelled, or times out.
	Run(ctx context.Context, req *domain.RunRequest) (*domain.RunResult, error)
}

// Config bounds the scheduler's concurrency and queueing.
type Config struct {
	MaxConcurrency int
	QueueCapacity  int
	JobTimeout     time.Duration
}

// Scheduler owns the admission queue and the running set. All status
// transitions out of queued happen here or in the completion callback;
// nothing else writes job statuses.
type Scheduler struct {
	store     store.JobStore
	runner    Runner
	publisher events.Publisher
	logger    *zap.Logger
	cfg       Config

	slots chan struct{}
	wake  chan struct{}

	mu      sync.Mutex
	queue   *fifoQueue
	running map[uuid.UUID]context.CancelFunc

	wg sync.WaitGroup
}

// New creates a scheduler. Start must be called before Enqueue.
func New(s store.JobStore, r Runner, pub events.Publisher, logger *zap.Logger, cfg Config) *Scheduler {
	if cfg.MaxConcurrency < 1 {
		cfg.MaxConcurrency = 1
	}
	if cfg.QueueCapacity < 1 {
		cfg.QueueCapacity = 64
	}
	return &Scheduler{
		store:     s,
		runner:    r,
		publisher: pub,
		logger:    logger,
		cfg:       cfg,
		slots:     make(chan struct{}, cfg.MaxConcurrency),
		wake:      make(chan struct{}, 1),
		queue:     newFIFOQueue(),
		running:   make(map[uuid.UUID]context.CancelFunc),
	}
}

// Start launches the admission loop. It stops when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.admitLoop(ctx)
	s.logger.Info("Scheduler started",
		zap.Int("max_concurrency", s.cfg.MaxConcurrency),
		zap.Int("queue_capacity", s.cfg.QueueCapacity),
		zap.Duration("job_timeout", s.cfg.JobTimeout),
	)
}

// Stop waits for the admission loop and all in-flight runs to finish.
func (s *Scheduler) Stop() {
	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}

// Enqueue appends a queued job to the admission queue.
func (s *Scheduler) Enqueue(job *domain.Job) error {
	s.mu.Lock()
	if s.queue.depth() >= s.cfg.QueueCapacity {
		s.mu.Unlock()
		return domain.ErrQueueFull
	}
	s.queue.push(job.Clone())
	metrics.QueueDepth.Set(float64(s.queue.depth()))
	s.mu.Unlock()

	s.kick()
	return nil
}

// Cancel requests cancellation of a job. Queued jobs are removed and marked
// cancelled synchronously; running jobs get their subprocess signalled and
// stay running until the runner reports back.
func (s *Scheduler) Cancel(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	if s.queue.remove(id) {
		metrics.QueueDepth.Set(float64(s.queue.depth()))
		s.mu.Unlock()

		now := time.Now().UTC()
		job, err := s.store.Transition(ctx, id, domain.StatusCancelled, store.TransitionPatch{FinishedAt: &now})
		if err != nil {
			return err
		}
		metrics.JobsTotal.WithLabelValues(string(domain.StatusCancelled)).Inc()
		s.publishFinished(ctx, job)
		s.logger.Info("Cancelled queued job", zap.String("job_id", id.String()))
		return nil
	}

	if cancelRun, ok := s.running[id]; ok {
		s.mu.Unlock()
		cancelRun()
		s.logger.Info("Cancellation signalled to running job", zap.String("job_id", id.String()))
		return nil
	}
	s.mu.Unlock()

	// Not tracked here: either unknown or already terminal.
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() {
		return domain.ErrJobTerminal
	}
	// The job is finishing right now; its terminal state is already decided.
	return domain.ErrJobTerminal
}

// kick nudges the admission loop without blocking.
func (s *Scheduler) kick() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) admitLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		}

		for {
			// A slot is claimed before the queue is popped so a job
			// stays cancellable while it waits for capacity.
			select {
			case <-ctx.Done():
				return
			case s.slots <- struct{}{}:
			}

			s.mu.Lock()
			job := s.queue.pop()
			if job == nil {
				s.mu.Unlock()
				<-s.slots
				break
			}
			runCtx, cancelRun := context.WithCancel(ctx)
			s.running[job.ID] = cancelRun
			metrics.QueueDepth.Set(float64(s.queue.depth()))
			s.mu.Unlock()

			s.admit(ctx, runCtx, job)
		}
	}
}

// unregister removes a job from the running set and releases its run context.
func (s *Scheduler) unregister(id uuid.UUID) {
	s.mu.Lock()
	if cancelRun, ok := s.running[id]; ok {
		delete(s.running, id)
		cancelRun()
	}
	s.mu.Unlock()
}

// admit fixes the command spec, flips the job to running, and hands it to a
// worker goroutine. The slot is already held and is always released by the
// worker, whatever exit path the run takes.
func (s *Scheduler) admit(ctx context.Context, runCtx context.Context, job *domain.Job) {
	req, err := s.runner.Prepare(job, s.cfg.JobTimeout)
	if err != nil {
		s.logger.Error("Failed to prepare job", zap.Error(err), zap.String("job_id", job.ID.String()))
		s.unregister(job.ID)
		s.failInternal(ctx, job.ID, "prepare run: "+err.Error())
		<-s.slots
		return
	}

	started := time.Now().UTC()
	if _, err := s.store.Transition(ctx, job.ID, domain.StatusRunning, store.TransitionPatch{
		StartedAt:   &started,
		CommandSpec: req.CommandSpec,
	}); err != nil {
		// Lost a race with a cancel that landed after the queue pop.
		s.logger.Warn("Job no longer admittable", zap.Error(err), zap.String("job_id", job.ID.String()))
		s.unregister(job.ID)
		<-s.slots
		return
	}

	s.logger.Info("Job admitted",
		zap.String("job_id", job.ID.String()),
		zap.String("model", job.Options.Model),
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() { <-s.slots }()
		s.execute(ctx, runCtx, req)
	}()
}

func (s *Scheduler) execute(ctx context.Context, runCtx context.Context, req *domain.RunRequest) {
	// A shutdown mid-run must still be able to record the outcome.
	ctx = context.WithoutCancel(ctx)

	metrics.ActiveRuns.Inc()
	res, err := s.runner.Run(runCtx, req)
	metrics.ActiveRuns.Dec()

	// Leave the running set before the terminal write so a cancel arriving
	// now maps cleanly to "already finished".
	s.unregister(req.JobID)

	finished := time.Now().UTC()
	patch := store.TransitionPatch{FinishedAt: &finished}
	status := domain.StatusFailed

	switch {
	case err != nil:
		s.logger.Error("Runner failed", zap.Error(err), zap.String("job_id", req.JobID.String()))
		patch.Error = &domain.JobError{Kind: domain.ErrorKindInternal, Detail: err.Error()}
	default:
		status = res.Status
		patch.OutputRef = res.OutputRef
		patch.Error = res.Error
		patch.MediaSeconds = res.MediaSeconds
		metrics.RunDuration.WithLabelValues(req.Options.Model).Observe(res.Duration.Seconds())
	}

	job, terr := s.store.Transition(ctx, req.JobID, status, patch)
	if terr != nil {
		if errors.Is(terr, domain.ErrInvalidTransition) {
			// Single-writer discipline broke; fatal to the job, not the service.
			s.logger.Error("Illegal completion transition",
				zap.Error(terr),
				zap.String("job_id", req.JobID.String()),
				zap.String("status", string(status)),
			)
		} else {
			s.logger.Error("Failed to record job completion", zap.Error(terr), zap.String("job_id", req.JobID.String()))
		}
		return
	}

	metrics.JobsTotal.WithLabelValues(string(status)).Inc()
	s.publishFinished(ctx, job)

	s.logger.Info("Job finished",
		zap.String("job_id", req.JobID.String()),
		zap.String("status", string(status)),
	)
}

func (s *Scheduler) failInternal(ctx context.Context, id uuid.UUID, detail string) {
	now := time.Now().UTC()
	// queued -> running -> failed keeps the state machine honest even for
	// jobs that never reached the tool.
	if _, err := s.store.Transition(ctx, id, domain.StatusRunning, store.TransitionPatch{StartedAt: &now}); err != nil {
		return
	}
	job, err := s.store.Transition(ctx, id, domain.StatusFailed, store.TransitionPatch{
		FinishedAt: &now,
		Error:      &domain.JobError{Kind: domain.ErrorKindInternal, Detail: detail},
	})
	if err != nil {
		return
	}
	metrics.JobsTotal.WithLabelValues(string(domain.StatusFailed)).Inc()
	s.publishFinished(ctx, job)
}

func (s *Scheduler) publishFinished(ctx context.Context, job *domain.Job) {
	ev := &events.Event{
		Type:      events.TypeJobFinished,
		JobID:     job.ID,
		Status:    job.Status,
		OutputRef: job.OutputRef,
		At:        time.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn("Failed to publish job event", zap.Error(err), zap.String("job_id", job.ID.String()))
	}
}
