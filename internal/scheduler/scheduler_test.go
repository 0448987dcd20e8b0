package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/1llyaa/subtitles-api/internal/domain"
	eventmock "github.com/1llyaa/subtitles-api/internal/events/mock"
	"github.com/1llyaa/subtitles-api/internal/scheduler"
	"github.com/1llyaa/subtitles-api/internal/store/memory"
)

// fakeRunner stands in for the whisper runner. Run blocks on release when it
// is set, and honours context cancellation like the real runner does.
type fakeRunner struct {
	mu      sync.Mutex
	order   []uuid.UUID
	active  int
	maxSeen int
	release chan struct{}

	prepareErr error
}

func (f *fakeRunner) Prepare(job *domain.Job, timeout time.Duration) (*domain.RunRequest, error) {
	if f.prepareErr != nil {
		return nil, f.prepareErr
	}
	return &domain.RunRequest{
		JobID:       job.ID,
		InputRef:    job.InputRef,
		Options:     job.Options,
		CommandSpec: []string{"whisper", "source.wav", "--model", job.Options.Model},
		Timeout:     timeout,
	}, nil
}

func (f *fakeRunner) Run(ctx context.Context, req *domain.RunRequest) (*domain.RunResult, error) {
	f.mu.Lock()
	f.order = append(f.order, req.JobID)
	f.active++
	if f.active > f.maxSeen {
		f.maxSeen = f.active
	}
	release := f.release
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return &domain.RunResult{Status: domain.StatusCancelled}, nil
		}
	}
	return &domain.RunResult{
		Status:    domain.StatusSucceeded,
		OutputRef: "artifacts/" + req.JobID.String() + ".srt",
		Duration:  10 * time.Millisecond,
	}, nil
}

func (f *fakeRunner) seen() []uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uuid.UUID(nil), f.order...)
}

func newQueuedJob(t *testing.T, st *memory.Store) *domain.Job {
	t.Helper()
	job := &domain.Job{
		ID:        uuid.Must(uuid.NewV7()),
		Status:    domain.StatusQueued,
		InputRef:  "uploads/in.wav",
		Options:   domain.Options{Model: "small", Task: "transcribe", Format: "srt", MaxChars: 42},
		CreatedAt: time.Now().UTC(),
	}
	if err := st.Create(context.Background(), job); err != nil {
		t.Fatalf("create job: %v", err)
	}
	return job
}

func waitForStatus(t *testing.T, st *memory.Store, id uuid.UUID, want domain.JobStatus) *domain.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := st.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("get job: %v", err)
		}
		if job.Status == want {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	job, _ := st.Get(context.Background(), id)
	t.Fatalf("job %s never reached %s, last status %s", id, want, job.Status)
	return nil
}

func TestSchedulerRunsJobsInSubmissionOrder(t *testing.T) {
	st := memory.New()
	runner := &fakeRunner{}
	pub := eventmock.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := scheduler.New(st, runner, pub, zap.NewNop(), scheduler.Config{
		MaxConcurrency: 1,
		QueueCapacity:  8,
		JobTimeout:     time.Second,
	})
	sched.Start(ctx)

	jobs := []*domain.Job{newQueuedJob(t, st), newQueuedJob(t, st), newQueuedJob(t, st)}
	for _, job := range jobs {
		if err := sched.Enqueue(job); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	for _, job := range jobs {
		waitForStatus(t, st, job.ID, domain.StatusSucceeded)
	}

	seen := runner.seen()
	if len(seen) != len(jobs) {
		t.Fatalf("expected %d runs, got %d", len(jobs), len(seen))
	}
	for i, job := range jobs {
		if seen[i] != job.ID {
			t.Fatalf("run %d: expected %s, got %s", i, job.ID, seen[i])
		}
	}

	cancel()
	sched.Stop()
}

func TestSchedulerNeverExceedsMaxConcurrency(t *testing.T) {
	st := memory.New()
	runner := &fakeRunner{release: make(chan struct{})}
	pub := eventmock.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := scheduler.New(st, runner, pub, zap.NewNop(), scheduler.Config{
		MaxConcurrency: 2,
		QueueCapacity:  16,
		JobTimeout:     time.Second,
	})
	sched.Start(ctx)

	var jobs []*domain.Job
	for i := 0; i < 6; i++ {
		jobs = append(jobs, newQueuedJob(t, st))
	}
	for _, job := range jobs {
		if err := sched.Enqueue(job); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	// Wait until the first two are actually inside Run before releasing.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		runner.mu.Lock()
		n := runner.active
		runner.mu.Unlock()
		if n == 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	close(runner.release)

	for _, job := range jobs {
		waitForStatus(t, st, job.ID, domain.StatusSucceeded)
	}

	runner.mu.Lock()
	maxSeen := runner.maxSeen
	runner.mu.Unlock()
	if maxSeen > 2 {
		t.Fatalf("expected at most 2 concurrent runs, saw %d", maxSeen)
	}

	cancel()
	sched.Stop()
}

func TestSchedulerCancelQueuedNeverRuns(t *testing.T) {
	st := memory.New()
	runner := &fakeRunner{release: make(chan struct{})}
	pub := eventmock.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := scheduler.New(st, runner, pub, zap.NewNop(), scheduler.Config{
		MaxConcurrency: 1,
		QueueCapacity:  8,
		JobTimeout:     time.Second,
	})
	sched.Start(ctx)

	blocker := newQueuedJob(t, st)
	victim := newQueuedJob(t, st)
	if err := sched.Enqueue(blocker); err != nil {
		t.Fatalf("enqueue blocker: %v", err)
	}
	waitForStatus(t, st, blocker.ID, domain.StatusRunning)

	if err := sched.Enqueue(victim); err != nil {
		t.Fatalf("enqueue victim: %v", err)
	}
	if err := sched.Cancel(context.Background(), victim.ID); err != nil {
		t.Fatalf("cancel queued job: %v", err)
	}

	got := waitForStatus(t, st, victim.ID, domain.StatusCancelled)
	if got.StartedAt != nil {
		t.Fatal("cancelled queued job must never have started")
	}
	if got.FinishedAt == nil {
		t.Fatal("cancelled job must carry a finished timestamp")
	}

	close(runner.release)
	waitForStatus(t, st, blocker.ID, domain.StatusSucceeded)

	for _, id := range runner.seen() {
		if id == victim.ID {
			t.Fatal("runner must never see a job cancelled while queued")
		}
	}

	cancel()
	sched.Stop()
}

func TestSchedulerCancelRunningJob(t *testing.T) {
	st := memory.New()
	runner := &fakeRunner{release: make(chan struct{})}
	pub := eventmock.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := scheduler.New(st, runner, pub, zap.NewNop(), scheduler.Config{
		MaxConcurrency: 1,
		QueueCapacity:  8,
		JobTimeout:     time.Minute,
	})
	sched.Start(ctx)

	job := newQueuedJob(t, st)
	if err := sched.Enqueue(job); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	waitForStatus(t, st, job.ID, domain.StatusRunning)

	if err := sched.Cancel(context.Background(), job.ID); err != nil {
		t.Fatalf("cancel running job: %v", err)
	}
	got := waitForStatus(t, st, job.ID, domain.StatusCancelled)
	if got.Error != nil {
		t.Fatalf("cancelled job must not carry an error, got %+v", got.Error)
	}

	// The slot freed by the cancelled run must admit the next job.
	next := newQueuedJob(t, st)
	if err := sched.Enqueue(next); err != nil {
		t.Fatalf("enqueue next: %v", err)
	}
	waitForStatus(t, st, next.ID, domain.StatusRunning)
	close(runner.release)
	waitForStatus(t, st, next.ID, domain.StatusSucceeded)

	cancel()
	sched.Stop()
}

func TestSchedulerCancelTerminalJob(t *testing.T) {
	st := memory.New()
	runner := &fakeRunner{}
	pub := eventmock.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := scheduler.New(st, runner, pub, zap.NewNop(), scheduler.Config{
		MaxConcurrency: 1,
		QueueCapacity:  8,
		JobTimeout:     time.Second,
	})
	sched.Start(ctx)

	job := newQueuedJob(t, st)
	if err := sched.Enqueue(job); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	waitForStatus(t, st, job.ID, domain.StatusSucceeded)

	if err := sched.Cancel(context.Background(), job.ID); !errors.Is(err, domain.ErrJobTerminal) {
		t.Fatalf("expected ErrJobTerminal, got %v", err)
	}
	if err := sched.Cancel(context.Background(), uuid.Must(uuid.NewV7())); !errors.Is(err, domain.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}

	cancel()
	sched.Stop()
}

func TestSchedulerQueueFull(t *testing.T) {
	st := memory.New()
	runner := &fakeRunner{release: make(chan struct{})}
	pub := eventmock.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := scheduler.New(st, runner, pub, zap.NewNop(), scheduler.Config{
		MaxConcurrency: 1,
		QueueCapacity:  1,
		JobTimeout:     time.Second,
	})
	sched.Start(ctx)

	blocker := newQueuedJob(t, st)
	if err := sched.Enqueue(blocker); err != nil {
		t.Fatalf("enqueue blocker: %v", err)
	}
	waitForStatus(t, st, blocker.ID, domain.StatusRunning)

	waiting := newQueuedJob(t, st)
	if err := sched.Enqueue(waiting); err != nil {
		t.Fatalf("enqueue waiting: %v", err)
	}

	overflow := newQueuedJob(t, st)
	if err := sched.Enqueue(overflow); !errors.Is(err, domain.ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}

	close(runner.release)
	waitForStatus(t, st, blocker.ID, domain.StatusSucceeded)
	waitForStatus(t, st, waiting.ID, domain.StatusSucceeded)

	cancel()
	sched.Stop()
}

func TestSchedulerPrepareFailureFailsJob(t *testing.T) {
	st := memory.New()
	runner := &fakeRunner{prepareErr: errors.New("no scratch space")}
	pub := eventmock.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := scheduler.New(st, runner, pub, zap.NewNop(), scheduler.Config{
		MaxConcurrency: 1,
		QueueCapacity:  8,
		JobTimeout:     time.Second,
	})
	sched.Start(ctx)

	job := newQueuedJob(t, st)
	if err := sched.Enqueue(job); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	got := waitForStatus(t, st, job.ID, domain.StatusFailed)
	if got.Error == nil || got.Error.Kind != domain.ErrorKindInternal {
		t.Fatalf("expected internal error, got %+v", got.Error)
	}

	cancel()
	sched.Stop()
}
