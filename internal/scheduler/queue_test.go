package scheduler

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/1llyaa/subtitles-api/internal/domain"
)

func queuedJob() *domain.Job {
	return &domain.Job{
		ID:        uuid.Must(uuid.NewV7()),
		Status:    domain.StatusQueued,
		CreatedAt: time.Now().UTC(),
	}
}

func TestFIFOQueueOrder(t *testing.T) {
	q := newFIFOQueue()

	a, b, c := queuedJob(), queuedJob(), queuedJob()
	q.push(a)
	q.push(b)
	q.push(c)

	if q.depth() != 3 {
		t.Fatalf("expected depth 3, got %d", q.depth())
	}

	for i, want := range []*domain.Job{a, b, c} {
		got := q.pop()
		if got == nil || got.ID != want.ID {
			t.Fatalf("pop %d: expected %s, got %v", i, want.ID, got)
		}
	}

	if got := q.pop(); got != nil {
		t.Fatalf("expected empty queue, got %v", got.ID)
	}
}

func TestFIFOQueueRemove(t *testing.T) {
	q := newFIFOQueue()

	a, b, c := queuedJob(), queuedJob(), queuedJob()
	q.push(a)
	q.push(b)
	q.push(c)

	if !q.remove(b.ID) {
		t.Fatal("expected remove to find queued job")
	}
	if q.remove(b.ID) {
		t.Fatal("expected second remove to report missing")
	}
	if q.depth() != 2 {
		t.Fatalf("expected depth 2 after remove, got %d", q.depth())
	}

	if got := q.pop(); got.ID != a.ID {
		t.Fatalf("expected %s first, got %s", a.ID, got.ID)
	}
	if got := q.pop(); got.ID != c.ID {
		t.Fatalf("expected %s after removal, got %s", c.ID, got.ID)
	}
	if got := q.pop(); got != nil {
		t.Fatalf("expected empty queue, got %v", got.ID)
	}
}

func TestFIFOQueueRemoveUnknown(t *testing.T) {
	q := newFIFOQueue()
	q.push(queuedJob())

	if q.remove(uuid.Must(uuid.NewV7())) {
		t.Fatal("expected remove of unknown id to report missing")
	}
	if q.depth() != 1 {
		t.Fatalf("expected depth 1, got %d", q.depth())
	}
}
