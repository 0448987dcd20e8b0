package scheduler

import (
	"github.com/google/uuid"

	"github.com/1llyaa/subtitles-api/internal/domain"
)

// fifoQueue is an explicit first-in-first-out admission queue with O(1)
// removal by job ID. Removed entries stay in the slice as tombstones and are
// skipped on pop, which keeps admission order a plain, inspectable property.
// Not safe for concurrent use; the scheduler serializes access.
type fifoQueue struct {
	items []*queueItem
	index map[uuid.UUID]*queueItem
}

type queueItem struct {
	job     *domain.Job
	removed bool
}

func newFIFOQueue() *fifoQueue {
	return &fifoQueue{index: make(map[uuid.UUID]*queueItem)}
}

// push appends a job at the tail.
func (q *fifoQueue) push(job *domain.Job) {
	item := &queueItem{job: job}
	q.items = append(q.items, item)
	q.index[job.ID] = item
}

// pop returns the oldest job that has not been removed, or nil.
func (q *fifoQueue) pop() *domain.Job {
	for len(q.items) > 0 {
		item := q.items[0]
		q.items[0] = nil
		q.items = q.items[1:]
		if item.removed {
			continue
		}
		delete(q.index, item.job.ID)
		return item.job
	}
	return nil
}

// remove tombstones a waiting job. Returns false if the job is not queued.
func (q *fifoQueue) remove(id uuid.UUID) bool {
	item, ok := q.index[id]
	if !ok {
		return false
	}
	item.removed = true
	delete(q.index, id)
	return true
}

// depth returns how many jobs are waiting (tombstones excluded).
func (q *fifoQueue) depth() int {
	return len(q.index)
}
