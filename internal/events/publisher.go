// Package events publishes job lifecycle notifications for downstream
// consumers. Publishing is best effort; a broker outage never blocks the
// job pipeline.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/1llyaa/subtitles-api/internal/domain"
)

// Event types emitted over the broker.
const (
	TypeJobQueued   = "job.queued"
	TypeJobFinished = "job.finished"
)

// Event is one job lifecycle notification.
type Event struct {
	Type      string           `json:"type"`
	JobID     uuid.UUID        `json:"job_id"`
	Status    domain.JobStatus `json:"status"`
	OutputRef string           `json:"output_ref,omitempty"`
	At        time.Time        `json:"at"`
}

// Publisher delivers job lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, ev *Event) error
	Close() error
}

// Noop is the publisher used when no AMQP_URL is configured.
type Noop struct{}

func (Noop) Publish(ctx context.Context, ev *Event) error { return nil }
func (Noop) Close() error                                 { return nil }
