package mock

import (
	"context"
	"sync"

	"github.com/1llyaa/subtitles-api/internal/events"
)

// Ensure Publisher implements events.Publisher.
var _ events.Publisher = (*Publisher)(nil)

// Publisher records published events for test assertions.
type Publisher struct {
	mu        sync.Mutex
	Published []*events.Event
	PublishFn func(ctx context.Context, ev *events.Event) error
}

// New creates a mock publisher.
func New() *Publisher {
	return &Publisher{}
}

func (m *Publisher) Publish(ctx context.Context, ev *events.Event) error {
	if m.PublishFn != nil {
		return m.PublishFn(ctx, ev)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Published = append(m.Published, ev)
	return nil
}

func (m *Publisher) Close() error { return nil }

// Events returns a copy of the published events.
func (m *Publisher) Events() []*events.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*events.Event(nil), m.Published...)
}
