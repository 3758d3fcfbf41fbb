package mocks

import (
	"context"
	"sync"

	"github.com/yunhaishang/Mallorn-sub002/internal/domain/event"
	"github.com/yunhaishang/Mallorn-sub002/internal/port/outbound/messaging"
)

// EventPublisher is a mock implementation of messaging.EventPublisher.
type EventPublisher struct {
	mu sync.RWMutex

	// Published events, in order
	events []event.Event

	// Events by type for easier querying
	byType map[string][]event.Event

	// Call tracking
	Calls struct {
		Publish    int
		PublishAll int
	}

	// Error injection
	Errors struct {
		Publish    error
		PublishAll error
	}
}

// NewEventPublisher creates a new mock EventPublisher.
func NewEventPublisher() *EventPublisher {
	return &EventPublisher{
		byType: make(map[string][]event.Event),
	}
}

func (m *EventPublisher) Publish(ctx context.Context, evt event.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls.Publish++

	if m.Errors.Publish != nil {
		return m.Errors.Publish
	}

	m.record(evt)
	return nil
}

func (m *EventPublisher) PublishAll(ctx context.Context, events []event.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls.PublishAll++

	if m.Errors.PublishAll != nil {
		return m.Errors.PublishAll
	}

	for _, evt := range events {
		m.record(evt)
	}
	return nil
}

func (m *EventPublisher) record(evt event.Event) {
	m.events = append(m.events, evt)
	m.byType[evt.EventType()] = append(m.byType[evt.EventType()], evt)
}

// Events returns all published events in publish order.
func (m *EventPublisher) Events() []event.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]event.Event(nil), m.events...)
}

// EventsOfType returns published events matching the given type.
func (m *EventPublisher) EventsOfType(eventType string) []event.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]event.Event(nil), m.byType[eventType]...)
}

var _ messaging.EventPublisher = (*EventPublisher)(nil)
