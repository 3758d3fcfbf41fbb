package messaging

import (
	"context"

	"github.com/yunhaishang/Mallorn-sub002/internal/domain/event"
)

// EventPublisher defines the interface for publishing domain events.
type EventPublisher interface {
	// Publish publishes a single event.
	Publish(ctx context.Context, evt event.Event) error

	// PublishAll publishes multiple events.
	PublishAll(ctx context.Context, events []event.Event) error
}

// Topic names for auth events.
const (
	TopicTokenEvents    = "auth.token"
	TopicSecurityEvents = "auth.security"
	TopicUserEvents     = "auth.user"
)

// TopicForEvent returns the appropriate topic for an event type.
func TopicForEvent(evt event.Event) string {
	switch evt.EventType() {
	case event.EventTypeTokenReuseDetected:
		return TopicSecurityEvents
	case event.EventTypeUserCacheInvalidated:
		return TopicUserEvents
	default:
		return TopicTokenEvents
	}
}
