package event

import (
	"time"

	"github.com/google/uuid"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventID returns the unique identifier for this event instance.
	EventID() uuid.UUID

	// EventType returns the type name of the event (e.g., "token.rotated").
	EventType() string

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() uuid.UUID

	// AggregateType returns the type of aggregate (e.g., "credential").
	AggregateType() string
}

// BaseEvent provides common fields for all domain events.
type BaseEvent struct {
	eventID       uuid.UUID
	eventType     string
	occurredAt    time.Time
	aggregateID   uuid.UUID
	aggregateType string
}

// NewBaseEvent creates a new BaseEvent.
func NewBaseEvent(eventType string, aggregateID uuid.UUID, aggregateType string) BaseEvent {
	return BaseEvent{
		eventID:       uuid.New(),
		eventType:     eventType,
		occurredAt:    time.Now().UTC(),
		aggregateID:   aggregateID,
		aggregateType: aggregateType,
	}
}

func (e BaseEvent) EventID() uuid.UUID    { return e.eventID }
func (e BaseEvent) EventType() string     { return e.eventType }
func (e BaseEvent) OccurredAt() time.Time { return e.occurredAt }
func (e BaseEvent) AggregateID() uuid.UUID { return e.aggregateID }
func (e BaseEvent) AggregateType() string { return e.aggregateType }

// Aggregate types
const (
	AggregateTypePrincipal  = "principal"
	AggregateTypeCredential = "credential"
)

// Event types
const (
	EventTypeTokenPairIssued      = "token.issued"
	EventTypeTokenRotated         = "token.rotated"
	EventTypeTokenRevoked         = "token.revoked"
	EventTypeTokenReuseDetected   = "token.reuse_detected"
	EventTypeUserCacheInvalidated = "user.cache_invalidated"
)
