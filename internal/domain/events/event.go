// Package events provides domain event handling capabilities for communicating
// state changes across system boundaries in a decoupled way.
package events

import "time"

// EventType represents a domain event category, enabling type-safe event
// routing and handling.
type EventType string

// DomainEvent is implemented by domain types that can be published as events.
type DomainEvent interface {
	// EventType identifies the category of this event for routing.
	EventType() EventType

	// OccurredAt records when the event was created.
	OccurredAt() time.Time
}

// EventEnvelope encapsulates all event data flowing through the system,
// providing a standardized format for event processing and distribution.
type EventEnvelope struct {
	// Type identifies the category of this event for routing and handling.
	Type EventType

	// Key enables consistent event routing, typically containing a business
	// identifier the event can be partitioned by.
	Key string

	// Timestamp records when this event was created.
	Timestamp time.Time

	// Payload contains the actual event data. The concrete type depends on
	// the EventType.
	Payload any

	// Metadata carries transport-level position information for the event.
	Metadata EventMetadata
}

// EventMetadata records where in the message stream an event was received.
type EventMetadata struct {
	Topic     string
	Partition int32
	Offset    int64
}
