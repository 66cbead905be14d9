package events

import "context"

// AckFunc acknowledges the handling outcome of a single delivered event.
// Passing a nil error marks the event as durably processed; a non-nil error
// leaves the decision to the transport based on the error's failure kind.
type AckFunc func(error)

// HandlerFunc processes a single delivered event. The handler must call ack
// exactly once to report the processing outcome.
type HandlerFunc func(ctx context.Context, evt EventEnvelope, ack AckFunc) error

// DomainEventPublisher publishes domain events to notify other parts of the
// system about important domain changes. It provides a technology-agnostic
// interface to decouple event producers from the underlying messaging
// infrastructure.
type DomainEventPublisher interface {
	// PublishDomainEvent sends a domain event to interested subscribers.
	// Returns an error if publishing fails.
	PublishDomainEvent(ctx context.Context, event DomainEvent, opts ...PublishOption) error
}

// EventBus enables publishing and subscribing to domain events across system
// boundaries. It abstracts messaging infrastructure details to keep domain
// logic focused on business concerns rather than transport mechanics.
type EventBus interface {
	// Publish broadcasts a domain event to all interested subscribers.
	// It blocks until the broker acknowledges receipt.
	Publish(ctx context.Context, event EventEnvelope, opts ...PublishOption) error

	// Subscribe registers a handler function to process events of the
	// specified types. The handler executes for each matching event received
	// on this bus, one event at a time.
	Subscribe(ctx context.Context, eventTypes []EventType, handler HandlerFunc) error

	// Close gracefully shuts down the event bus and releases associated
	// resources.
	Close() error
}
