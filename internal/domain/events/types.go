package events

// PublishOption is a function type that modifies PublishParams.
// It enables flexible configuration of event publishing behavior through
// functional options.
type PublishOption func(*PublishParams)

// PublishParams contains configuration options for publishing domain events.
type PublishParams struct {
	// Key is used as a partition key to control event routing and ordering.
	Key string

	// RoutingKey selects a destination topic variant. When set, the event is
	// published to "<base-topic>-<RoutingKey>" instead of the bare base topic.
	RoutingKey string

	// Headers contain metadata key-value pairs attached to the event.
	Headers map[string]string
}

// WithKey returns a PublishOption that sets the partition key for event
// routing. The key helps ensure related events are processed in order by the
// same consumer.
func WithKey(key string) PublishOption {
	return func(p *PublishParams) { p.Key = key }
}

// WithRoutingKey returns a PublishOption that routes the event to a
// routing-key-suffixed topic, enabling per-device topic partitioning for
// workers that specialize by device.
func WithRoutingKey(key string) PublishOption {
	return func(p *PublishParams) { p.RoutingKey = key }
}

// WithHeaders returns a PublishOption that attaches metadata headers to an
// event.
func WithHeaders(headers map[string]string) PublishOption {
	return func(p *PublishParams) { p.Headers = headers }
}
