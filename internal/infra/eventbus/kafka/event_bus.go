package kafka

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/bioscopeai/bioscope-core/internal/domain/classification"
	"github.com/bioscopeai/bioscope-core/internal/domain/events"
	"github.com/bioscopeai/bioscope-core/internal/infra/eventbus/serialization"
	"github.com/bioscopeai/bioscope-core/pkg/common/logger"
)

// EventBusMetrics defines metrics operations needed to monitor Kafka message
// handling.
type EventBusMetrics interface {
	IncMessagePublished(ctx context.Context, topic string)
	IncMessageConsumed(ctx context.Context, topic string)
	IncPublishError(ctx context.Context, topic string)
	IncConsumeError(ctx context.Context, topic string)
	IncMessageSkipped(ctx context.Context, topic string)
}

// EventBusConfig contains settings for routing classification events over
// Kafka topics.
type EventBusConfig struct {
	// JobTopic is the base topic for publishing job descriptions. Events
	// published with a routing key go to "<JobTopic>-<key>" instead.
	JobTopic string

	// ResultTopic is the topic classification results are consumed from.
	ResultTopic string

	// GroupID identifies the consumer group for this bus instance.
	GroupID string
	// ClientID uniquely identifies this client to the Kafka cluster.
	ClientID string
	// ServiceType identifies the type of service (e.g., "core", "worker").
	ServiceType string
}

var _ events.EventBus = (*EventBus)(nil)

// EventBus implements the events.EventBus interface using Kafka as the
// underlying message broker. A single instance owns one sync producer and
// one consumer group for the whole process; it is constructed once in the
// composition root and injected wherever needed.
type EventBus struct {
	producer      sarama.SyncProducer
	consumerGroup sarama.ConsumerGroup

	// Maps domain event types to their Kafka base topics.
	topicMap map[events.EventType]string

	logger  *logger.Logger
	tracer  trace.Tracer
	metrics EventBusMetrics
}

// NewEventBus creates a Kafka-based event bus over an existing producer and
// consumer group.
func NewEventBus(
	producer sarama.SyncProducer,
	consumerGroup sarama.ConsumerGroup,
	cfg *EventBusConfig,
	log *logger.Logger,
	metrics EventBusMetrics,
	tracer trace.Tracer,
) (*EventBus, error) {
	if metrics == nil {
		return nil, fmt.Errorf("metrics are required for kafka event bus")
	}

	log = log.With(
		"component", "kafka_event_bus",
		"client_id", cfg.ClientID,
		"group_id", cfg.GroupID,
		"service_type", cfg.ServiceType,
	)

	topicMap := map[events.EventType]string{
		classification.EventTypeJobRequested:   cfg.JobTopic,    // core -> worker
		classification.EventTypeResultReceived: cfg.ResultTopic, // worker -> core
	}

	return &EventBus{
		producer:      producer,
		consumerGroup: consumerGroup,
		topicMap:      topicMap,
		logger:        log,
		metrics:       metrics,
		tracer:        tracer,
	}, nil
}

// Publish sends a domain event to the Kafka topic configured for its type,
// optionally suffixed with the event's routing key. It blocks until the
// broker acknowledges the write; there is no internal per-message retry, so
// a returned error means exactly one attempt failed.
func (b *EventBus) Publish(ctx context.Context, event events.EventEnvelope, opts ...events.PublishOption) error {
	baseTopic, ok := b.topicMap[event.Type]
	if !ok {
		return fmt.Errorf("unknown event type '%s', no topic mapped", event.Type)
	}

	var pParams events.PublishParams
	for _, opt := range opts {
		opt(&pParams)
	}

	topic := baseTopic
	if pParams.RoutingKey != "" {
		topic = fmt.Sprintf("%s-%s", baseTopic, pParams.RoutingKey)
	}

	ctx, span := b.tracer.Start(ctx, "kafka_event_bus.publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", topic),
			attribute.String("event.type", string(event.Type)),
		))
	defer span.End()

	if pParams.Key != "" {
		event.Key = pParams.Key
		span.SetAttributes(attribute.String("event.key", event.Key))
	}

	msgBytes, err := serialization.SerializePayload(event.Type, event.Payload)
	if err != nil {
		span.RecordError(err)
		b.metrics.IncPublishError(ctx, topic)
		return fmt.Errorf("failed to serialize payload for event %s: %w", event.Type, err)
	}

	kafkaMsg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(event.Key),
		Value: sarama.ByteEncoder(msgBytes),
	}

	partition, offset, err := b.producer.SendMessage(kafkaMsg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send message")
		b.metrics.IncPublishError(ctx, topic)
		return fmt.Errorf("failed to send message to kafka topic %s: %w", topic, err)
	}

	b.metrics.IncMessagePublished(ctx, topic)
	b.logger.Debug(ctx, "Published message to Kafka",
		"topic", topic,
		"partition", partition,
		"offset", offset,
		"key", event.Key,
	)

	return nil
}

// Subscribe registers a handler function to process domain events of the
// specified types. It launches the consumer group loop as a background
// goroutine; the loop exits when ctx is canceled.
func (b *EventBus) Subscribe(
	ctx context.Context,
	eventTypes []events.EventType,
	handler events.HandlerFunc,
) error {
	topicSet := make(map[string]struct{})
	var topics []string
	for _, et := range eventTypes {
		topic, ok := b.topicMap[et]
		if !ok {
			return fmt.Errorf("subscribe: unknown event type %s", et)
		}
		if _, exists := topicSet[topic]; !exists {
			topicSet[topic] = struct{}{}
			topics = append(topics, topic)
		}
	}

	go b.consumeLoop(ctx, topics, handler)
	b.logger.Info(ctx, "Subscribed to events", "event_types", eventTypes, "topics", topics)

	return nil
}

// consumeLoop maintains a continuous consumer group session for processing
// messages. Consume returns on rebalances; the loop rejoins until the
// context is canceled or a handler reports a fatal failure. The fatal case
// must not rejoin: the failed message's offset is uncommitted, so rejoining
// would redeliver it forever and quietly downgrade fatal to retryable.
func (b *EventBus) consumeLoop(ctx context.Context, topics []string, handler events.HandlerFunc) {
	loopCtx, abort := context.WithCancel(ctx)
	defer abort()

	cgHandler := &consumerGroupHandler{
		eventBus:    b,
		userHandler: handler,
		logger:      b.logger,
		tracer:      b.tracer,
		metrics:     b.metrics,
		abort:       abort,
	}

	for {
		if err := b.consumerGroup.Consume(loopCtx, topics, cgHandler); err != nil {
			b.logger.Error(loopCtx, "Error from consumer group", "error", err)
		}
		if err := cgHandler.fatalError(); err != nil {
			b.logger.Error(ctx, "Stopping consumer loop after fatal processing failure", "error", err)
			return
		}
		if loopCtx.Err() != nil {
			return
		}
	}
}

// eventTypeForTopic maps a concrete Kafka topic back to its event type,
// accounting for routing-key-suffixed topics.
func (b *EventBus) eventTypeForTopic(topic string) (events.EventType, bool) {
	for et, base := range b.topicMap {
		if topic == base || strings.HasPrefix(topic, base+"-") {
			return et, true
		}
	}
	return "", false
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler to process
// Kafka messages and convert them into domain events.
type consumerGroupHandler struct {
	eventBus    *EventBus
	userHandler events.HandlerFunc

	logger  *logger.Logger
	tracer  trace.Tracer
	metrics EventBusMetrics

	// abort cancels the session context so a fatal failure ends consumption
	// for every partition, not just the claim that observed it.
	abort context.CancelFunc

	mu    sync.Mutex
	fatal error
}

// recordFatal stores the first fatal failure and cancels the session.
func (h *consumerGroupHandler) recordFatal(err error) {
	h.mu.Lock()
	if h.fatal == nil {
		h.fatal = err
	}
	h.mu.Unlock()
	h.abort()
}

func (h *consumerGroupHandler) fatalError() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fatal
}

func (h *consumerGroupHandler) Setup(sess sarama.ConsumerGroupSession) error {
	h.logger.Info(context.Background(), "Consumer group session setup",
		"generation_id", sess.GenerationID(),
		"member_id", sess.MemberID(),
	)
	return nil
}

func (h *consumerGroupHandler) Cleanup(sess sarama.ConsumerGroupSession) error {
	h.logger.Info(context.Background(), "Consumer group session cleanup",
		"generation_id", sess.GenerationID(),
		"member_id", sess.MemberID(),
	)
	return nil
}

// ConsumeClaim processes messages from an assigned partition strictly one at
// a time. The offset commit decision is a pure function of the handler's
// failure kind: success and skip commit, retryable leaves the offset alone
// so the broker redelivers, fatal ends the session.
func (h *consumerGroupHandler) ConsumeClaim(
	sess sarama.ConsumerGroupSession,
	claim sarama.ConsumerGroupClaim,
) error {
	consumeLogger := h.logger.With("operation", "consume_claim", "partition", claim.Partition())
	consumeLogger.Info(sess.Context(), "Starting to consume from partition", "member_id", sess.MemberID())

	for msg := range claim.Messages() {
		if err := h.consumeMessage(sess, claim, msg, consumeLogger); err != nil {
			return err
		}
	}

	return nil
}

func (h *consumerGroupHandler) consumeMessage(
	sess sarama.ConsumerGroupSession,
	claim sarama.ConsumerGroupClaim,
	msg *sarama.ConsumerMessage,
	consumeLogger *logger.Logger,
) error {
	msgCtx, span := h.tracer.Start(sess.Context(), "kafka_event_bus.consume",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.source", msg.Topic),
			attribute.Int64("messaging.kafka.offset", msg.Offset),
		))
	defer span.End()

	evtType, ok := h.eventBus.eventTypeForTopic(msg.Topic)
	if !ok {
		// A topic this group should never have been subscribed to; skip.
		consumeLogger.Warn(msgCtx, "Received message on unmapped topic", "topic", msg.Topic)
		sess.MarkMessage(msg, "")
		sess.Commit()
		return nil
	}

	payload, err := serialization.DeserializePayload(evtType, msg.Value)
	if err != nil {
		// Malformed bytes are unrecoverable; committing is the only sane
		// choice to avoid a poison-message loop.
		span.RecordError(err)
		consumeLogger.Error(msgCtx, "Skipping undecodable message",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
		h.metrics.IncMessageSkipped(msgCtx, msg.Topic)
		sess.MarkMessage(msg, "")
		sess.Commit()
		return nil
	}

	// Prefer the broker's record of when the event was produced; very old
	// message formats carry no timestamp.
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	envelope := events.EventEnvelope{
		Type:      evtType,
		Key:       string(msg.Key),
		Timestamp: ts,
		Payload:   payload,
		Metadata: events.EventMetadata{
			Topic:     msg.Topic,
			Partition: claim.Partition(),
			Offset:    msg.Offset,
		},
	}

	var fatalErr error
	ack := func(ackErr error) {
		if ackErr == nil {
			h.metrics.IncMessageConsumed(msgCtx, msg.Topic)
			sess.MarkMessage(msg, "")
			sess.Commit()
			return
		}

		switch events.KindOf(ackErr) {
		case events.FailureSkip:
			consumeLogger.Warn(msgCtx, "Skipping message after terminal processing failure",
				"topic", msg.Topic, "offset", msg.Offset, "error", ackErr)
			h.metrics.IncMessageSkipped(msgCtx, msg.Topic)
			sess.MarkMessage(msg, "")
			sess.Commit()
		case events.FailureFatal:
			span.SetStatus(codes.Error, "fatal processing failure")
			h.metrics.IncConsumeError(msgCtx, msg.Topic)
			fatalErr = ackErr
			h.recordFatal(ackErr)
		default:
			// Retryable: leave the offset uncommitted so the broker
			// redelivers the message on restart or rebalance.
			consumeLogger.Error(msgCtx, "Processing failed, offset left uncommitted for redelivery",
				"topic", msg.Topic, "offset", msg.Offset, "error", ackErr)
			h.metrics.IncConsumeError(msgCtx, msg.Topic)
		}
	}

	if err := h.userHandler(msgCtx, envelope, ack); err != nil {
		span.RecordError(err)
		consumeLogger.Error(msgCtx, "Failed to handle message", "topic", msg.Topic, "error", err)
	}

	return fatalErr
}

// Close gracefully shuts down the event bus by closing both producer and
// consumer connections. Called exactly once, from the composition root.
func (b *EventBus) Close() error {
	log := b.logger.With("operation", "close")
	ctx := context.Background()

	if err := b.producer.Close(); err != nil {
		log.Error(ctx, "Failed to close producer", "error", err)
		return err
	}
	if err := b.consumerGroup.Close(); err != nil {
		log.Error(ctx, "Failed to close consumer group", "error", err)
		return err
	}

	log.Info(ctx, "Closed event bus")
	return nil
}
