package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/cenkalti/backoff"
	"go.opentelemetry.io/otel/trace"

	"github.com/bioscopeai/bioscope-core/internal/domain/events"
	"github.com/bioscopeai/bioscope-core/pkg/common/logger"
)

const (
	// connectAttempts bounds how many times producer/consumer construction is
	// tried before startup is aborted. Brokers are commonly still coming up
	// when this process boots (container orchestration races).
	connectAttempts = 5

	// connectBackoff is the fixed wait between connection attempts.
	connectBackoff = 2 * time.Second
)

// Producer and consumer-group construction go through these seams so the
// retry behavior can be exercised without a reachable broker.
var (
	newSyncProducer  = sarama.NewSyncProducerFromClient
	newConsumerGroup = sarama.NewConsumerGroupFromClient
	connectInterval  = connectBackoff
)

// ConnectEventBus creates an EventBus instance using the provided Kafka
// client. Construction of the producer and consumer group is retried with a
// fixed backoff up to connectAttempts times; exhausting the attempts is fatal
// for the dependent subsystem, so the error must abort its startup rather
// than be swallowed.
func ConnectEventBus(
	cfg *EventBusConfig,
	client sarama.Client,
	log *logger.Logger,
	metrics EventBusMetrics,
	tracer trace.Tracer,
) (events.EventBus, error) {
	var eventBus events.EventBus

	attempt := 0
	operation := func() error {
		attempt++

		producer, err := newSyncProducer(client)
		if err != nil {
			log.Warn(context.Background(), "Kafka producer connection attempt failed",
				"attempt", attempt, "error", err)
			return fmt.Errorf("creating producer: %w", err)
		}

		consumerGroup, err := newConsumerGroup(cfg.GroupID, client)
		if err != nil {
			producer.Close() // Clean up on failure
			log.Warn(context.Background(), "Kafka consumer group connection attempt failed",
				"attempt", attempt, "error", err)
			return fmt.Errorf("creating consumer group: %w", err)
		}

		eventBus, err = NewEventBus(producer, consumerGroup, cfg, log, metrics, tracer)
		if err != nil {
			producer.Close()
			consumerGroup.Close()
			return backoff.Permanent(fmt.Errorf("creating event bus: %w", err))
		}
		return nil
	}

	fixed := backoff.WithMaxRetries(backoff.NewConstantBackOff(connectInterval), connectAttempts-1)
	if err := backoff.Retry(operation, fixed); err != nil {
		return nil, fmt.Errorf("failed to connect event bus after %d attempts: %w", connectAttempts, err)
	}

	return eventBus, nil
}
