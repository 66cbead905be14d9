package classification

import (
	"context"
	"fmt"
	"sync"
	"time"

	domain "github.com/bioscopeai/bioscope-core/internal/domain/classification"
	"github.com/bioscopeai/bioscope-core/internal/domain/events"
	"github.com/bioscopeai/bioscope-core/pkg/common/logger"
)

// defaultStopTimeout bounds how long StopConsuming waits for an in-flight
// message before giving up. The message's offset stays uncommitted in that
// case, so it is redelivered on the next start.
const defaultStopTimeout = 30 * time.Second

// ResultSubscriber runs the consume side of the pipeline: it subscribes to
// the result stream and feeds each message through the result processor.
type ResultSubscriber struct {
	bus       events.EventBus
	processor *ResultProcessor

	logger *logger.Logger

	// mu guards running and cancel so a concurrent stop never observes the
	// running flag before the cancel func is in place.
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc

	inFlight sync.WaitGroup

	stopTimeout time.Duration
}

// NewResultSubscriber creates a subscriber over the given bus and processor.
func NewResultSubscriber(bus events.EventBus, processor *ResultProcessor, log *logger.Logger) *ResultSubscriber {
	return &ResultSubscriber{
		bus:         bus,
		processor:   processor,
		logger:      log.With("component", "result_subscriber"),
		stopTimeout: defaultStopTimeout,
	}
}

// StartConsuming begins consuming classification results. Calling it while
// already consuming logs a warning and returns without starting a second
// consumer.
func (s *ResultSubscriber) StartConsuming(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn(ctx, "StartConsuming called while already consuming, ignoring")
		return nil
	}
	consumeCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.mu.Unlock()

	err := s.bus.Subscribe(consumeCtx, []events.EventType{domain.EventTypeResultReceived}, s.handleMessage)
	if err != nil {
		cancel()
		s.mu.Lock()
		s.running = false
		s.cancel = nil
		s.mu.Unlock()
		return fmt.Errorf("subscribing to results: %w", err)
	}

	s.logger.Info(ctx, "Result subscriber started")
	return nil
}

// StopConsuming halts consumption and waits for the in-flight message, if
// any, up to the stop timeout. Stopping a subscriber that is not running is
// a no-op.
func (s *ResultSubscriber) StopConsuming(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		s.inFlight.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info(ctx, "Result subscriber stopped")
		return nil
	case <-time.After(s.stopTimeout):
		s.logger.Warn(ctx, "Timed out waiting for in-flight result, its offset stays uncommitted")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// handleMessage adapts a delivered envelope into a processor call. The ack
// carries the processing outcome back to the transport, which turns the
// error's failure kind into a commit decision.
func (s *ResultSubscriber) handleMessage(ctx context.Context, evt events.EventEnvelope, ack events.AckFunc) error {
	s.inFlight.Add(1)
	defer s.inFlight.Done()

	payload, ok := evt.Payload.(domain.ResultReceivedEvent)
	if !ok {
		err := fmt.Errorf("unexpected payload type %T for result event", evt.Payload)
		ack(events.NewSkipError(err))
		return err
	}

	ack(s.processor.Process(ctx, payload))
	return nil
}
