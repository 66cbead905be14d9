package classification

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bioscopeai/bioscope-core/internal/domain/classification"
	"github.com/bioscopeai/bioscope-core/internal/domain/events"
)

func newTestSubscriber(bus *fakeEventBus) (*ResultSubscriber, *fakeResultRepo, *fakeImageRepo) {
	jobs := newFakeJobRepo()
	results := &fakeResultRepo{}
	images := newFakeImageRepo()
	processor := newTestProcessor(jobs, results, images)
	return NewResultSubscriber(bus, processor, testLogger()), results, images
}

func TestResultSubscriber_StartConsuming(t *testing.T) {
	bus := &fakeEventBus{}
	sub, _, _ := newTestSubscriber(bus)

	require.NoError(t, sub.StartConsuming(context.Background()))
	assert.Equal(t, 1, bus.subscribes)
	require.NotNil(t, bus.handler)

	// A second start is ignored, not a second consumer.
	require.NoError(t, sub.StartConsuming(context.Background()))
	assert.Equal(t, 1, bus.subscribes)

	require.NoError(t, sub.StopConsuming(context.Background()))
}

func TestResultSubscriber_StopConsuming_NotRunning(t *testing.T) {
	bus := &fakeEventBus{}
	sub, _, _ := newTestSubscriber(bus)

	assert.NoError(t, sub.StopConsuming(context.Background()))
}

func TestResultSubscriber_Restart(t *testing.T) {
	bus := &fakeEventBus{}
	sub, _, _ := newTestSubscriber(bus)

	require.NoError(t, sub.StartConsuming(context.Background()))
	require.NoError(t, sub.StopConsuming(context.Background()))

	require.NoError(t, sub.StartConsuming(context.Background()))
	assert.Equal(t, 2, bus.subscribes)

	require.NoError(t, sub.StopConsuming(context.Background()))
}

func TestResultSubscriber_ConcurrentStartStop(t *testing.T) {
	bus := &fakeEventBus{}
	sub, _, _ := newTestSubscriber(bus)

	// Starts and stops racing each other must never observe a half-started
	// subscriber (running without a cancel func).
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = sub.StartConsuming(context.Background())
		}()
		go func() {
			defer wg.Done()
			_ = sub.StopConsuming(context.Background())
		}()
	}
	wg.Wait()

	// Whatever state the storm left behind, a clean start/stop cycle still
	// works.
	_ = sub.StopConsuming(context.Background())
	require.NoError(t, sub.StartConsuming(context.Background()))
	require.NoError(t, sub.StopConsuming(context.Background()))
}

func TestResultSubscriber_HandleMessage_ProcessesResult(t *testing.T) {
	bus := &fakeEventBus{}
	sub, results, images := newTestSubscriber(bus)

	require.NoError(t, sub.StartConsuming(context.Background()))
	t.Cleanup(func() { _ = sub.StopConsuming(context.Background()) })

	imageID := uuid.New()
	envelope := events.EventEnvelope{
		Type:      domain.EventTypeResultReceived,
		Timestamp: time.Now(),
		Payload:   resultEvent(nil, imageID),
	}

	var acked bool
	var ackErr error
	err := bus.handler(context.Background(), envelope, func(err error) {
		acked = true
		ackErr = err
	})
	require.NoError(t, err)

	assert.True(t, acked, "the handler must ack exactly once")
	assert.NoError(t, ackErr)
	assert.Equal(t, 1, results.count())
	assert.True(t, images.analyzed[imageID])
}

func TestResultSubscriber_HandleMessage_WrongPayloadType(t *testing.T) {
	bus := &fakeEventBus{}
	sub, results, _ := newTestSubscriber(bus)

	require.NoError(t, sub.StartConsuming(context.Background()))
	t.Cleanup(func() { _ = sub.StopConsuming(context.Background()) })

	envelope := events.EventEnvelope{
		Type:      domain.EventTypeResultReceived,
		Timestamp: time.Now(),
		Payload:   "not a result event",
	}

	var ackErr error
	err := bus.handler(context.Background(), envelope, func(err error) { ackErr = err })
	require.Error(t, err)

	assert.Equal(t, events.FailureSkip, events.KindOf(ackErr),
		"an undecodable payload is acked as a skip so it is not redelivered")
	assert.Zero(t, results.count())
}
