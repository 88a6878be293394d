package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arjanchaudharyy/flowdeck/pkg/channels/gochannel"
	"github.com/arjanchaudharyy/flowdeck/pkg/events"
)

func newTestBus(t *testing.T) EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := NewWatermillEventBus(pub, sub)
	t.Cleanup(func() {
		_ = bus.Close()
	})

	return bus
}

func TestPublishAndSubscribe_RunEvent(t *testing.T) {
	bus := newTestBus(t)

	var (
		mu       sync.Mutex
		received []*events.RunStarted
	)

	err := bus.Handle(events.RunStartedEvent, func(_ context.Context, event any) error {
		started, ok := event.(*events.RunStarted)
		if !ok {
			t.Errorf("unexpected event type %T", event)

			return nil
		}

		mu.Lock()
		received = append(received, started)
		mu.Unlock()

		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	event := events.RunStarted{
		BaseEvent:       events.NewBaseEvent(events.RunStartedEvent, "run-1"),
		DefinitionTitle: "nightly-sync",
		TotalActions:    4,
	}
	require.NoError(t, bus.Publish(ctx, "run-1", event))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(received) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "run-1", received[0].RunID)
	assert.Equal(t, "nightly-sync", received[0].DefinitionTitle)
	assert.Equal(t, 4, received[0].TotalActions)
}

func TestPublishAndSubscribe_NodeEventsRouteToNodeTopic(t *testing.T) {
	bus := newTestBus(t)

	var (
		mu        sync.Mutex
		completed []*events.NodeCompleted
	)

	err := bus.Handle(events.NodeCompletedEvent, func(_ context.Context, event any) error {
		mu.Lock()
		completed = append(completed, event.(*events.NodeCompleted))
		mu.Unlock()

		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	event := events.NodeCompleted{
		BaseEvent:   events.NewBaseEvent(events.NodeCompletedEvent, "run-1"),
		NodeRef:     "fetch",
		ComponentID: "http_request",
		Outputs:     map[string]any{"status_code": float64(200)},
	}
	require.NoError(t, bus.Publish(ctx, "run-1", event))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(completed) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "fetch", completed[0].NodeRef)
	assert.Equal(t, map[string]any{"status_code": float64(200)}, completed[0].Outputs)
}

func TestSubscribe_UnhandledEventsAreAcked(t *testing.T) {
	bus := newTestBus(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	// No handler registered for run.failed; publish must still succeed and
	// the consumer must not wedge on the unhandled message.
	event := events.RunFailed{
		BaseEvent: events.NewBaseEvent(events.RunFailedEvent, "run-1"),
		Error:     "boom",
		ErrorKind: "internal",
	}
	require.NoError(t, bus.Publish(ctx, "run-1", event))
}

func TestGenerateID(t *testing.T) {
	bus := newTestBus(t)

	first := bus.GenerateID()
	second := bus.GenerateID()

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}
