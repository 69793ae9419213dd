package notifier

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testdeckhq/testdeck/logger"
)

func TestBusPublishSubscribe(t *testing.T) {
	ctx := context.Background()

	t.Run("subscriber receives published events", func(t *testing.T) {
		bus := NewBus(logger.NewTestLogger())
		ch, unsubscribe := bus.Subscribe()
		defer unsubscribe()

		bus.Publish(ctx, Event{Type: TypeJobUpdated, Payload: "one"})
		bus.Publish(ctx, Event{Type: TypeAgentUpdated, Payload: "two"})

		first := <-ch
		assert.Equal(t, TypeJobUpdated, first.Type)
		second := <-ch
		assert.Equal(t, TypeAgentUpdated, second.Type)
	})

	t.Run("every subscriber gets each event", func(t *testing.T) {
		bus := NewBus(logger.NewTestLogger())
		chA, unsubA := bus.Subscribe()
		defer unsubA()
		chB, unsubB := bus.Subscribe()
		defer unsubB()

		bus.Publish(ctx, Event{Type: TypeExecutionUpdated})

		assert.Equal(t, TypeExecutionUpdated, (<-chA).Type)
		assert.Equal(t, TypeExecutionUpdated, (<-chB).Type)
	})

	t.Run("unsubscribe closes the channel", func(t *testing.T) {
		bus := NewBus(logger.NewTestLogger())
		ch, unsubscribe := bus.Subscribe()

		unsubscribe()

		_, open := <-ch
		assert.False(t, open)

		// Publishing after unsubscribe must not panic.
		bus.Publish(ctx, Event{Type: TypeJobUpdated})
	})

	t.Run("double unsubscribe is safe", func(t *testing.T) {
		bus := NewBus(logger.NewTestLogger())
		_, unsubscribe := bus.Subscribe()
		unsubscribe()
		unsubscribe()
	})

	t.Run("slow subscriber drops instead of blocking", func(t *testing.T) {
		log := logger.NewTestLogger()
		bus := NewBus(log)
		ch, unsubscribe := bus.Subscribe()
		defer unsubscribe()

		done := make(chan struct{})
		go func() {
			defer close(done)
			// One past the buffer; the last publish must not block.
			for i := 0; i < 65; i++ {
				bus.Publish(ctx, Event{Type: TypeJobUpdated, Payload: i})
			}
		}()

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("publish blocked on a slow subscriber")
		}

		require.Len(t, ch, 64)
		assert.True(t, log.HasEntry("warn", "dropping event for slow subscriber"))
	})
}

func TestNopPublisher(t *testing.T) {
	// Must be a no-op that never panics.
	NopPublisher{}.Publish(context.Background(), Event{Type: TypeJobUpdated})
}
