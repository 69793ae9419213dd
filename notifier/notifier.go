package notifier

import (
	"context"
	"sync"

	"github.com/testdeckhq/testdeck/logger"
)

// Event types published on the bus.
const (
	TypeExecutionUpdated      = "execution.updated"
	TypeJobUpdated            = "job.updated"
	TypeSuiteExecutionUpdated = "suite_execution.updated"
	TypeAgentUpdated          = "agent.updated"
)

// Event is one change notification pushed to subscribers.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Publisher is the narrow interface mutation paths use to announce changes.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// Bus is an in-process fan-out of change events. Subscribers receive every
// event published after they subscribe; slow subscribers drop events rather
// than block publishers.
type Bus struct {
	logger logger.Logger

	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

// NewBus creates a new event bus.
func NewBus(log logger.Logger) *Bus {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Bus{
		logger: log,
		subs:   make(map[chan Event]struct{}),
	}
}

// Publish fans the event out to all current subscribers without blocking.
func (b *Bus) Publish(ctx context.Context, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs {
		select {
		case ch <- event:
		default:
			b.logger.Warn(ctx, "dropping event for slow subscriber", map[string]interface{}{
				"type": event.Type,
			})
		}
	}
}

// Subscribe registers a new subscriber and returns its channel plus an
// unsubscribe function. The channel is buffered; callers must drain it.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 64)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}

	return ch, unsubscribe
}

// NopPublisher discards events. Useful where no bus is wired.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, event Event) {}
