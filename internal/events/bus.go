package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventHandler is a function that handles events
type EventHandler func(*Event)

// Subscription represents a registered event handler.
// It is used to unsubscribe when a consumer disconnects.
type Subscription struct {
	eventType EventType
	id        uint64
}

type registeredHandler struct {
	id      uint64
	handler EventHandler
}

// Bus provides pub/sub event functionality. Handlers for one event type are
// kept in subscription order, not map order, since Emit's total-order
// guarantee depends on it.
type Bus struct {
	subscribers map[EventType][]registeredHandler
	nextID      uint64
	mu          sync.RWMutex
	log         zerolog.Logger
}

// NewBus creates a new event bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		subscribers: make(map[EventType][]registeredHandler),
		log:         log.With().Str("service", "events").Logger(),
	}
}

// Subscribe registers a handler for an event type
func (b *Bus) Subscribe(eventType EventType, handler EventHandler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID

	b.subscribers[eventType] = append(b.subscribers[eventType], registeredHandler{id: id, handler: handler})

	return Subscription{
		eventType: eventType,
		id:        id,
	}
}

// Unsubscribe removes a previously registered handler.
// It is safe to call multiple times.
func (b *Bus) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	handlers, ok := b.subscribers[sub.eventType]
	if !ok {
		return
	}

	for i, h := range handlers {
		if h.id == sub.id {
			b.subscribers[sub.eventType] = append(handlers[:i:i], handlers[i+1:]...)
			break
		}
	}
	if len(b.subscribers[sub.eventType]) == 0 {
		delete(b.subscribers, sub.eventType)
	}
}

// Emit publishes an event to all subscribers.
//
// Handlers run synchronously, in subscription order, on the calling
// goroutine. This is deliberate: the controller relies on Emit to give it a
// total order of on_start/on_finish callbacks per circuit, so a listener
// that enqueues a state transition never races a later emit for the same
// circuit. Callers that fan a slow handler out to its own goroutine remain
// free to do so inside that handler.
func (b *Bus) Emit(eventType EventType, module string, data map[string]interface{}) {
	event := &Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
		Module:    module,
	}

	// Snapshot handlers to avoid holding the lock while invoking callbacks
	b.mu.RLock()
	registered := b.subscribers[eventType]
	handlers := make([]registeredHandler, len(registered))
	copy(handlers, registered)
	b.mu.RUnlock()

	for _, h := range handlers {
		h.handler(event)
	}

	b.log.Debug().
		Str("event_type", string(eventType)).
		Str("module", module).
		Int("subscribers", len(handlers)).
		Msg("Event emitted")
}
