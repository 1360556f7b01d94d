package router

import (
	"fmt"
	"sync"

	"github.com/vireo-web/vireo/pkg/observability"
)

// Lifecycle events emitted by routers and server adapters.
const (
	EventStart      = "start"
	EventStarted    = "started"
	EventStop       = "stop"
	EventStopped    = "stopped"
	EventRequest    = "request"
	EventResponse   = "response"
	EventCrashed    = "crashed"
	EventController = "controller"
)

// EventHandler receives lifecycle event arguments.
type EventHandler func(args ...any)

// Bus is a synchronous pub/sub channel for lifecycle events. Handlers
// run in registration order; a panicking handler is logged and never
// propagates to the emitter.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]EventHandler
	logger   observability.Logger
}

// NewBus creates an event bus.
func NewBus(logger observability.Logger) *Bus {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Bus{
		handlers: make(map[string][]EventHandler),
		logger:   logger,
	}
}

// On subscribes a handler to an event.
func (b *Bus) On(event string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[event] = append(b.handlers[event], handler)
}

// Emit delivers an event to all subscribed handlers in registration
// order. Delivery is fire-and-forget: handler completion is not awaited
// beyond error logging.
func (b *Bus) Emit(event string, args ...any) {
	b.mu.RLock()
	handlers := b.handlers[event]
	b.mu.RUnlock()

	for _, handler := range handlers {
		b.invoke(event, handler, args)
	}
}

func (b *Bus) invoke(event string, handler EventHandler, args []any) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				observability.String("event", event),
				observability.Any("error", fmt.Sprintf("%v", r)),
			)
		}
	}()
	handler(args...)
}
