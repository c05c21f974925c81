package tracking

import "sync"

// Event is a change notification raised by the tracking service.
type Event string

const (
	EventConnected             Event = "connected"
	EventDisconnected          Event = "disconnected"
	EventControllerListUpdated Event = "controller_list_updated"
	EventHMDListUpdated        Event = "hmd_list_updated"
	EventMessagesPolled        Event = "messages_polled"
)

// Events lists every event in the order subscribers usually register them.
var Events = []Event{
	EventConnected,
	EventDisconnected,
	EventControllerListUpdated,
	EventHMDListUpdated,
	EventMessagesPolled,
}

// Unsubscribe removes a previously registered handler. Calling it more than
// once is a no-op.
type Unsubscribe func()

type handlerEntry struct {
	id uint64
	fn func()
}

// Hub fans events out to registered handlers in registration order.
type Hub struct {
	mu       sync.Mutex
	nextID   uint64
	handlers map[Event][]handlerEntry
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{handlers: make(map[Event][]handlerEntry)}
}

// Subscribe registers handler for event.
func (h *Hub) Subscribe(event Event, handler func()) Unsubscribe {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.handlers[event] = append(h.handlers[event], handlerEntry{id: id, fn: handler})
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { h.remove(event, id) })
	}
}

func (h *Hub) remove(event Event, id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	entries := h.handlers[event]
	for i, e := range entries {
		if e.id == id {
			h.handlers[event] = append(entries[:i:i], entries[i+1:]...)
			return
		}
	}
}

// Emit calls every handler registered for event. Handlers run on the caller's
// goroutine; the handler list is copied first so a handler may unsubscribe.
func (h *Hub) Emit(event Event) {
	h.mu.Lock()
	entries := make([]handlerEntry, len(h.handlers[event]))
	copy(entries, h.handlers[event])
	h.mu.Unlock()

	for _, e := range entries {
		e.fn()
	}
}

// Count returns the number of handlers registered for event.
func (h *Hub) Count(event Event) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handlers[event])
}
