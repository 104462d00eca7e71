// Package events is the notification channel between the fusion core and
// its collaborators. Handlers are registered per event name and are called
// in registration order.
package events

import "sync"

// Event names emitted by the permission flow.
const (
	Granted = "granted"
	Error   = "error"
)

// ErrorCode classifies a terminal permission failure.
type ErrorCode string

const (
	CodeNotSupported            ErrorCode = "NOT_SUPPORTED"
	CodeNoHTTPS                 ErrorCode = "NO_HTTPS"
	CodePermissionDenied        ErrorCode = "PERMISSION_DENIED"
	CodePermissionRequestFailed ErrorCode = "PERMISSION_REQUEST_FAILED"
	CodeInternalError           ErrorCode = "INTERNAL_ERROR"
)

// Event is a single notification. Code and Message are only set for Error.
type Event struct {
	Name    string    `json:"name"`
	Code    ErrorCode `json:"code,omitempty"`
	Message string    `json:"message,omitempty"`
}

// Handler receives events.
type Handler func(Event)

// Listener is the registration token returned by On. Off removes exactly
// the listener it is given, compared by pointer.
type Listener struct {
	name string
	fn   Handler
}

// Bus is a typed observer registry: event name -> ordered handlers.
type Bus struct {
	mu        sync.RWMutex
	listeners map[string][]*Listener
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{listeners: make(map[string][]*Listener)}
}

// On registers fn for events named name.
func (b *Bus) On(name string, fn Handler) *Listener {
	l := &Listener{name: name, fn: fn}
	b.mu.Lock()
	b.listeners[name] = append(b.listeners[name], l)
	b.mu.Unlock()
	return l
}

// Off detaches l. Unknown or nil listeners are ignored.
func (b *Bus) Off(l *Listener) {
	if l == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.listeners[l.name]
	for i, cur := range list {
		if cur == l {
			// copy so that an in-flight Emit keeps its own snapshot intact
			next := make([]*Listener, 0, len(list)-1)
			next = append(next, list[:i]...)
			next = append(next, list[i+1:]...)
			b.listeners[l.name] = next
			return
		}
	}
}

// Emit calls every handler registered for evt.Name. Handlers run on the
// caller's goroutine and may call On/Off.
func (b *Bus) Emit(evt Event) {
	b.mu.RLock()
	list := b.listeners[evt.Name]
	b.mu.RUnlock()

	for _, l := range list {
		l.fn(evt)
	}
}

// Count returns the number of handlers registered for name.
func (b *Bus) Count(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[name])
}
