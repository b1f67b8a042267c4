package faces

import (
	"context"
	"sync"

	"github.com/centraunit/faces/internal/logger"
)

// EventKind names a class of system events.
type EventKind string

const (
	// PostConstructViewMap is published right after a view map is created.
	PostConstructViewMap EventKind = "PostConstructViewMap"
	// PreDestroyViewMap is published right before a view map is discarded.
	PreDestroyViewMap EventKind = "PreDestroyViewMap"
)

// SystemEvent is published through the Application to subscribed listeners.
type SystemEvent interface {
	Kind() EventKind
	Source() any
}

// ViewMapEvent reports a view map being created or discarded. Its source is
// the owning *ViewRoot.
type ViewMapEvent struct {
	kind EventKind
	root *ViewRoot
}

// NewViewMapEvent builds a view map event of the given kind.
func NewViewMapEvent(kind EventKind, root *ViewRoot) *ViewMapEvent {
	return &ViewMapEvent{kind: kind, root: root}
}

func (e *ViewMapEvent) Kind() EventKind { return e.kind }
func (e *ViewMapEvent) Source() any     { return e.root }

// ViewRoot returns the view whose map the event is about.
func (e *ViewMapEvent) ViewRoot() *ViewRoot { return e.root }

// SystemEventListener receives events from sources it accepts. Listeners are
// application-wide, so one listener sees events of every view. Listeners are
// compared by identity and must be comparable values, usually pointers.
type SystemEventListener interface {
	IsListenerForSource(source any) bool
	ProcessEvent(ctx context.Context, event SystemEvent) error
}

// Application is the per-application event bus shared by every request.
type Application struct {
	mu        sync.RWMutex
	listeners map[EventKind][]SystemEventListener
}

// NewApplication returns an Application with no subscriptions.
func NewApplication() *Application {
	return &Application{listeners: make(map[EventKind][]SystemEventListener)}
}

// SubscribeToEvent subscribes listener to events of kind. Subscribing the
// same listener twice has no effect.
func (a *Application) SubscribeToEvent(kind EventKind, listener SystemEventListener) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, l := range a.listeners[kind] {
		if l == listener {
			return
		}
	}
	a.listeners[kind] = append(a.listeners[kind], listener)
	logger.DebugF("Subscribed %T to %s events", listener, kind)
}

// UnsubscribeFromEvent removes listener from events of kind.
func (a *Application) UnsubscribeFromEvent(kind EventKind, listener SystemEventListener) {
	a.mu.Lock()
	defer a.mu.Unlock()
	current := a.listeners[kind]
	for i, l := range current {
		if l == listener {
			a.listeners[kind] = append(current[:i:i], current[i+1:]...)
			return
		}
	}
}

// Listeners returns the listeners subscribed to kind.
func (a *Application) Listeners(kind EventKind) []SystemEventListener {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]SystemEventListener, len(a.listeners[kind]))
	copy(out, a.listeners[kind])
	return out
}

// PublishEvent delivers event synchronously to every subscribed listener
// that accepts its source. The first listener error stops delivery.
// Panics raised by listeners propagate to the caller.
func (a *Application) PublishEvent(ctx context.Context, event SystemEvent) error {
	for _, l := range a.Listeners(event.Kind()) {
		if !l.IsListenerForSource(event.Source()) {
			continue
		}
		if err := l.ProcessEvent(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
