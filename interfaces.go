// Package faces provides the runtime pieces a server-side UI needs to hand
// out scoped objects: a per-request FacesContext, an application event bus,
// view roots with their view maps, and a bean container that resolves named
// objects through pluggable scopes.
package faces

import "context"

// Lifecycle defines the interface for beans that require initialization and cleanup.
type Lifecycle interface {
	// OnBoot is called once after the bean has been created by its factory.
	OnBoot(ctx context.Context) error

	// OnShutdown is called when the scope holding the bean ends.
	// It should clean up any resources held by the bean.
	OnShutdown(ctx context.Context) error
}

// ObjectFactory creates a new object when a scope has none stored under the
// requested name.
type ObjectFactory func() (any, error)

// Scope is a named storage domain with its own creation and destruction
// lifecycle. Every method resolves "where am I" from ctx.
type Scope interface {
	// Get returns the object stored under name, creating it with factory
	// if absent.
	Get(ctx context.Context, name string, factory ObjectFactory) (any, error)

	// Remove removes the object stored under name and returns it, or nil.
	// A destruction callback registered for name is dropped without
	// being run.
	Remove(ctx context.Context, name string) (any, error)

	// RegisterDestructionCallback registers callback to run when the
	// object stored under name is destroyed together with its scope.
	RegisterDestructionCallback(ctx context.Context, name string, callback func()) error

	// ResolveContextualObject resolves an ambient reference such as
	// "request" or "session". A nil value with a nil error means the key
	// is unknown.
	ResolveContextualObject(ctx context.Context, key string) (any, error)

	// ConversationID returns the id of the current conversation, if the
	// scope has such a notion.
	ConversationID(ctx context.Context) (string, error)
}

// Session is the part of the server-side session the runtime relies on.
type Session interface {
	ID() string
	Attribute(name string) (any, bool)
	SetAttribute(name string, value any) error
	RemoveAttribute(name string) error

	// ComputeIfAbsent atomically returns the attribute stored under name
	// or stores and returns the value produced by create.
	ComputeIfAbsent(name string, create func() any) (any, error)
}

// Scope names
const (
	// ScopeSingleton shares a single instance across the application
	ScopeSingleton = "singleton"
	// ScopePrototype creates a new instance for each resolution
	ScopePrototype = "prototype"
	// ScopeRequest shares an instance within one request
	ScopeRequest = "request"
	// ScopeView shares an instance within one logical view
	ScopeView = "view"
)
