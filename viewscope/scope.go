// Package viewscope implements the "view" scope: objects live in the view
// map of the current view, and their destruction callbacks run exactly once,
// when the view ends or when its session ends, whichever happens first.
//
// A destruction callback is stored twice. The view map keeps it under
// DestructionCallbackNamePrefix+name, where the TerminationListener finds it
// when the view map is about to be destroyed. The session keeps it in its
// SessionRegistry, which fires whatever is still pending when the session
// is invalidated. Both hold the same *DestructionCallback, whose fire
// operation is a compare-and-clear, so the second trigger is a no-op.
package viewscope

import (
	"context"
	"fmt"

	"github.com/centraunit/faces"
)

// DestructionCallbackNamePrefix is prefixed to a bean name to form the view
// map key of the bean's destruction callback.
const DestructionCallbackNamePrefix = "github.com/centraunit/faces/viewscope.DESTRUCTION_CALLBACK."

// Scope is the view scope. One Scope serves every view of an application.
type Scope struct {
	listener *TerminationListener
}

// New returns the view scope.
func New() *Scope {
	return &Scope{listener: &TerminationListener{}}
}

// Listener returns the PreDestroyViewMap listener the scope subscribes on
// first callback registration.
func (s *Scope) Listener() *TerminationListener {
	return s.listener
}

// Get returns the object stored under name in the current view map, or
// creates, stores and returns one with factory.
func (s *Scope) Get(ctx context.Context, name string, factory faces.ObjectFactory) (any, error) {
	_, viewMap, err := s.currentView(ctx)
	if err != nil {
		return nil, err
	}

	if bean, ok := viewMap.Get(name); ok {
		return bean, nil
	}

	bean, err := factory()
	if err != nil {
		return nil, err
	}
	viewMap.Put(name, bean)
	return bean, nil
}

// Remove removes and returns the object stored under name. Its destruction
// callback, if any, is dropped from the view map and the session registry
// without running.
func (s *Scope) Remove(ctx context.Context, name string) (any, error) {
	fc, viewMap, err := s.currentView(ctx)
	if err != nil {
		return nil, err
	}

	// The registry is resolved first so a failure leaves the view map as it was.
	var registry *SessionRegistry
	stored, _ := viewMap.Get(DestructionCallbackNamePrefix + name)
	cb, hasCallback := stored.(*DestructionCallback)
	if hasCallback {
		if registry, err = SessionRegistryOf(fc); err != nil {
			return nil, err
		}
	}

	bean, _ := viewMap.Remove(name)
	viewMap.Remove(DestructionCallbackNamePrefix + name)
	if hasCallback {
		registry.Unregister(cb)
	}
	return bean, nil
}

// RegisterDestructionCallback registers callback to run when the object
// stored under name is destroyed with the current view or its session.
// Registering again for the same name replaces the earlier callback, which
// is dropped without running.
func (s *Scope) RegisterDestructionCallback(ctx context.Context, name string, callback func()) error {
	if err := faces.ValidateRegistration(name, callback); err != nil {
		return err
	}
	fc, viewMap, err := s.currentView(ctx)
	if err != nil {
		return err
	}
	app := fc.Application()
	if app == nil {
		return &faces.ContextUnavailableError{What: "Application"}
	}
	registry, err := SessionRegistryOf(fc)
	if err != nil {
		return err
	}

	cb := NewDestructionCallback(name, callback)
	if err := registry.Register(cb); err != nil {
		return err
	}
	app.SubscribeToEvent(faces.PreDestroyViewMap, s.listener)

	if prev, ok := viewMap.Put(DestructionCallbackNamePrefix+name, cb); ok {
		if old, ok := prev.(*DestructionCallback); ok {
			registry.Unregister(old)
		}
	}
	return nil
}

// ResolveContextualObject resolves key against the current request.
func (s *Scope) ResolveContextualObject(ctx context.Context, key string) (any, error) {
	return faces.ResolveContextualObject(ctx, key)
}

// ConversationID checks that a FacesContext is present. Views have no
// conversation id, so it is always empty.
func (s *Scope) ConversationID(ctx context.Context) (string, error) {
	if _, ok := faces.CurrentInstance(ctx); !ok {
		return "", &faces.ContextUnavailableError{What: "FacesContext"}
	}
	return "", nil
}

func (s *Scope) currentView(ctx context.Context) (*faces.FacesContext, *faces.AttributeMap, error) {
	fc, ok := faces.CurrentInstance(ctx)
	if !ok {
		return nil, nil, &faces.ContextUnavailableError{What: "FacesContext"}
	}
	root := fc.ViewRoot()
	if root == nil {
		return nil, nil, &faces.ContextUnavailableError{What: "ViewRoot"}
	}
	viewMap := root.ViewMap(true)
	if viewMap == nil {
		return nil, nil, &faces.ViewMapUnavailableError{ViewID: root.StateKey()}
	}
	return fc, viewMap, nil
}

// SessionRegistryOf returns the registry of the session of fc, creating it
// on first use.
func SessionRegistryOf(fc *faces.FacesContext) (*SessionRegistry, error) {
	session := fc.Session()
	if session == nil {
		return nil, &faces.ContextUnavailableError{What: "session"}
	}
	v, err := session.ComputeIfAbsent(RegistryAttribute, func() any {
		return NewSessionRegistry()
	})
	if err != nil {
		return nil, err
	}
	registry, ok := v.(*SessionRegistry)
	if !ok {
		return nil, fmt.Errorf("session attribute %s holds %T, not a session registry", RegistryAttribute, v)
	}
	return registry, nil
}
