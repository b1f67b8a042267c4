package faces

import (
	"context"
	"net/http"
	"sync"

	"github.com/centraunit/faces/internal/logger"
)

type facesContextKey struct{}

// FacesContext carries the state of one request through the runtime: the
// application, the caller's session, the current view and the request
// attributes. It is itself a context.Context, so it can be passed wherever
// a ctx is expected and found again with CurrentInstance.
type FacesContext struct {
	context.Context

	app        *Application
	session    Session
	request    *http.Request
	attributes *AttributeMap

	mu        sync.Mutex
	viewRoot  *ViewRoot
	callbacks []requestCallback
	released  bool
}

type requestCallback struct {
	name     string
	callback func()
}

// NewFacesContext creates the context of one request. session and request
// may be nil, e.g. for background work that still resolves beans.
func NewFacesContext(parent context.Context, app *Application, session Session, request *http.Request) *FacesContext {
	if parent == nil {
		parent = context.Background()
	}
	return &FacesContext{
		Context:    parent,
		app:        app,
		session:    session,
		request:    request,
		attributes: NewAttributeMap(),
	}
}

// CurrentInstance returns the FacesContext bound to ctx, if any.
func CurrentInstance(ctx context.Context) (*FacesContext, bool) {
	if ctx == nil {
		return nil, false
	}
	fc, ok := ctx.Value(facesContextKey{}).(*FacesContext)
	return fc, ok && fc != nil
}

func (c *FacesContext) Value(key interface{}) interface{} {
	if c == nil {
		return nil
	}
	if _, ok := key.(facesContextKey); ok {
		return c
	}
	if c.Context != nil {
		return c.Context.Value(key)
	}
	return nil
}

func (c *FacesContext) Parent() context.Context {
	return c.Context
}

func (c *FacesContext) Application() *Application {
	return c.app
}

// Session returns the caller's session, or nil when the request has none.
func (c *FacesContext) Session() Session {
	return c.session
}

// Request returns the HTTP request being served, or nil.
func (c *FacesContext) Request() *http.Request {
	return c.request
}

// Attributes returns the request attribute map.
func (c *FacesContext) Attributes() *AttributeMap {
	return c.attributes
}

// ViewRoot returns the current view, or nil before a view was created or
// restored for this request.
func (c *FacesContext) ViewRoot() *ViewRoot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewRoot
}

// SetViewRoot makes root the current view.
func (c *FacesContext) SetViewRoot(root *ViewRoot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.viewRoot = root
}

// RegisterRequestCallback records callback to run on Release. A callback
// registered again under the same name replaces the earlier one.
func (c *FacesContext) RegisterRequestCallback(name string, callback func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, rc := range c.callbacks {
		if rc.name == name {
			c.callbacks[i].callback = callback
			return
		}
	}
	c.callbacks = append(c.callbacks, requestCallback{name: name, callback: callback})
}

// RemoveRequestCallback drops the callback registered under name without running it.
func (c *FacesContext) RemoveRequestCallback(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, rc := range c.callbacks {
		if rc.name == name {
			c.callbacks = append(c.callbacks[:i:i], c.callbacks[i+1:]...)
			return
		}
	}
}

// Release ends the request: request-scoped destruction callbacks run in
// reverse registration order. Only the first call has an effect.
func (c *FacesContext) Release() {
	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		return
	}
	c.released = true
	callbacks := c.callbacks
	c.callbacks = nil
	c.mu.Unlock()

	for i := len(callbacks) - 1; i >= 0; i-- {
		logger.DebugF("Calling destruction callback for bean %s because the request ended", callbacks[i].name)
		callbacks[i].callback()
	}
	c.attributes.Clear()
}

// Released reports whether Release has been called.
func (c *FacesContext) Released() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.released
}
