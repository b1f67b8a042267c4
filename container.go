package faces

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/centraunit/faces/internal/logger"
)

// Factory creates a bean. ctx is the context of the resolving request.
type Factory func(ctx context.Context) (any, error)

// Definition describes how a named bean is created and which scope holds it.
type Definition struct {
	// Scope names the scope holding the bean; empty means ScopeSingleton.
	Scope   string
	Factory Factory
}

// bindingDefinition represents a bean binding in the container.
type bindingDefinition struct {
	name    string
	scope   string
	factory Factory
}

type resolutionState struct {
	chain    map[string]bool
	mu       sync.Mutex
	keyCache []string
}

// Container manages bean bindings, the scopes that hold them, and the
// singletons it owns itself. It is safe for concurrent use.
type Container struct {
	bindings map[string]bindingDefinition
	scopes   map[string]Scope
	mu       sync.RWMutex

	singletons     map[string]any
	singletonOrder []string
	singletonMu    sync.Mutex

	resolutionState sync.Map
	statePool       sync.Pool
}

// NewContainer returns a container with the singleton and prototype scopes.
func NewContainer() *Container {
	return &Container{
		bindings:   make(map[string]bindingDefinition, 32),
		scopes:     make(map[string]Scope, 4),
		singletons: make(map[string]any, 16),
		statePool: sync.Pool{
			New: func() interface{} {
				return &resolutionState{
					chain:    make(map[string]bool, 8),
					keyCache: make([]string, 0, 8),
				}
			},
		},
	}
}

// RegisterScope makes scope available to bindings under name. The built-in
// singleton and prototype scopes cannot be replaced.
func (c *Container) RegisterScope(name string, scope Scope) error {
	if name == "" || name == ScopeSingleton || name == ScopePrototype || scope == nil {
		return &InvalidScopeError{Scope: name}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scopes[name] = scope
	logger.DebugF("Registered scope %q (%T)", name, scope)
	return nil
}

// Scope returns the scope registered under name.
func (c *Container) Scope(name string) (Scope, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.scopes[name]
	return s, ok
}

// Bind registers the bean name. A later Bind of the same name replaces it.
func (c *Container) Bind(name string, def Definition) error {
	if name == "" {
		return errors.New("bean name must not be empty")
	}
	if def.Factory == nil {
		return &NilFactoryError{Name: name}
	}
	scope := def.Scope
	if scope == "" {
		scope = ScopeSingleton
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.bindings[name] = bindingDefinition{
		name:    name,
		scope:   scope,
		factory: def.Factory,
	}
	return nil
}

// Resolve returns the bean bound under name from its scope, creating it if
// the scope holds none. Beans implementing Lifecycle are booted after
// creation; scoped ones get OnShutdown registered as destruction callback.
func (c *Container) Resolve(ctx context.Context, name string) (any, error) {
	c.mu.RLock()
	binding, ok := c.bindings[name]
	c.mu.RUnlock()
	if !ok {
		return nil, &BindingNotFoundError{Name: name}
	}

	if err := c.startResolving(name); err != nil {
		return nil, err
	}
	defer c.finishResolving(name)

	switch binding.scope {
	case ScopeSingleton:
		return c.resolveSingleton(ctx, binding)
	case ScopePrototype:
		return c.create(ctx, binding)
	}

	scope, ok := c.Scope(binding.scope)
	if !ok {
		return nil, &ScopeNotRegisteredError{Name: name, Scope: binding.scope}
	}
	return scope.Get(ctx, name, func() (any, error) {
		bean, err := c.create(ctx, binding)
		if err != nil {
			return nil, err
		}
		if lc, ok := bean.(Lifecycle); ok {
			err := scope.RegisterDestructionCallback(ctx, name, func() {
				c.shutdownBean(name, lc)
			})
			if err != nil {
				c.shutdownBean(name, lc)
				return nil, err
			}
		}
		return bean, nil
	})
}

// Resolve resolves name and asserts the bean's type.
func Resolve[T any](ctx context.Context, c *Container, name string) (T, error) {
	var zero T
	bean, err := c.Resolve(ctx, name)
	if err != nil {
		return zero, err
	}
	typed, ok := bean.(T)
	if !ok {
		return zero, &TypeMismatchError{
			Expected: reflect.TypeOf((*T)(nil)).Elem().String(),
			Got:      reflect.TypeOf(bean).String(),
		}
	}
	return typed, nil
}

// DestroyScopedBean removes the bean name from its scope and shuts it down.
// Removing a bean from a scope alone drops its destruction callback without
// running it; this is the way to end a scoped bean early.
func (c *Container) DestroyScopedBean(ctx context.Context, name string) error {
	c.mu.RLock()
	binding, ok := c.bindings[name]
	c.mu.RUnlock()
	if !ok {
		return &BindingNotFoundError{Name: name}
	}
	scope, ok := c.Scope(binding.scope)
	if !ok {
		return &ScopeNotRegisteredError{Name: name, Scope: binding.scope}
	}
	bean, err := scope.Remove(ctx, name)
	if err != nil {
		return err
	}
	if lc, ok := bean.(Lifecycle); ok {
		if err := lc.OnShutdown(ctx); err != nil {
			return &ShutdownError{Name: name, Err: err}
		}
	}
	return nil
}

// Shutdown shuts down the singletons in reverse creation order and forgets
// them. Bindings and scopes stay registered.
func (c *Container) Shutdown(ctx context.Context) error {
	c.singletonMu.Lock()
	order := c.singletonOrder
	singletons := c.singletons
	c.singletonOrder = nil
	c.singletons = make(map[string]any, 16)
	c.singletonMu.Unlock()

	var errs []error
	for i := len(order) - 1; i >= 0; i-- {
		name := order[i]
		if lc, ok := singletons[name].(Lifecycle); ok {
			if err := lc.OnShutdown(ctx); err != nil {
				errs = append(errs, &ShutdownError{Name: name, Err: err})
			}
		}
	}
	return errors.Join(errs...)
}

func (c *Container) resolveSingleton(ctx context.Context, binding bindingDefinition) (any, error) {
	c.singletonMu.Lock()
	bean, ok := c.singletons[binding.name]
	c.singletonMu.Unlock()
	if ok {
		return bean, nil
	}

	// Created outside the lock so a factory may resolve other singletons.
	bean, err := c.create(ctx, binding)
	if err != nil {
		return nil, err
	}

	c.singletonMu.Lock()
	if existing, ok := c.singletons[binding.name]; ok {
		c.singletonMu.Unlock()
		if lc, ok := bean.(Lifecycle); ok {
			c.shutdownBean(binding.name, lc)
		}
		return existing, nil
	}
	c.singletons[binding.name] = bean
	c.singletonOrder = append(c.singletonOrder, binding.name)
	c.singletonMu.Unlock()
	return bean, nil
}

func (c *Container) create(ctx context.Context, binding bindingDefinition) (any, error) {
	bean, err := binding.factory(ctx)
	if err != nil {
		return nil, &InitializationError{Name: binding.name, Err: err}
	}
	if bean == nil {
		return nil, &InitializationError{Name: binding.name, Err: fmt.Errorf("factory returned nil")}
	}
	if lc, ok := bean.(Lifecycle); ok {
		if err := lc.OnBoot(ctx); err != nil {
			return nil, &InitializationError{Name: binding.name, Err: err}
		}
	}
	return bean, nil
}

// shutdownBean runs from destruction callbacks, which have no error path,
// so failures are logged.
func (c *Container) shutdownBean(name string, lc Lifecycle) {
	if err := lc.OnShutdown(context.Background()); err != nil {
		logger.ErrorF("Shutdown of bean %s failed: %v", name, err)
	}
}

func (c *Container) getResolutionState() *resolutionState {
	id := goroutineKey()
	if state, ok := c.resolutionState.Load(id); ok {
		return state.(*resolutionState)
	}
	// Only this goroutine stores under id, so the load above cannot race
	// with a store for the same key.
	state := c.statePool.Get().(*resolutionState)
	c.resolutionState.Store(id, state)
	return state
}

func (c *Container) startResolving(name string) error {
	state := c.getResolutionState()
	state.mu.Lock()
	defer state.mu.Unlock()

	if state.chain[name] {
		return &CircularDependencyError{Name: name}
	}
	state.chain[name] = true
	state.keyCache = append(state.keyCache, name)
	return nil
}

func (c *Container) finishResolving(name string) {
	id := goroutineKey()
	s, ok := c.resolutionState.Load(id)
	if !ok {
		return
	}
	state := s.(*resolutionState)
	state.mu.Lock()
	delete(state.chain, name)
	isEmpty := len(state.chain) == 0
	state.mu.Unlock()

	if isEmpty {
		c.resolutionState.Delete(id)
		for _, k := range state.keyCache {
			delete(state.chain, k)
		}
		state.keyCache = state.keyCache[:0]
		c.statePool.Put(state)
	}
}
