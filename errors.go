package faces

import "fmt"

// CircularDependencyError represents a circular dependency detection error.
type CircularDependencyError struct {
	Name string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency detected for bean: %s", e.Name)
}

// BindingNotFoundError represents a missing binding error.
type BindingNotFoundError struct {
	Name string
}

func (e *BindingNotFoundError) Error() string {
	return fmt.Sprintf("no binding found for bean: %s", e.Name)
}

// NilFactoryError represents an attempt to bind a bean without a factory.
type NilFactoryError struct {
	Name string
}

func (e *NilFactoryError) Error() string {
	return fmt.Sprintf("nil factory provided for bean: %s", e.Name)
}

// InitializationError represents a bean creation or boot failure.
type InitializationError struct {
	Name string
	Err  error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("initialization failed for bean %s: %v", e.Name, e.Err)
}

func (e *InitializationError) Unwrap() error {
	return e.Err
}

// TypeMismatchError represents a type assertion failure.
type TypeMismatchError struct {
	Expected string
	Got      string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch: expected %s, got %s", e.Expected, e.Got)
}

// ShutdownError represents a bean shutdown failure.
type ShutdownError struct {
	Name string
	Err  error
}

func (e *ShutdownError) Error() string {
	return fmt.Sprintf("shutdown failed for bean %s: %v", e.Name, e.Err)
}

func (e *ShutdownError) Unwrap() error {
	return e.Err
}

// InvalidScopeError represents an attempt to register a reserved or empty scope name.
type InvalidScopeError struct {
	Scope string
}

func (e *InvalidScopeError) Error() string {
	return fmt.Sprintf("invalid scope name %q", e.Scope)
}

// ScopeNotRegisteredError is returned when a binding names a scope nobody registered.
type ScopeNotRegisteredError struct {
	Name  string
	Scope string
}

func (e *ScopeNotRegisteredError) Error() string {
	return fmt.Sprintf("no scope %q registered for bean %s", e.Scope, e.Name)
}

// ContextUnavailableError is returned when a scope operation runs outside the
// context it needs: no FacesContext for the calling request, or no view root
// in it.
type ContextUnavailableError struct {
	What string
}

func (e *ContextUnavailableError) Error() string {
	return fmt.Sprintf("no %s found", e.What)
}

// ViewMapUnavailableError is returned when a view root exists but its view
// map can no longer be used.
type ViewMapUnavailableError struct {
	ViewID string
}

func (e *ViewMapUnavailableError) Error() string {
	return fmt.Sprintf("view map of view %s is unavailable", e.ViewID)
}

// AmbientResolutionError is returned when a contextual reference is resolved
// outside any request.
type AmbientResolutionError struct {
	Key string
}

func (e *AmbientResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve %q: no request context", e.Key)
}

// InvalidRegistrationError rejects a destruction callback registration.
type InvalidRegistrationError struct {
	Name   string
	Reason string
}

func (e *InvalidRegistrationError) Error() string {
	return fmt.Sprintf("invalid destruction callback registration for %q: %s", e.Name, e.Reason)
}

// ValidateRegistration checks the arguments of RegisterDestructionCallback.
func ValidateRegistration(name string, callback func()) error {
	if name == "" {
		return &InvalidRegistrationError{Name: name, Reason: "name must not be empty"}
	}
	if callback == nil {
		return &InvalidRegistrationError{Name: name, Reason: "callback must not be nil"}
	}
	return nil
}
