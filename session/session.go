// Package session is the server-side session container: sessions with
// attributes, looked up by id, invalidated explicitly or after a period of
// inactivity.
package session

import (
	"errors"
	"reflect"
	"sync"
	"time"

	"github.com/centraunit/faces/internal/logger"
)

// ErrInvalidated is returned by attribute operations on an invalidated session.
var ErrInvalidated = errors.New("session invalidated")

// BindingListener is implemented by attribute values that want to know when
// they are unbound from their session: on removal, on replacement by another
// value, and when the session is invalidated.
type BindingListener interface {
	ValueUnbound(sessionID string)
}

// Session is one client session. It is safe for concurrent use by the
// requests of that client.
type Session struct {
	id      string
	created time.Time

	mu          sync.Mutex
	attributes  map[string]any
	lastAccess  time.Time
	invalidated bool

	onInvalidate func(id string)
}

func newSession(id string, now time.Time, onInvalidate func(id string)) *Session {
	return &Session{
		id:           id,
		created:      now,
		lastAccess:   now,
		attributes:   make(map[string]any),
		onInvalidate: onInvalidate,
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) CreatedAt() time.Time {
	return s.created
}

// LastAccess returns when the session was last looked up.
func (s *Session) LastAccess() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAccess
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastAccess = now
	s.mu.Unlock()
}

func (s *Session) Attribute(name string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.invalidated {
		return nil, false
	}
	v, ok := s.attributes[name]
	return v, ok
}

// SetAttribute stores value under name. A different value previously stored
// there is unbound.
func (s *Session) SetAttribute(name string, value any) error {
	s.mu.Lock()
	if s.invalidated {
		s.mu.Unlock()
		return ErrInvalidated
	}
	prev, ok := s.attributes[name]
	s.attributes[name] = value
	s.mu.Unlock()

	if ok && !identical(prev, value) {
		s.unbind(name, prev)
	}
	return nil
}

// RemoveAttribute removes and unbinds the value stored under name.
func (s *Session) RemoveAttribute(name string) error {
	s.mu.Lock()
	if s.invalidated {
		s.mu.Unlock()
		return ErrInvalidated
	}
	prev, ok := s.attributes[name]
	delete(s.attributes, name)
	s.mu.Unlock()

	if ok {
		s.unbind(name, prev)
	}
	return nil
}

// ComputeIfAbsent returns the value stored under name, or stores and returns
// create(). create runs under the session lock and must not call back into
// the session.
func (s *Session) ComputeIfAbsent(name string, create func() any) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.invalidated {
		return nil, ErrInvalidated
	}
	if v, ok := s.attributes[name]; ok {
		return v, nil
	}
	v := create()
	s.attributes[name] = v
	return v, nil
}

// AttributeNames returns the names of the stored attributes.
func (s *Session) AttributeNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.attributes))
	for name := range s.attributes {
		names = append(names, name)
	}
	return names
}

// Invalidate ends the session and unbinds every attribute. Only the first
// call has an effect; it reports whether this call ended the session.
func (s *Session) Invalidate() bool {
	s.mu.Lock()
	if s.invalidated {
		s.mu.Unlock()
		return false
	}
	s.invalidated = true
	attributes := s.attributes
	s.attributes = make(map[string]any)
	s.mu.Unlock()

	if s.onInvalidate != nil {
		s.onInvalidate(s.id)
	}
	logger.DebugF("Invalidating session %s with %d attributes", s.id, len(attributes))
	for name, value := range attributes {
		s.unbind(name, value)
	}
	return true
}

// Invalidated reports whether the session has ended.
func (s *Session) Invalidated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.invalidated
}

// unbind notifies value if it is a BindingListener. A panicking listener is
// logged so the remaining attributes are still unbound.
func (s *Session) unbind(name string, value any) {
	listener, ok := value.(BindingListener)
	if !ok {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorF("Unbinding attribute %s of session %s panicked: %v", name, s.id, r)
		}
	}()
	listener.ValueUnbound(s.id)
}

// identical compares without panicking on uncomparable dynamic types, which
// are never identical.
func identical(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	t := reflect.TypeOf(a)
	if t != reflect.TypeOf(b) || !t.Comparable() {
		return false
	}
	return a == b
}
