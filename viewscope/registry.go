package viewscope

import (
	"errors"
	"slices"
	"sync"

	"github.com/centraunit/faces/internal/logger"
)

// RegistryAttribute is the session attribute holding the SessionRegistry.
const RegistryAttribute = "github.com/centraunit/faces/viewscope.SessionRegistry"

// ErrRegistryClosed is returned when registering into the registry of a
// session that has already ended.
var ErrRegistryClosed = errors.New("session registry closed: session already ended")

// SessionRegistry holds the destruction callbacks of every view-scoped bean
// of one session, across all of its views, and fires the pending ones when
// the session ends.
type SessionRegistry struct {
	mu        sync.Mutex
	callbacks []*DestructionCallback
	ended     bool
}

// NewSessionRegistry returns an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{}
}

// Register adds cb after dropping callbacks that already fired.
func (r *SessionRegistry) Register(cb *DestructionCallback) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ended {
		return ErrRegistryClosed
	}
	r.compactLocked()
	r.callbacks = append(r.callbacks, cb)
	return nil
}

// Unregister removes cb itself; other callbacks registered under the same
// bean name by other views stay.
func (r *SessionRegistry) Unregister(cb *DestructionCallback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.compactLocked()
	if i := slices.Index(r.callbacks, cb); i >= 0 {
		r.callbacks = slices.Delete(r.callbacks, i, i+1)
	}
}

// Compact drops callbacks that already fired.
func (r *SessionRegistry) Compact() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.compactLocked()
}

func (r *SessionRegistry) compactLocked() {
	r.callbacks = slices.DeleteFunc(r.callbacks, (*DestructionCallback).IsFired)
}

// OnSessionEnd fires every pending callback, then compacts. Callbacks fire
// without the registry lock held. A panicking callback does not stop the
// others; the first panic is raised again once all of them ran.
func (r *SessionRegistry) OnSessionEnd() {
	r.mu.Lock()
	r.ended = true
	snapshot := slices.Clone(r.callbacks)
	r.mu.Unlock()

	logger.DebugF("Session ended, firing up to %d view scope destruction callbacks", len(snapshot))
	defer r.Compact()

	var first any
	for _, cb := range snapshot {
		if p := fireRecovered(cb); p != nil && first == nil {
			first = p
		}
	}
	if first != nil {
		panic(first)
	}
}

func fireRecovered(cb *DestructionCallback) (recovered any) {
	defer func() {
		if recovered = recover(); recovered != nil {
			logger.ErrorF("Destruction callback for bean %s panicked: %v", cb.BeanName(), recovered)
		}
	}()
	cb.FireFromSession()
	return nil
}

// ValueUnbound is called by the session container when the registry is
// unbound from its session, which happens when the session is invalidated.
func (r *SessionRegistry) ValueUnbound(sessionID string) {
	logger.DebugF("View scope registry unbound from session %s", sessionID)
	r.OnSessionEnd()
}

// Len returns the number of tracked callbacks, fired ones not yet compacted
// included.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.callbacks)
}

// Pending returns the number of callbacks that have not fired.
func (r *SessionRegistry) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, cb := range r.callbacks {
		if !cb.IsFired() {
			n++
		}
	}
	return n
}
