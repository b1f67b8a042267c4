package viewscope

import (
	"sync/atomic"

	"github.com/centraunit/faces/internal/logger"
)

// DestructionCallback wraps the destruction callback of one view-scoped
// bean. The view map and the session registry share the same instance, so
// whichever of them fires it first wins and the other finds it fired.
type DestructionCallback struct {
	beanName string
	action   atomic.Pointer[func()]
}

// NewDestructionCallback wraps action for beanName.
func NewDestructionCallback(beanName string, action func()) *DestructionCallback {
	cb := &DestructionCallback{beanName: beanName}
	cb.action.Store(&action)
	return cb
}

// BeanName returns the name the callback was registered under.
func (cb *DestructionCallback) BeanName() string {
	return cb.beanName
}

// FireFromView runs the callback because its view map is being destroyed.
func (cb *DestructionCallback) FireFromView() {
	cb.fire("view map")
}

// FireFromSession runs the callback because its session is being destroyed.
func (cb *DestructionCallback) FireFromSession() {
	cb.fire("session")
}

// fire claims the action and runs it. The action is cleared before it runs,
// so an action that panics is still never run a second time.
func (cb *DestructionCallback) fire(trigger string) {
	action := cb.action.Swap(nil)
	if action == nil {
		return
	}
	logger.DebugF("Calling destruction callback for bean %s because the %s is destroyed", cb.beanName, trigger)
	(*action)()
}

// IsFired reports whether the callback has run or is running.
func (cb *DestructionCallback) IsFired() bool {
	return cb.action.Load() == nil
}
