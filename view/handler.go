// Package view manages the logical views of each session: creating and
// restoring them by state key, and ending them on navigation, on explicit
// destruction, or when a session holds more views than allowed.
package view

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/centraunit/faces"
	"github.com/centraunit/faces/internal/logger"
)

const storeAttribute = "github.com/centraunit/faces/view.Store"

// ErrViewExpired is returned when restoring a view that has ended or was
// pushed out of its session.
var ErrViewExpired = errors.New("view expired")

// Handler creates, restores and ends views. Views live in a per-session store
// holding at most numberOfViews of them; the least recently used view is
// ended when a new one does not fit.
type Handler struct {
	numberOfViews int
}

// NewHandler returns a handler keeping numberOfViews views per session.
func NewHandler(numberOfViews int) (*Handler, error) {
	if numberOfViews <= 0 {
		return nil, fmt.Errorf("number of views must be positive, got %d", numberOfViews)
	}
	return &Handler{numberOfViews: numberOfViews}, nil
}

type store struct {
	mu    sync.Mutex
	views *simplelru.LRU[string, *faces.ViewRoot]
}

// add stores root and returns the view it pushed out, if any.
func (s *store) add(root *faces.ViewRoot, capacity int) *faces.ViewRoot {
	s.mu.Lock()
	defer s.mu.Unlock()
	var evicted *faces.ViewRoot
	if s.views.Len() >= capacity {
		_, evicted, _ = s.views.RemoveOldest()
	}
	s.views.Add(root.StateKey(), root)
	return evicted
}

func (s *store) get(stateKey string) (*faces.ViewRoot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.views.Get(stateKey)
}

func (s *store) remove(stateKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.views.Remove(stateKey)
}

func (s *store) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.views.Len()
}

func (h *Handler) store(fc *faces.FacesContext) (*store, error) {
	session := fc.Session()
	if session == nil {
		return nil, &faces.ContextUnavailableError{What: "session"}
	}
	v, err := session.ComputeIfAbsent(storeAttribute, func() any {
		// NewHandler rejected sizes NewLRU would fail on.
		views, _ := simplelru.NewLRU[string, *faces.ViewRoot](h.numberOfViews, nil)
		return &store{views: views}
	})
	if err != nil {
		return nil, err
	}
	s, ok := v.(*store)
	if !ok {
		return nil, fmt.Errorf("session attribute %s holds %T, not a view store", storeAttribute, v)
	}
	return s, nil
}

// CreateView creates a view of pageID, makes it the current view of fc and
// publishes PostConstructViewMap for its new view map.
func (h *Handler) CreateView(fc *faces.FacesContext, pageID string) (*faces.ViewRoot, error) {
	s, err := h.store(fc)
	if err != nil {
		return nil, err
	}

	root := faces.NewViewRoot(uuid.NewString(), pageID)
	evicted := s.add(root, h.numberOfViews)
	fc.SetViewRoot(root)
	root.ViewMap(true)
	logger.DebugF("Created view %s of page %s", root.StateKey(), pageID)

	if evicted != nil {
		logger.DebugF("View %s of page %s pushed out of its session", evicted.StateKey(), evicted.PageID())
		if err := h.end(fc, evicted); err != nil {
			logger.ErrorF("Ending view %s failed: %v", evicted.StateKey(), err)
		}
	}

	if err := publish(fc, faces.PostConstructViewMap, root); err != nil {
		return nil, err
	}
	return root, nil
}

// RestoreView makes the view stateKey of the session the current view of fc.
func (h *Handler) RestoreView(fc *faces.FacesContext, stateKey string) (*faces.ViewRoot, error) {
	s, err := h.store(fc)
	if err != nil {
		return nil, err
	}
	root, ok := s.get(stateKey)
	if !ok || root.Discarded() {
		return nil, ErrViewExpired
	}
	fc.SetViewRoot(root)
	return root, nil
}

// Navigate moves fc to pageID. Staying on the page of the current view keeps
// that view; any other page ends it and starts a new one.
func (h *Handler) Navigate(fc *faces.FacesContext, pageID string) (*faces.ViewRoot, error) {
	current := fc.ViewRoot()
	if current != nil && !current.Discarded() && current.PageID() == pageID {
		return current, nil
	}
	if current != nil {
		if err := h.DestroyView(fc, current); err != nil {
			return nil, err
		}
	}
	return h.CreateView(fc, pageID)
}

// DestroyView ends root: PreDestroyViewMap is published while its view map
// is still readable, then the view map is discarded.
func (h *Handler) DestroyView(fc *faces.FacesContext, root *faces.ViewRoot) error {
	if s, err := h.store(fc); err == nil {
		s.remove(root.StateKey())
	}
	if fc.ViewRoot() == root {
		fc.SetViewRoot(nil)
	}
	return h.end(fc, root)
}

// Views returns the number of views the session of fc holds.
func (h *Handler) Views(fc *faces.FacesContext) int {
	s, err := h.store(fc)
	if err != nil {
		return 0
	}
	return s.len()
}

func (h *Handler) end(fc *faces.FacesContext, root *faces.ViewRoot) error {
	if root.Discarded() {
		return nil
	}
	if root.ViewMap(false) != nil {
		if err := publish(fc, faces.PreDestroyViewMap, root); err != nil {
			return err
		}
	}
	root.Discard()
	logger.DebugF("Destroyed view %s of page %s", root.StateKey(), root.PageID())
	return nil
}

func publish(fc *faces.FacesContext, kind faces.EventKind, root *faces.ViewRoot) error {
	app := fc.Application()
	if app == nil {
		return &faces.ContextUnavailableError{What: "Application"}
	}
	return app.PublishEvent(fc, faces.NewViewMapEvent(kind, root))
}
