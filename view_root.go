package faces

import "sync"

// ViewRoot is one logical view: a rendered page instance identified by its
// state key. Its view map lives as long as the view.
type ViewRoot struct {
	stateKey string
	pageID   string

	mu        sync.Mutex
	viewMap   *AttributeMap
	discarded bool
}

// NewViewRoot creates a view root for pageID, addressed by stateKey.
func NewViewRoot(stateKey, pageID string) *ViewRoot {
	return &ViewRoot{stateKey: stateKey, pageID: pageID}
}

// StateKey identifies this view instance.
func (v *ViewRoot) StateKey() string {
	return v.stateKey
}

// PageID names the page the view renders, e.g. "/orders/edit".
func (v *ViewRoot) PageID() string {
	return v.pageID
}

// ViewMap returns the view map, creating it when create is true. It returns
// nil once the view has been discarded, or when the map does not exist and
// create is false.
func (v *ViewRoot) ViewMap(create bool) *AttributeMap {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.discarded {
		return nil
	}
	if v.viewMap == nil && create {
		v.viewMap = NewAttributeMap()
	}
	return v.viewMap
}

// Discard ends the view. The view map becomes unavailable and is returned
// for a last inspection; it is nil if it was never created or the view was
// already discarded.
func (v *ViewRoot) Discard() *AttributeMap {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.discarded {
		return nil
	}
	v.discarded = true
	m := v.viewMap
	v.viewMap = nil
	return m
}

// Discarded reports whether the view has ended.
func (v *ViewRoot) Discarded() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.discarded
}
