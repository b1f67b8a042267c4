package faces

import "sync"

// AttributeMap is a string-keyed map safe for concurrent use. View maps and
// request attributes are AttributeMaps.
type AttributeMap struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewAttributeMap returns an empty map.
func NewAttributeMap() *AttributeMap {
	return &AttributeMap{values: make(map[string]any)}
}

func (m *AttributeMap) Get(name string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[name]
	return v, ok
}

// Put stores value under name and returns the value it replaced, if any.
func (m *AttributeMap) Put(name string, value any) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.values[name]
	m.values[name] = value
	return prev, ok
}

func (m *AttributeMap) Remove(name string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.values[name]
	if ok {
		delete(m.values, name)
	}
	return prev, ok
}

// ComputeIfAbsent returns the value stored under name, or stores and returns
// create(). create runs under the map lock and must not touch the map.
func (m *AttributeMap) ComputeIfAbsent(name string, create func() any) any {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.values[name]; ok {
		return v
	}
	v := create()
	m.values[name] = v
	return v
}

// Range calls fn for a snapshot of the entries, so fn may modify the map.
// Iteration stops when fn returns false.
func (m *AttributeMap) Range(fn func(name string, value any) bool) {
	m.mu.RLock()
	snapshot := make(map[string]any, len(m.values))
	for k, v := range m.values {
		snapshot[k] = v
	}
	m.mu.RUnlock()

	for k, v := range snapshot {
		if !fn(k, v) {
			return
		}
	}
}

func (m *AttributeMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}

// Clear removes every entry.
func (m *AttributeMap) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = make(map[string]any)
}
