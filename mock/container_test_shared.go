// Package mock holds beans and helpers shared by the tests of several
// packages.
package mock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/centraunit/faces"
)

// Counter counts clicks for the lifetime of its scope.
type Counter struct {
	value    atomic.Int64
	boots    atomic.Int32
	shutdown atomic.Int32
}

func (c *Counter) OnBoot(ctx context.Context) error {
	c.boots.Add(1)
	return nil
}

func (c *Counter) OnShutdown(ctx context.Context) error {
	c.shutdown.Add(1)
	return nil
}

func (c *Counter) Increment() int64 { return c.value.Add(1) }
func (c *Counter) Value() int64     { return c.value.Load() }
func (c *Counter) BootCount() int   { return int(c.boots.Load()) }

// ShutdownCount returns how many times OnShutdown ran.
func (c *Counter) ShutdownCount() int { return int(c.shutdown.Load()) }

// CounterFactory binds a fresh Counter per scope and remembers every one it made.
type CounterFactory struct {
	mu      sync.Mutex
	created []*Counter
}

func (f *CounterFactory) Factory(ctx context.Context) (any, error) {
	c := &Counter{}
	f.mu.Lock()
	f.created = append(f.created, c)
	f.mu.Unlock()
	return c, nil
}

// Created returns the counters made so far.
func (f *CounterFactory) Created() []*Counter {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Counter, len(f.created))
	copy(out, f.created)
	return out
}

// ErrBootFailed is returned by FailingBean.OnBoot.
var ErrBootFailed = errors.New("boot failed")

// FailingBean cannot be booted.
type FailingBean struct{}

func (FailingBean) OnBoot(ctx context.Context) error     { return ErrBootFailed }
func (FailingBean) OnShutdown(ctx context.Context) error { return nil }

// ErrShutdownFailed is returned by StubbornBean.OnShutdown.
var ErrShutdownFailed = errors.New("shutdown failed")

// StubbornBean boots but fails to shut down.
type StubbornBean struct{}

func (StubbornBean) OnBoot(ctx context.Context) error     { return nil }
func (StubbornBean) OnShutdown(ctx context.Context) error { return ErrShutdownFailed }

// ShutdownLog records the order beans are shut down in.
type ShutdownLog struct {
	mu    sync.Mutex
	names []string
}

func (l *ShutdownLog) Names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.names))
	copy(out, l.names)
	return out
}

// Bean returns a bean that appends name to the log when shut down.
func (l *ShutdownLog) Bean(name string) faces.Lifecycle {
	return &loggedBean{name: name, log: l}
}

type loggedBean struct {
	name string
	log  *ShutdownLog
}

func (b *loggedBean) OnBoot(ctx context.Context) error { return nil }

func (b *loggedBean) OnShutdown(ctx context.Context) error {
	b.log.mu.Lock()
	b.log.names = append(b.log.names, b.name)
	b.log.mu.Unlock()
	return nil
}

// CallbackRecorder hands out destruction callbacks and counts their calls.
type CallbackRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewCallbackRecorder() *CallbackRecorder {
	return &CallbackRecorder{counts: make(map[string]int)}
}

// Callback returns a callback counting under name.
func (r *CallbackRecorder) Callback(name string) func() {
	return func() {
		r.mu.Lock()
		r.counts[name]++
		r.mu.Unlock()
	}
}

func (r *CallbackRecorder) Count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[name]
}

// Total returns the number of calls of every callback.
func (r *CallbackRecorder) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.counts {
		n += c
	}
	return n
}

// MapSession is a minimal faces.Session for tests that do not need the
// session container.
type MapSession struct {
	id    string
	attrs *faces.AttributeMap
}

func NewMapSession(id string) *MapSession {
	return &MapSession{id: id, attrs: faces.NewAttributeMap()}
}

func (s *MapSession) ID() string                        { return s.id }
func (s *MapSession) Attribute(name string) (any, bool) { return s.attrs.Get(name) }

func (s *MapSession) SetAttribute(name string, v any) error {
	s.attrs.Put(name, v)
	return nil
}

func (s *MapSession) RemoveAttribute(name string) error {
	s.attrs.Remove(name)
	return nil
}

func (s *MapSession) ComputeIfAbsent(name string, create func() any) (any, error) {
	return s.attrs.ComputeIfAbsent(name, create), nil
}
