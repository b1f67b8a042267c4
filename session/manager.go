package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/centraunit/faces/internal/logger"
)

// Manager owns the live sessions of an application.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	maxInactive  time.Duration
	reapInterval time.Duration
	now          func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager returns a manager expiring sessions idle for longer than
// maxInactive, checked every reapInterval by Run. A zero maxInactive keeps
// sessions until they are invalidated.
func NewManager(maxInactive, reapInterval time.Duration, opts ...Option) *Manager {
	m := &Manager{
		sessions:     make(map[string]*Session),
		maxInactive:  maxInactive,
		reapInterval: reapInterval,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create starts a new session.
func (m *Manager) Create() *Session {
	s := newSession(uuid.NewString(), m.now(), m.forget)
	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()
	logger.DebugF("Created session %s", s.id)
	return s
}

// Get returns the live session id and records the access. A session found
// idle for too long is invalidated and not returned.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	now := m.now()
	if m.expired(s, now) {
		s.Invalidate()
		return nil, false
	}
	s.touch(now)
	return s, true
}

// Invalidate ends the session id. It reports whether a live session was found.
func (m *Manager) Invalidate(id string) bool {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	return s.Invalidate()
}

// Expire invalidates every idle session and returns how many it ended.
func (m *Manager) Expire() int {
	if m.maxInactive <= 0 {
		return 0
	}
	now := m.now()
	var idle []*Session
	m.mu.RLock()
	for _, s := range m.sessions {
		if m.expired(s, now) {
			idle = append(idle, s)
		}
	}
	m.mu.RUnlock()

	n := 0
	for _, s := range idle {
		if s.Invalidate() {
			n++
		}
	}
	if n > 0 {
		logger.InfoF("Expired %d idle sessions", n)
	}
	return n
}

// Run expires idle sessions every reap interval until ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	if m.reapInterval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	ticker := time.NewTicker(m.reapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Expire()
		}
	}
}

// Close invalidates every session.
func (m *Manager) Close() {
	m.mu.RLock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mu.RUnlock()

	for _, s := range all {
		s.Invalidate()
	}
	logger.InfoF("Closed %d sessions", len(all))
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) expired(s *Session, now time.Time) bool {
	return m.maxInactive > 0 && now.Sub(s.LastAccess()) > m.maxInactive
}

func (m *Manager) forget(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}
