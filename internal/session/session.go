// Package session manages the lifecycle of wizard sessions: one wizard per
// listing being edited, expired after a period of inactivity or a maximum
// age.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/matthewbaird/listingform/internal/wizard"
)

// Session wraps a wizard with the lock that serializes access to it.
type Session struct {
	mu           sync.Mutex
	wizard       *wizard.Wizard
	createdAt    time.Time
	lastActiveAt time.Time
}

// ID returns the wizard id.
func (s *Session) ID() string { return s.wizard.ID() }

// Do runs fn with exclusive access to the wizard and marks the session
// active.
func (s *Session) Do(fn func(w *wizard.Wizard) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActiveAt = time.Now()
	return fn(s.wizard)
}

// Submit runs a submission without holding the session lock across the
// collaborator call. Concurrent operations observe wizard.ErrSubmitting
// while the hand-off is in flight.
func (s *Session) Submit(ctx context.Context, sub wizard.Submitter) (wizard.SubmitOutcome, *wizard.Payload, error) {
	s.mu.Lock()
	s.lastActiveAt = time.Now()
	p, tr, err := s.wizard.BeginSubmit()
	s.mu.Unlock()
	if err != nil {
		return wizard.SubmitOutcome{}, nil, err
	}
	if p == nil {
		return wizard.SubmitOutcome{Transition: tr}, nil, nil
	}

	rec, subErr := sub.Submit(ctx, p)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActiveAt = time.Now()
	out, err := s.wizard.FinishSubmit(rec, subErr)
	return out, p, err
}

func (s *Session) expired(maxAge, idle time.Duration, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.wizard.Phase() == wizard.PhaseSubmitting {
		return false
	}
	return now.Sub(s.createdAt) > maxAge || now.Sub(s.lastActiveAt) > idle
}

// Manager handles session creation, lookup, and cleanup.
type Manager struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	maxAge      time.Duration
	idleTimeout time.Duration
	onEvict     func(id string)
}

// NewManager creates a session manager with the given timeouts.
func NewManager(maxAge, idleTimeout time.Duration) *Manager {
	return &Manager{
		sessions:    make(map[string]*Session),
		maxAge:      maxAge,
		idleTimeout: idleTimeout,
	}
}

// OnEvict sets a callback invoked with the id of every session removed for
// expiry. Set it before the manager is shared.
func (m *Manager) OnEvict(fn func(id string)) {
	m.onEvict = fn
}

// Add registers a wizard and returns its session.
func (m *Manager) Add(w *wizard.Wizard) *Session {
	now := time.Now()
	s := &Session{wizard: w, createdAt: now, lastActiveAt: now}
	m.mu.Lock()
	m.sessions[w.ID()] = s
	m.mu.Unlock()
	return s
}

// Get retrieves a session by id. Returns nil if not found or expired.
func (m *Manager) Get(id string) *Session {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	if s.expired(m.maxAge, m.idleTimeout, time.Now()) {
		m.evict(id)
		return nil
	}
	return s
}

// Remove deletes a session and releases its wizard's previews.
func (m *Manager) Remove(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.mu.Lock()
		s.wizard.Close()
		s.mu.Unlock()
	}
	return ok
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Cleanup removes all expired and idle sessions and returns how many were
// removed.
func (m *Manager) Cleanup() int {
	now := time.Now()
	m.mu.RLock()
	var stale []string
	for id, s := range m.sessions {
		if s.expired(m.maxAge, m.idleTimeout, now) {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()
	for _, id := range stale {
		m.evict(id)
	}
	return len(stale)
}

// Run calls Cleanup every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Cleanup()
		}
	}
}

// CloseAll removes every session.
func (m *Manager) CloseAll() {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	for _, id := range ids {
		m.Remove(id)
	}
}

func (m *Manager) evict(id string) {
	if m.Remove(id) && m.onEvict != nil {
		m.onEvict(id)
	}
}
