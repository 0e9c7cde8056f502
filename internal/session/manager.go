package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/codebuildervaibhav/convertanything/internal/apperr"
)

// Manager owns the sessions served by one process
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	backend  Transcriber
	opts     []Option
}

// NewManager creates a manager whose sessions share b and opts
func NewManager(b Transcriber, opts ...Option) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		backend:  b,
		opts:     opts,
	}
}

// Create starts a new idle session
func (m *Manager) Create() *Session {
	s := New(uuid.New().String(), m.backend, m.opts...)

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	log.Debug().Str("session", s.ID()).Msg("session created")
	return s
}

// Get looks up a session
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, apperr.NotFound("session", id)
	}
	return s, nil
}

// Remove closes and forgets a session. A session with a submission in
// flight is not removed.
func (m *Manager) Remove(id string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	if s.Snapshot().IsProcessing {
		return busyError()
	}

	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()

	s.Close()
	return nil
}

// Len returns the number of live sessions
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep removes sessions untouched for longer than maxAge and returns how
// many were removed. Sessions with a submission in flight are kept.
func (m *Manager) Sweep(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	m.mu.Lock()
	var stale []*Session
	for id, s := range m.sessions {
		idle := s.IdleSince()
		if !idle.IsZero() && idle.Before(cutoff) {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range stale {
		s.Close()
	}
	if len(stale) > 0 {
		log.Info().Int("count", len(stale)).Msg("expired idle sessions")
	}
	return len(stale)
}
