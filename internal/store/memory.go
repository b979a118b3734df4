// internal/store/memory.go
//
// In-memory registry of running game sessions.
//
// Characteristics:
//   - Sessions are keyed by ID in a map guarded by an RWMutex.
//   - Each Session carries its own mutex; every engine event, including the
//     countdown callback, runs with it held.
//   - State is lost when the process restarts; idle sessions are swept.

package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robalobadob/wordscramble/internal/game"
)

// ErrNotFound is returned for unknown session IDs.
var ErrNotFound = errors.New("store: not found")

// Session pairs a running engine with the lock that serialises its events.
type Session struct {
	sync.Mutex

	ID        string
	PlayID    string // games row for the current play-through; changes on reset
	OwnerID   string // user ID or anonymous cookie ID
	Mode      string // "free" or "daily"
	Date      string // daily date key; empty for free play
	CreatedAt time.Time
	LastSeen  time.Time // guarded by the session lock

	Engine *game.Engine
}

// Touch records activity. Call with the session locked.
func (s *Session) Touch(now time.Time) { s.LastSeen = now }

// Store defines the registry interface for running sessions.
type Store interface {
	// Save adds or replaces a session.
	Save(ctx context.Context, s *Session) error
	// Get retrieves a session by ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*Session, error)
	// Delete removes a session and stops its countdown.
	Delete(ctx context.Context, id string) error
	// Sweep removes sessions idle since before cutoff and reports how many.
	Sweep(ctx context.Context, cutoff time.Time) int
	// Len reports the number of live sessions.
	Len() int
}

type memory struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemoryStore constructs an empty in-memory Store.
func NewMemoryStore() Store {
	return &memory{sessions: make(map[string]*Session)}
}

func (m *memory) Save(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

func (m *memory) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	return nil, ErrNotFound
}

func (m *memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	stop(s)
	return nil
}

func (m *memory) Sweep(ctx context.Context, cutoff time.Time) int {
	// Session locks can be held across slow work (the time-up hook writes to
	// the database), so they are never taken under m.mu.
	m.mu.RLock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mu.RUnlock()

	var idle []*Session
	for _, s := range all {
		s.Lock()
		if s.LastSeen.Before(cutoff) {
			idle = append(idle, s)
		}
		s.Unlock()
	}

	var stale []*Session
	m.mu.Lock()
	for _, s := range idle {
		// Skip sessions replaced or removed meanwhile.
		if m.sessions[s.ID] == s {
			delete(m.sessions, s.ID)
			stale = append(stale, s)
		}
	}
	m.mu.Unlock()

	for _, s := range stale {
		stop(s)
	}
	return len(stale)
}

func (m *memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func stop(s *Session) {
	s.Lock()
	defer s.Unlock()
	if s.Engine != nil {
		s.Engine.Stop()
	}
}
