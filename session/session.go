package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrSessionNotFound is returned when no session exists for the ID.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExpired is returned when the session's deadline has passed.
	ErrSessionExpired = errors.New("session expired")
)

// Session is an authenticated dashboard login.
type Session struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Email     string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// IsExpired reports whether the session's deadline has passed.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// Store holds sessions in memory, keyed by session ID. Sessions do not
// survive a restart; a login is cheap to redo.
type Store struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]*Session
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{byID: make(map[uuid.UUID]*Session)}
}

// Set inserts or replaces a session.
func (s *Store) Set(sess *Session) {
	s.mu.Lock()
	s.byID[sess.ID] = sess
	s.mu.Unlock()
}

// Get returns the session for the ID. An expired session is reported but
// left in place for Cleanup to collect.
func (s *Store) Get(id uuid.UUID) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.byID[id]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrSessionNotFound
	}
	if sess.IsExpired() {
		return nil, ErrSessionExpired
	}

	return sess, nil
}

// Delete removes a session. Unknown IDs are a no-op.
func (s *Store) Delete(id uuid.UUID) {
	s.mu.Lock()
	delete(s.byID, id)
	s.mu.Unlock()
}

// Cleanup drops every expired session and reports how many were removed.
func (s *Store) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	now := time.Now()
	for id, sess := range s.byID {
		if now.After(sess.ExpiresAt) {
			delete(s.byID, id)
			removed++
		}
	}

	return removed
}
