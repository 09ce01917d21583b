package state

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store for single-instance bots and tests.
type MemoryStore[S any] struct {
	mu       sync.RWMutex
	sessions map[int64]S
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore[S any]() *MemoryStore[S] {
	return &MemoryStore[S]{sessions: make(map[int64]S)}
}

// Get returns the session for a user if it exists.
func (m *MemoryStore[S]) Get(_ context.Context, userID int64) (S, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[userID]
	return s, ok, nil
}

// Put stores the session for a user.
func (m *MemoryStore[S]) Put(_ context.Context, userID int64, session S) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[userID] = session
	return nil
}

// Delete removes the session for a user.
func (m *MemoryStore[S]) Delete(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
	return nil
}

// Len reports the number of stored sessions.
func (m *MemoryStore[S]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
