// Package history keeps per-session conversation transcripts in memory.
//
// The store is the gateway's only record of past turns. It is process-local
// and intentionally not durable: a restart starts every session fresh.
package history

import (
	"sort"
	"sync"
)

// Roles recorded in a transcript. Tool-call intermediates are never stored,
// only the user message and the final assistant answer of each request.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is a single recorded message.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Store is a mutex-guarded in-memory transcript store keyed by session ID.
// Session IDs are caller-chosen opaque strings; the store never invents or
// expires them.
type Store struct {
	mu       sync.RWMutex
	sessions map[string][]Turn
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{sessions: make(map[string][]Turn)}
}

// GetOrCreate returns a copy of the session's transcript, creating an empty
// session if the ID is unknown. The copy is safe for the caller to retain.
func (s *Store) GetOrCreate(sessionID string) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns, ok := s.sessions[sessionID]
	if !ok {
		s.sessions[sessionID] = nil
		return nil
	}

	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

// Append records a turn at the end of the session's transcript, creating the
// session if needed.
func (s *Store) Append(sessionID, role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = append(s.sessions[sessionID], Turn{Role: role, Content: content})
}

// Clear empties a session's transcript. The session stays enumerable; an
// unknown ID is a no-op and is not created.
func (s *Store) Clear(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; ok {
		s.sessions[sessionID] = nil
	}
}

// List returns all known session IDs in sorted order.
func (s *Store) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len reports the number of turns recorded for a session.
func (s *Store) Len(sessionID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions[sessionID])
}
