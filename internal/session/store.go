// Package session holds the process-wide session metadata and
// conversation history. All state lives in memory and is lost on
// restart; sessions are destroyed only by explicit clear.
package session

import (
	"sync"
	"time"

	"github.com/agentichat/agent-gateway/internal/metrics"
	"github.com/agentichat/agent-gateway/internal/schema"
)

// Meta is the metadata kept per session.
type Meta struct {
	CreatedAt    time.Time `json:"created_at"`
	MessageCount int       `json:"message_count"`
}

// Store maps session identifiers to metadata and conversation history.
// Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Meta
	history  map[string][]schema.ChatMessage
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Meta),
		history:  make(map[string][]schema.ChatMessage),
	}
}

// Touch resolves a session, creating metadata and an empty history on
// first use, and increments its message count.
func (s *Store) Touch(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, ok := s.sessions[id]
	if !ok {
		meta = &Meta{CreatedAt: time.Now()}
		s.sessions[id] = meta
		s.history[id] = []schema.ChatMessage{}
		metrics.ActiveSessions.Set(float64(len(s.sessions)))
	}
	meta.MessageCount++
}

// Append adds a message to a session's history. The history is
// append-only except for Clear.
func (s *Store) Append(id string, msg schema.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[id] = append(s.history[id], msg)
}

// History returns a copy of a session's conversation history.
func (s *Store) History(id string) []schema.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.history[id]
	out := make([]schema.ChatMessage, len(msgs))
	copy(out, msgs)
	return out
}

// Recent returns up to n of the most recent messages in a session.
func (s *Store) Recent(id string, n int) []schema.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.history[id]
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	out := make([]schema.ChatMessage, len(msgs))
	copy(out, msgs)
	return out
}

// Stats summarizes a session. The second return is false when the
// session identifier is unknown.
func (s *Store) Stats(id string) (schema.SessionStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	meta, ok := s.sessions[id]
	if !ok {
		return schema.SessionStats{}, false
	}

	msgs := s.history[id]
	stats := schema.SessionStats{
		SessionID:          id,
		CreatedAt:          float64(meta.CreatedAt.UnixNano()) / float64(time.Second),
		MessageCount:       meta.MessageCount,
		ConversationLength: len(msgs),
	}
	if len(msgs) > 0 {
		stats.LastActivity = msgs[len(msgs)-1].Timestamp.Format(time.RFC3339)
	}
	return stats, true
}

// Clear removes a session's metadata and history. Returns false when
// the identifier is unknown to either map.
func (s *Store) Clear(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, hadMeta := s.sessions[id]
	_, hadHistory := s.history[id]
	delete(s.sessions, id)
	delete(s.history, id)
	metrics.ActiveSessions.Set(float64(len(s.sessions)))

	return hadMeta || hadHistory
}

// Active returns a snapshot of all session metadata.
func (s *Store) Active() map[string]Meta {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Meta, len(s.sessions))
	for id, meta := range s.sessions {
		out[id] = *meta
	}
	return out
}

// Count returns the number of active sessions.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// TotalMessages returns the message count summed across sessions.
func (s *Store) TotalMessages() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, meta := range s.sessions {
		total += meta.MessageCount
	}
	return total
}
