package memory

import (
	"slices"
	"sync"
	"time"

	"github.com/wardenproj/warden/internal/provider"
)

// storedMessage pairs a transcript message with its append time so the
// pruner can expire old entries.
type storedMessage struct {
	msg provider.LLMMessage
	at  time.Time
}

// InMemoryHistory is a thread-safe, in-memory HistoryStore. It backs
// sessions when no persistent memory module is configured, and tests.
type InMemoryHistory struct {
	mu       sync.RWMutex
	sessions map[string][]storedMessage
	now      func() time.Time
}

// NewInMemoryHistory creates a new empty history store.
func NewInMemoryHistory() *InMemoryHistory {
	return &InMemoryHistory{
		sessions: make(map[string][]storedMessage),
		now:      time.Now,
	}
}

// Compile-time interface check.
var _ HistoryStore = (*InMemoryHistory)(nil)

// Append adds a message to the end of the session's transcript.
func (s *InMemoryHistory) Append(sessionID string, msg provider.LLMMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = append(s.sessions[sessionID], storedMessage{msg: msg, at: s.now()})
	return nil
}

// GetRecent returns the n most recent messages in chronological order.
func (s *InMemoryHistory) GetRecent(sessionID string, n int) ([]provider.LLMMessage, error) {
	if n <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.sessions[sessionID]
	if len(stored) > n {
		stored = stored[len(stored)-n:]
	}

	msgs := make([]provider.LLMMessage, len(stored))
	for i, sm := range stored {
		msgs[i] = sm.msg
	}
	return msgs, nil
}

// GetAll returns the full transcript in chronological order.
func (s *InMemoryHistory) GetAll(sessionID string) ([]provider.LLMMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.sessions[sessionID]
	msgs := make([]provider.LLMMessage, len(stored))
	for i, sm := range stored {
		msgs[i] = sm.msg
	}
	return msgs, nil
}

// Purge removes the session's transcript entirely.
func (s *InMemoryHistory) Purge(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// Len returns the number of messages stored for a session.
func (s *InMemoryHistory) Len(sessionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions[sessionID]), nil
}

// Sessions returns the IDs of all sessions with stored messages, sorted.
func (s *InMemoryHistory) Sessions() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// PruneBefore deletes messages older than cutoff across all sessions
// and returns the number removed. Sessions left empty are dropped.
func (s *InMemoryHistory) PruneBefore(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for id, stored := range s.sessions {
		kept := stored[:0]
		for _, sm := range stored {
			if sm.at.Before(cutoff) {
				removed++
				continue
			}
			kept = append(kept, sm)
		}
		if len(kept) == 0 {
			delete(s.sessions, id)
		} else {
			s.sessions[id] = kept
		}
	}
	return removed, nil
}
