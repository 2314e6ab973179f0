// Package memory defines the session transcript store. Transcripts are
// append-only: messages are never reordered or mutated after append.
package memory

import (
	"time"

	"github.com/wardenproj/warden/internal/provider"
)

// HistoryStore persists session transcripts.
// Implementations must be safe for concurrent use.
type HistoryStore interface {
	// Append adds a message to the end of the session's transcript.
	Append(sessionID string, msg provider.LLMMessage) error

	// GetRecent returns the n most recent messages in chronological order.
	GetRecent(sessionID string, n int) ([]provider.LLMMessage, error)

	// GetAll returns the full transcript in chronological order.
	GetAll(sessionID string) ([]provider.LLMMessage, error)

	// Purge removes the session's transcript entirely.
	Purge(sessionID string) error

	// Len returns the number of messages stored for a session.
	Len(sessionID string) (int, error)

	// Sessions returns the IDs of all sessions with stored messages.
	Sessions() ([]string, error)

	// PruneBefore deletes messages older than cutoff across all
	// sessions and returns the number removed.
	PruneBefore(cutoff time.Time) (int64, error)
}
