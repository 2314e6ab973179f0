package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/wardenproj/warden/internal/provider"
)

const messageColumns = "role, content, name, tool_id, tool_calls, is_error"

// Append writes a message at the next sequence number for the session.
// The seq subquery and the insert run as one statement, so concurrent
// appends to the same session cannot collide.
func (h *historyStore) Append(sessionID string, msg provider.LLMMessage) error {
	toolCalls := "[]"
	if len(msg.ToolCalls) > 0 {
		encoded, err := json.Marshal(msg.ToolCalls)
		if err != nil {
			return fmt.Errorf("sqlite: marshal tool_calls: %w", err)
		}
		toolCalls = string(encoded)
	}

	isError := 0
	if msg.IsError {
		isError = 1
	}

	_, err := h.db.ExecContext(context.TODO(), `
		INSERT INTO messages (session_id, seq, `+messageColumns+`)
		VALUES (?, COALESCE((SELECT MAX(seq) FROM messages WHERE session_id = ?), 0) + 1,
		        ?, ?, ?, ?, ?, ?)`,
		sessionID, sessionID,
		string(msg.Role), msg.Content, msg.Name, msg.ToolID, toolCalls, isError,
	)
	if err != nil {
		return fmt.Errorf("sqlite: append message: %w", err)
	}
	return nil
}

// GetRecent returns the last n messages in chronological order.
func (h *historyStore) GetRecent(sessionID string, n int) ([]provider.LLMMessage, error) {
	if n <= 0 {
		return nil, nil
	}

	msgs, err := h.queryMessages(
		"SELECT "+messageColumns+" FROM messages WHERE session_id = ? ORDER BY seq DESC LIMIT ?",
		sessionID, n,
	)
	if err != nil {
		return nil, err
	}
	slices.Reverse(msgs)
	return msgs, nil
}

// GetAll returns the whole transcript in chronological order.
func (h *historyStore) GetAll(sessionID string) ([]provider.LLMMessage, error) {
	return h.queryMessages(
		"SELECT "+messageColumns+" FROM messages WHERE session_id = ? ORDER BY seq ASC",
		sessionID,
	)
}

// Purge drops the session's transcript.
func (h *historyStore) Purge(sessionID string) error {
	if _, err := h.db.ExecContext(context.TODO(), "DELETE FROM messages WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("sqlite: purge messages: %w", err)
	}
	return nil
}

// Len counts the session's stored messages.
func (h *historyStore) Len(sessionID string) (int, error) {
	var count int
	err := h.db.QueryRowContext(context.TODO(),
		"SELECT COUNT(*) FROM messages WHERE session_id = ?", sessionID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("sqlite: count messages: %w", err)
	}
	return count, nil
}

// Sessions lists every session id with stored messages, sorted.
func (h *historyStore) Sessions() ([]string, error) {
	rows, err := h.db.QueryContext(context.TODO(),
		"SELECT DISTINCT session_id FROM messages ORDER BY session_id ASC",
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: session rows: %w", err)
	}
	return ids, nil
}

// PruneBefore deletes messages older than cutoff across every session
// and reports how many went. created_at is RFC 3339 UTC with
// millisecond precision, so string comparison is chronological.
func (h *historyStore) PruneBefore(cutoff time.Time) (int64, error) {
	res, err := h.db.ExecContext(context.TODO(),
		"DELETE FROM messages WHERE created_at < ?",
		cutoff.UTC().Format("2006-01-02T15:04:05.000Z"),
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: prune messages: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: prune rows affected: %w", err)
	}
	return removed, nil
}

func (h *historyStore) queryMessages(query string, args ...any) ([]provider.LLMMessage, error) {
	rows, err := h.db.QueryContext(context.TODO(), query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var msgs []provider.LLMMessage
	for rows.Next() {
		msg, err := decodeRow(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: message rows: %w", err)
	}
	return msgs, nil
}

func decodeRow(rows interface{ Scan(dest ...any) error }) (provider.LLMMessage, error) {
	var (
		msg       provider.LLMMessage
		role      string
		toolCalls string
		isError   int
	)
	if err := rows.Scan(&role, &msg.Content, &msg.Name, &msg.ToolID, &toolCalls, &isError); err != nil {
		return msg, fmt.Errorf("sqlite: scan message: %w", err)
	}

	msg.Role = provider.MessageRole(role)
	msg.IsError = isError != 0
	if toolCalls != "" && toolCalls != "[]" {
		if err := json.Unmarshal([]byte(toolCalls), &msg.ToolCalls); err != nil {
			return msg, fmt.Errorf("sqlite: unmarshal tool_calls: %w", err)
		}
	}
	return msg, nil
}
