package store

import (
	"context"
	"fmt"
	"time"

	"tasknerd/internal/logging"
)

// =============================================================================
// SESSION HISTORY
// =============================================================================

// SessionTurn is one recorded interpreter turn.
type SessionTurn struct {
	SessionID  string    `json:"session_id"`
	TurnNumber int       `json:"turn_number"`
	Utterance  string    `json:"utterance"`
	IntentJSON string    `json:"intent_json"`
	Reply      string    `json:"reply"`
	CreatedAt  time.Time `json:"created_at"`
}

// StoreSessionTurn records a conversation turn.
// Uses INSERT OR IGNORE so re-recording the same turn is a no-op.
func (s *LocalStore) StoreSessionTurn(ctx context.Context, turn SessionTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO session_turns (session_id, turn_number, utterance, intent_json, reply, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		turn.SessionID, turn.TurnNumber, turn.Utterance, turn.IntentJSON, turn.Reply, formatTime(turn.CreatedAt),
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to store turn %s/%d: %v", turn.SessionID, turn.TurnNumber, err)
		return fmt.Errorf("failed to store session turn: %w", err)
	}
	logging.StoreDebug("Stored turn %s/%d", turn.SessionID, turn.TurnNumber)
	return nil
}

// GetSessionTurns returns the recorded turns of a session in order.
func (s *LocalStore) GetSessionTurns(ctx context.Context, sessionID string, limit int) ([]SessionTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, turn_number, utterance, intent_json, reply, created_at
		 FROM session_turns WHERE session_id = ? ORDER BY turn_number LIMIT ?`,
		sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query session turns: %w", err)
	}
	defer rows.Close()

	var out []SessionTurn
	for rows.Next() {
		var t SessionTurn
		var created string
		if err := rows.Scan(&t.SessionID, &t.TurnNumber, &t.Utterance, &t.IntentJSON, &t.Reply, &created); err != nil {
			return nil, err
		}
		t.CreatedAt = parseTime(created)
		out = append(out, t)
	}
	return out, rows.Err()
}
