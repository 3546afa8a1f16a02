package session

import (
	"context"
	"encoding/json"

	"tasknerd/internal/store"
	"tasknerd/internal/types"
)

// TurnRecord is one completed turn.
type TurnRecord struct {
	SessionID string
	Number    int
	Utterance string
	Intent    types.Intent
	Reply     types.Reply
}

// TurnRecorder appends completed turns to durable history.
type TurnRecorder interface {
	RecordTurn(ctx context.Context, rec TurnRecord) error
}

// StoreRecorder records turns into the store's session_turns table.
type StoreRecorder struct {
	Store *store.LocalStore
}

// RecordTurn implements TurnRecorder.
func (r StoreRecorder) RecordTurn(ctx context.Context, rec TurnRecord) error {
	intentJSON, err := json.Marshal(rec.Intent)
	if err != nil {
		return err
	}
	return r.Store.StoreSessionTurn(ctx, store.SessionTurn{
		SessionID:  rec.SessionID,
		TurnNumber: rec.Number,
		Utterance:  rec.Utterance,
		IntentJSON: string(intentJSON),
		Reply:      rec.Reply.Response,
	})
}
