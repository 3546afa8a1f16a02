package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"tasknerd/internal/interpreter"
	"tasknerd/internal/logging"
	"tasknerd/internal/types"
)

// wsFrame is the JSON form of an inbound frame. Plain text frames are
// the message itself.
type wsFrame struct {
	Message string `json:"message"`
	Confirm bool   `json:"confirm"`
}

func parseFrame(raw string) wsFrame {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") {
		var f wsFrame
		if err := json.Unmarshal([]byte(trimmed), &f); err == nil {
			return f
		}
	}
	return wsFrame{Message: raw}
}

// serveWS runs one session per connection. Replies go out in the order
// messages arrived; the session is expired when the connection ends.
func (s *Server) serveWS(ws *websocket.Conn) {
	id := "ws-" + uuid.NewString()
	ws.MaxPayloadBytes = maxMessageSize

	ctx, cancel := context.WithCancel(ws.Request().Context())
	defer cancel()
	defer s.in.Tracker().Expire(id)

	// Closing the conn unblocks Receive when the server shuts down.
	go func() {
		<-ctx.Done()
		ws.Close()
	}()

	logging.Server("websocket session %s opened from %s", id, ws.Request().RemoteAddr)
	defer logging.Server("websocket session %s closed", id)

	for {
		var raw string
		if err := websocket.Message.Receive(ws, &raw); err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				logging.ServerDebug("websocket session %s: receive: %v", id, err)
			}
			return
		}

		frame := parseFrame(raw)
		reply, err := s.in.Handle(ctx, interpreter.Request{SessionID: id, Text: frame.Message, Confirm: frame.Confirm})
		if err != nil {
			reply = types.Reply{Success: false, Response: "Error processing query: " + err.Error(), Type: types.ReplyError}
		}
		if err := websocket.JSON.Send(ws, reply); err != nil {
			logging.ServerDebug("websocket session %s: send: %v", id, err)
			return
		}
	}
}
