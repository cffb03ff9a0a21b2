package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
)

const maxWSMessageBytes = 16 << 10

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Same policy as withCORS.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsRequest is one client frame on /ws. Type is "ask" (default) or "clear".
type wsRequest struct {
	Type     string `json:"type"`
	Question string `json:"question" validate:"max=4000"`
}

type wsReply struct {
	Type   string         `json:"type"`
	Answer string         `json:"answer,omitempty"`
	Status string         `json:"status,omitempty"`
	Error  map[string]any `json:"error,omitempty"`
}

// handleWS keeps a conversation open over a websocket, one JSON reply per frame.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxWSMessageBytes)
	s.logger.Debug().Str("remote", r.RemoteAddr).Msg("WebSocket client connected")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn().Err(err).Msg("WebSocket closed unexpectedly")
			}
			return
		}
		if err := conn.WriteJSON(s.replyTo(r.Context(), data)); err != nil {
			s.logger.Warn().Err(err).Msg("WebSocket write failed")
			return
		}
	}
}

func (s *Server) replyTo(ctx context.Context, data []byte) wsReply {
	var req wsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return wsError(http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
	}
	switch req.Type {
	case "clear":
		s.mu.Lock()
		s.conversation.Reset()
		s.mu.Unlock()
		return wsReply{Type: "cleared", Status: "history cleared"}
	case "", "ask":
		if err := s.validate.Struct(req); err != nil {
			return wsError(http.StatusBadRequest, fmt.Errorf("question too long: %w", err))
		}
		s.mu.Lock()
		answer := s.conversation.Ask(ctx, req.Question)
		s.mu.Unlock()
		return wsReply{Type: "answer", Answer: answer}
	default:
		return wsError(http.StatusBadRequest, fmt.Errorf("unknown message type %q", req.Type))
	}
}

func wsError(status int, err error) wsReply {
	e := toAPIError(status, err)
	return wsReply{Type: "error", Error: map[string]any{"code": e.Code, "message": e.Message}}
}
