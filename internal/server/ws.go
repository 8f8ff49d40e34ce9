package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

// WebSocket message types.
const (
	msgTypeMessage  = "message"
	msgTypePing     = "ping"
	msgTypePong     = "pong"
	msgTypeThinking = "thinking"
	msgTypeAnswer   = "answer"
	msgTypeError    = "error"
)

// clientMessage is an inbound WebSocket frame.
type clientMessage struct {
	Type           string `json:"type"`
	Content        string `json:"content,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// serverMessage is an outbound WebSocket frame.
type serverMessage struct {
	Type           string   `json:"type"`
	Content        string   `json:"content,omitempty"`
	ConversationID string   `json:"conversation_id,omitempty"`
	ToolsUsed      []string `json:"tools_used,omitempty"`
	Fallback       bool     `json:"fallback,omitempty"`
	Error          string   `json:"error,omitempty"`
}

// handleWebSocket upgrades the connection and runs the chat session. The
// read loop only reads frames; all parsing and writing happens on the turn
// processor goroutine, keeping a single writer per connection.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Failed to upgrade connection", "user_id", userID, "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	inbound := make(chan []byte, 8)
	done := make(chan struct{})
	go s.processTurns(ctx, conn, userID, inbound, done)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				s.logger.Warn("WebSocket read failed", "user_id", userID, "error", err)
			}
			break
		}
		select {
		case inbound <- data:
		case <-done:
			return
		}
	}

	close(inbound)
	cancel()
	<-done
}

// processTurns consumes inbound frames and answers them in order. It owns
// all writes to the connection.
func (s *Server) processTurns(ctx context.Context, conn *websocket.Conn, userID string, inbound <-chan []byte, done chan<- struct{}) {
	defer close(done)

	// Conversation state lives for the life of the connection unless the
	// client pins a conversation explicitly.
	conversationID := ""

	for {
		select {
		case data, ok := <-inbound:
			if !ok {
				return
			}
			var msg clientMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				s.sendError(conn, "invalid message")
				continue
			}
			conversationID = s.handleClientMessage(ctx, conn, userID, conversationID, msg)
		case <-ctx.Done():
			return
		}
	}
}

// handleClientMessage dispatches one frame and returns the conversation to
// carry into the next turn.
func (s *Server) handleClientMessage(ctx context.Context, conn *websocket.Conn, userID, conversationID string, msg clientMessage) string {
	switch msg.Type {
	case msgTypeMessage:
		if strings.TrimSpace(msg.Content) == "" {
			s.sendError(conn, "content is required")
			return conversationID
		}
		if msg.ConversationID != "" {
			conversationID = msg.ConversationID
		}

		s.send(conn, serverMessage{Type: msgTypeThinking})

		resp, err := s.deps.Asker.Ask(ctx, userID, conversationID, msg.Content)
		if err != nil {
			s.logger.Error("Chat turn failed", "user_id", userID, "error", err)
			s.sendError(conn, "failed to answer")
			return conversationID
		}

		s.send(conn, serverMessage{
			Type:           msgTypeAnswer,
			Content:        resp.Text,
			ConversationID: resp.ConversationID,
			ToolsUsed:      resp.ToolsUsed,
			Fallback:       resp.Fallback,
		})
		return resp.ConversationID

	case msgTypePing:
		s.send(conn, serverMessage{Type: msgTypePong})
		return conversationID

	default:
		s.sendError(conn, fmt.Sprintf("unknown message type: %s", msg.Type))
		return conversationID
	}
}

func (s *Server) send(conn *websocket.Conn, msg serverMessage) {
	if err := conn.WriteJSON(msg); err != nil {
		s.logger.Warn("Failed to write message", "error", err)
	}
}

func (s *Server) sendError(conn *websocket.Conn, message string) {
	s.send(conn, serverMessage{Type: msgTypeError, Error: message})
}
