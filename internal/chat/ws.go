package chat

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsRequest is the incoming WebSocket message format.
type wsRequest struct {
	SessionID  string `json:"session_id"` // empty for new sessions
	BarangayID string `json:"barangay_id,omitempty"`
	Content    string `json:"content"`
}

// wsResponse is the outgoing WebSocket message format.
type wsResponse struct {
	Type      string          `json:"type"` // "response" or "error"
	SessionID string          `json:"session_id"`
	Response  *EngineResponse `json:"response,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Socket serves the conversational interface over a WebSocket, one turn per
// inbound message.
type Socket struct {
	store  *Store
	engine *Engine
	logger *slog.Logger
}

// NewSocket creates the WebSocket handler.
func NewSocket(store *Store, engine *Engine, logger *slog.Logger) *Socket {
	if logger == nil {
		logger = slog.Default()
	}
	return &Socket{store: store, engine: engine, logger: logger}
}

// RegisterRoutes mounts the WebSocket endpoint.
func (s *Socket) RegisterRoutes(r chi.Router) {
	r.Get("/ws/chat", s.handle)
}

func (s *Socket) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read failed", "error", err)
			}
			return
		}

		var req wsRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			s.sendError(conn, "", "invalid message format")
			continue
		}
		if req.Content == "" {
			s.sendError(conn, req.SessionID, "content is required")
			continue
		}

		sessionID := req.SessionID
		if sessionID == "" {
			sess, err := s.store.CreateSession(r.Context(), "", req.BarangayID)
			if err != nil {
				s.sendError(conn, "", "failed to create session: "+err.Error())
				continue
			}
			sessionID = sess.ID
		}

		resp, err := s.engine.HandleTurn(r.Context(), sessionID, req.Content)
		if err != nil {
			s.sendError(conn, sessionID, "processing failed: "+err.Error())
			continue
		}

		s.send(conn, wsResponse{Type: "response", SessionID: sessionID, Response: resp})
	}
}

func (s *Socket) send(conn *websocket.Conn, resp wsResponse) {
	if err := conn.WriteJSON(resp); err != nil {
		s.logger.Warn("websocket write failed", "error", err)
	}
}

func (s *Socket) sendError(conn *websocket.Conn, sessionID, message string) {
	s.send(conn, wsResponse{Type: "error", SessionID: sessionID, Error: message})
}
