package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ashureev/guard-labs/internal/guard"
	"github.com/ashureev/guard-labs/internal/identity"
	"github.com/coder/websocket"
)

const wsReadLimit = maxBodyBytes

// ChatSocketHandler serves Chat over a websocket. Each text frame carries a
// chat request; each reply is a chat response or an error message.
type ChatSocketHandler struct {
	game          Game
	allowedOrigin string
	isDev         bool
	logger        *slog.Logger
}

// NewChatSocketHandler creates a new websocket chat handler.
func NewChatSocketHandler(game Game, allowedOrigin string, isDev bool, logger *slog.Logger) *ChatSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatSocketHandler{
		game:          game,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
		logger:        logger,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *ChatSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := identity.FromContext(r.Context())
	h.logger.Info("WebSocket chat connection request", "identity", id)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("Failed to accept WebSocket", "error", err, "identity", id)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "chat ended"); closeErr != nil {
			h.logger.Debug("Failed to close websocket", "error", closeErr, "identity", id)
		}
	}()
	ws.SetReadLimit(wsReadLimit)

	h.readLoop(r.Context(), ws, id)
	h.logger.Info("WebSocket chat ended", "identity", id)
}

func (h *ChatSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	h.logger.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *ChatSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn, id string) {
	for {
		typ, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				h.logger.Debug("WebSocket closed by client", "identity", id)
			} else if ctx.Err() == nil {
				h.logger.Warn("WebSocket read error", "error", err, "identity", id)
			}
			return
		}
		if typ != websocket.MessageText {
			if err := h.writeJSON(ctx, ws, map[string]string{"message": "text frames only"}); err != nil {
				return
			}
			continue
		}

		reply := h.handleFrame(ctx, id, data)
		if err := h.writeJSON(ctx, ws, reply); err != nil {
			h.logger.Debug("WebSocket write error", "error", err, "identity", id)
			return
		}
	}
}

func (h *ChatSocketHandler) handleFrame(ctx context.Context, id string, data []byte) interface{} {
	var req chatRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return map[string]string{"message": "Invalid request body"}
	}
	if req.Level == nil {
		return map[string]string{"message": "level is required"}
	}

	text, err := h.game.Chat(ctx, id, *req.Level, req.history())
	if err != nil {
		return map[string]string{"message": guard.PublicMessage(err)}
	}
	return chatResponse{Response: text}
}

func (h *ChatSocketHandler) writeJSON(ctx context.Context, ws *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return ws.Write(ctx, websocket.MessageText, data)
}
