package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ashureev/guard-labs/internal/domain"
	"github.com/ashureev/guard-labs/internal/guard"
	"github.com/ashureev/guard-labs/internal/identity"
	"github.com/go-chi/chi/v5"
)

// Game is the set of operations served over HTTP.
type Game interface {
	Start(ctx context.Context, identity string, difficulty int) (string, error)
	Pin(ctx context.Context, identity string, level int, guess string) (bool, error)
	Chat(ctx context.Context, identity string, level int, history []guard.ChatMessage) (string, error)
	Summary(ctx context.Context) domain.Summary
	Session(ctx context.Context, identity string) ([]string, error)
}

const defaultDifficulty = 1

type startRequest struct {
	Difficulty *int `json:"difficulty"`
}

type startResponse struct {
	Hint string `json:"hint"`
}

type pinRequest struct {
	Level *int    `json:"level"`
	Code  *string `json:"code"`
}

type pinResponse struct {
	Success bool `json:"success"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Level    *int          `json:"level"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Response string `json:"response"`
}

func (req chatRequest) history() []guard.ChatMessage {
	out := make([]guard.ChatMessage, len(req.Messages))
	for i, m := range req.Messages {
		out[i] = guard.ChatMessage{Role: m.Role, Content: m.Content}
	}
	return out
}

// GameHandler serves the game endpoints.
type GameHandler struct {
	game           Game
	debugEndpoints bool
	logger         *slog.Logger
}

// NewGameHandler creates a GameHandler. When debugEndpoints is false the
// session disclosure route is not mounted.
func NewGameHandler(game Game, debugEndpoints bool, logger *slog.Logger) *GameHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GameHandler{game: game, debugEndpoints: debugEndpoints, logger: logger}
}

// RegisterRoutes registers game routes.
func (h *GameHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/start", h.Start)
		r.Post("/pin", h.Pin)
		r.Post("/chat", h.Chat)
		r.Get("/summary", h.Summary)
		if h.debugEndpoints {
			r.Get("/session", h.Session)
		}
	})
}

// Start begins a new session for the caller.
func (h *GameHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req *startRequest
	if err := decode(w, r, &req); err != nil {
		h.logger.Debug("Rejected start request", "error", err)
		Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req == nil {
		Error(w, http.StatusBadRequest, "Missing request body")
		return
	}
	difficulty := defaultDifficulty
	if req.Difficulty != nil {
		difficulty = *req.Difficulty
	}

	hint, err := h.game.Start(r.Context(), identity.FromContext(r.Context()), difficulty)
	if err != nil {
		ServiceError(w, err)
		return
	}
	JSON(w, http.StatusOK, startResponse{Hint: hint})
}

// Pin checks a code guess.
func (h *GameHandler) Pin(w http.ResponseWriter, r *http.Request) {
	var req pinRequest
	if err := decode(w, r, &req); err != nil {
		h.logger.Debug("Rejected pin request", "error", err)
		Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Level == nil || req.Code == nil {
		Error(w, http.StatusBadRequest, "level and code are required")
		return
	}

	ok, err := h.game.Pin(r.Context(), identity.FromContext(r.Context()), *req.Level, *req.Code)
	if err != nil {
		ServiceError(w, err)
		return
	}
	JSON(w, http.StatusOK, pinResponse{Success: ok})
}

// Chat forwards a conversation to a level's guard.
func (h *GameHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decode(w, r, &req); err != nil {
		h.logger.Debug("Rejected chat request", "error", err)
		Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Level == nil {
		Error(w, http.StatusBadRequest, "level is required")
		return
	}

	text, err := h.game.Chat(r.Context(), identity.FromContext(r.Context()), *req.Level, req.history())
	if err != nil {
		ServiceError(w, err)
		return
	}
	JSON(w, http.StatusOK, chatResponse{Response: text})
}

// Summary returns global attempt and success counts per level.
func (h *GameHandler) Summary(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.game.Summary(r.Context()))
}

// Session returns every code of the caller's session.
func (h *GameHandler) Session(w http.ResponseWriter, r *http.Request) {
	codes, err := h.game.Session(r.Context(), identity.FromContext(r.Context()))
	if err != nil {
		ServiceError(w, err)
		return
	}
	JSON(w, http.StatusOK, codes)
}
