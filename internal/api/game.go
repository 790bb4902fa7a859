package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ashureev/neurochess/internal/agent"
	"github.com/ashureev/neurochess/internal/board"
	"github.com/ashureev/neurochess/internal/identity"
	"github.com/go-chi/chi/v5"
)

const maxDecideBody = 16 << 10

// GameHandler handles stateless decisions and player information.
type GameHandler struct {
	*Handler
}

// NewGameHandler creates a new game handler.
func NewGameHandler(base *Handler) *GameHandler {
	return &GameHandler{Handler: base}
}

// RegisterRoutes registers game routes.
func (h *GameHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/me", h.GetMe)
		r.Post("/decide", h.Decide)
	})
}

type decideRequest struct {
	FEN string `json:"fen"`
}

type decideResponse struct {
	ID         string `json:"id"`
	Move       string `json:"move"`
	Commentary string `json:"commentary"`
	Attempts   int    `json:"attempts"`
	Fallback   bool   `json:"fallback"`
}

// Decide asks the agent for a move in the posted position.
func (h *GameHandler) Decide(w http.ResponseWriter, r *http.Request) {
	var req decideRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxDecideBody)).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	pos, err := board.ParseFEN(req.FEN)
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid fen")
		return
	}
	if status := pos.Status(); status != "" {
		Error(w, http.StatusConflict, "game is over: "+status)
		return
	}

	playerID := identity.PlayerIDFromContext(r.Context())
	decision, err := h.decider.Decide(r.Context(), pos)
	switch {
	case errors.Is(err, agent.ErrNoLegalMoves):
		Error(w, http.StatusConflict, "position has no legal moves")
		return
	case err != nil:
		if r.Context().Err() != nil {
			slog.Info("Decision abandoned by client", "player_id", playerID)
			return
		}
		slog.Error("Failed to decide", "error", err, "player_id", playerID)
		Error(w, http.StatusInternalServerError, "failed to decide")
		return
	}

	JSON(w, http.StatusOK, decideResponse{
		ID:         decision.ID,
		Move:       decision.Move,
		Commentary: decision.Commentary,
		Attempts:   decision.Attempts,
		Fallback:   decision.Fallback,
	})
}

// GetMe returns the current player and their counters.
func (h *GameHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	playerID := identity.PlayerIDFromContext(r.Context())
	if playerID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	player, err := h.repo.GetPlayer(r.Context(), playerID)
	if err != nil || player == nil {
		Error(w, http.StatusUnauthorized, "player not found")
		return
	}

	stats, err := h.repo.GetStats(r.Context(), playerID)
	if err != nil {
		slog.Error("Failed to load stats", "error", err, "player_id", playerID)
		Error(w, http.StatusInternalServerError, "failed to load stats")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"player_id":        player.PlayerID,
		"username":         player.Username,
		"tab_id":           identity.TabIDFromContext(r.Context()),
		"stats":            stats,
		"average_attempts": stats.AverageAttempts(),
	})
}
