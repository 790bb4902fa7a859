// Package api provides HTTP handlers for the neurochess API.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ashureev/neurochess/internal/agent"
	"github.com/ashureev/neurochess/internal/board"
	"github.com/ashureev/neurochess/internal/store"
)

// Decider picks a move for a position. *agent.Agent implements it.
type Decider interface {
	Decide(ctx context.Context, pos board.Position) (agent.Decision, error)
}

// Handler provides common handler dependencies.
type Handler struct {
	repo    store.Repository
	decider Decider
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(repo store.Repository, decider Decider) *Handler {
	return &Handler{
		repo:    repo,
		decider: decider,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
