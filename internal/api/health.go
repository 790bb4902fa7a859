package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/neurochess/internal/config"
	"github.com/ashureev/neurochess/internal/game"
	"github.com/ashureev/neurochess/internal/store"
	"github.com/go-chi/chi/v5"
)

const healthCheckTimeout = 5 * time.Second

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	repo     store.Repository
	registry *game.Registry
	cfg      *config.Config
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(repo store.Repository, registry *game.Registry, cfg *config.Config) *HealthHandler {
	return &HealthHandler{repo: repo, registry: registry, cfg: cfg}
}

// Health returns the health status of the API and its dependencies.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := map[string]interface{}{
		"status": "healthy",
		"checks": checks,
	}
	if h.cfg != nil {
		status["llm"] = map[string]string{
			"provider": h.cfg.LLM.Provider,
			"model":    h.cfg.LLM.Model,
		}
	}
	if h.registry != nil {
		status["active_games"] = h.registry.Count()
	}
	statusCode := http.StatusOK

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		status["status"] = "degraded"
		checks["database"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	JSON(w, statusCode, status)
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/health", h.Health)
}
