// Neurochess - play chess against a language model.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/neurochess/internal/agent"
	"github.com/ashureev/neurochess/internal/api"
	"github.com/ashureev/neurochess/internal/config"
	"github.com/ashureev/neurochess/internal/game"
	"github.com/ashureev/neurochess/internal/identity"
	"github.com/ashureev/neurochess/internal/llm"
	"github.com/ashureev/neurochess/internal/metrics"
	"github.com/ashureev/neurochess/internal/middleware"
	"github.com/ashureev/neurochess/internal/store"
	"github.com/ashureev/neurochess/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
)

func main() {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	level.Set(cfg.LogLevel)

	slog.Info("Starting server",
		"port", cfg.Port,
		"dev", cfg.IsDevelopment(),
		"provider", cfg.LLM.Provider,
		"model", cfg.LLM.Model,
		"max_retries", cfg.Agent.MaxRetries)

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	backend, err := llm.NewBackend(context.Background(), cfg.LLM, logger)
	if err != nil {
		slog.Error("Failed to initialize LLM backend", "error", err)
		_ = repo.Close()
		os.Exit(1)
	}
	slog.Info("LLM backend initialized", "provider", cfg.LLM.Provider)

	strategist, commentator := llm.NewClients(backend, cfg.LLM)
	m := metrics.New()
	chessAgent := agent.New(cfg.Agent, strategist, commentator,
		agent.WithHooks(m.Hooks()),
		agent.WithLogger(logger))

	// Initialize handlers.
	registry := game.NewRegistry()
	baseHandler := api.NewHandler(repo, chessAgent)
	gameHandler := api.NewGameHandler(baseHandler)
	healthHandler := api.NewHealthHandler(repo, registry, cfg)
	wsHandler := game.NewHandler(repo, chessAgent, registry, cfg.FrontendURL, cfg.IsDevelopment())
	wsHandler.SetObserver(m)

	allowedOrigins := []string{"*"}
	if cfg.FrontendURL != "" {
		allowedOrigins = []string{cfg.FrontendURL}
	}

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(allowedOrigins))

	// Public routes without player identity.
	healthHandler.RegisterHealth(r)
	r.Handle("/metrics", m.Handler())

	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(repo, cfg.IsDevelopment()))

		gameHandler.RegisterRoutes(r)

		// WebSocket endpoint.
		r.Get("/ws", wsHandler.ServeHTTP)

		// Serve embedded frontend (SPA catch-all).
		r.Handle("/*", web.SPAHandler())
	})

	// Agent decisions can take minutes, so responses have no write deadline.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}
	srv.RegisterOnShutdown(registry.CloseAll)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	game.StartTTLWorker(ctx, repo, registry, cfg.PlayerIdleTTL, cfg.PlayerRetention, nil)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var result *multierror.Error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		result = multierror.Append(result, err)
	}
	if err := wsHandler.Wait(shutdownCtx); err != nil {
		result = multierror.Append(result, err)
	}
	if err := backend.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := repo.Close(); err != nil {
		result = multierror.Append(result, err)
	}

	if err := result.ErrorOrNil(); err != nil {
		slog.Error("Shutdown incomplete", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
