package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ashureev/neurochess/internal/config"
)

// NewBackend builds the backend selected by cfg.Provider.
func NewBackend(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) (Backend, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewOpenAIBackend(OpenAIConfig{
			BaseURL:    cfg.BaseURL,
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			MaxRetries: 3,
		}, logger), nil
	case config.ProviderGemini:
		return NewGeminiBackend(ctx, cfg.APIKey, cfg.Model)
	case config.ProviderGRPC:
		return NewGRPCBackend(DefaultGRPCConfig(cfg.GRPCAddr), logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}

// NewClients builds the strategist and commentator handles sharing backend.
func NewClients(backend Backend, cfg config.LLMConfig) (strategist, commentator *Client) {
	strategist = NewClient(backend, Options{
		Temperature: cfg.StrategistTemperature,
		MaxTokens:   cfg.MaxTokens,
		Stop:        cfg.StopTokens,
		Timeout:     cfg.Timeout,
	})
	commentator = NewClient(backend, Options{
		Temperature: cfg.CommentatorTemperature,
		MaxTokens:   cfg.MaxTokens,
		Stop:        cfg.StopTokens,
		Timeout:     cfg.Timeout,
	})
	return strategist, commentator
}
