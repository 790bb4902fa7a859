// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Supported generation providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderGRPC   = "grpc"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string
	LogLevel    slog.Level
	// PlayerIdleTTL closes live games whose player has been idle this long.
	PlayerIdleTTL time.Duration
	// PlayerRetention prunes anonymous players unseen for this long.
	PlayerRetention time.Duration
	LLM             LLMConfig
	Agent           AgentConfig
}

// LLMConfig selects and tunes the text generation backend.
type LLMConfig struct {
	Provider               string
	BaseURL                string
	APIKey                 string
	Model                  string
	GRPCAddr               string
	Timeout                time.Duration
	MaxTokens              int
	StopTokens             []string
	StrategistTemperature  float64
	CommentatorTemperature float64
}

// AgentConfig holds the move-decision loop settings.
type AgentConfig struct {
	MaxRetries          int
	FallbackCommentary  string
	CommentaryFallback  string
	ReasoningSnippetLen int
	HintMoves           int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		FrontendURL:     getEnv("FRONTEND_URL", ""),
		DBPath:          getEnv("DB_PATH", "./data/neurochess.db"),
		LogLevel:        getEnvLevel("LOG_LEVEL", slog.LevelInfo),
		PlayerIdleTTL:   getEnvDuration("PLAYER_IDLE_TTL", 30*time.Minute),
		PlayerRetention: getEnvDuration("PLAYER_RETENTION", 30*24*time.Hour),
		LLM: LLMConfig{
			Provider:               strings.ToLower(getEnv("LLM_PROVIDER", ProviderOpenAI)),
			BaseURL:                getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
			APIKey:                 getEnv("LLM_API_KEY", ""),
			Model:                  getEnv("LLM_MODEL", ""),
			GRPCAddr:               getEnv("LLM_GRPC_ADDR", "localhost:50051"),
			Timeout:                getEnvDuration("LLM_TIMEOUT", 60*time.Second),
			MaxTokens:              getEnvInt("LLM_MAX_TOKENS", 16384),
			StopTokens:             getEnvList("LLM_STOP_TOKENS", []string{"<|im_end|>", "<|endoftext|>"}),
			StrategistTemperature:  getEnvFloat("LLM_STRATEGIST_TEMPERATURE", 0.6),
			CommentatorTemperature: getEnvFloat("LLM_COMMENTATOR_TEMPERATURE", 0.8),
		},
		Agent: AgentConfig{
			MaxRetries:          getEnvInt("AGENT_MAX_RETRIES", 10),
			FallbackCommentary:  getEnv("AGENT_FALLBACK_COMMENTARY", "I am confused. Random move go!"),
			CommentaryFallback:  getEnv("AGENT_COMMENTARY_PLACEHOLDER", "..."),
			ReasoningSnippetLen: getEnvInt("AGENT_REASONING_SNIPPET", 200),
			HintMoves:           getEnvInt("AGENT_HINT_MOVES", 10),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.PlayerIdleTTL <= 0 {
		return fmt.Errorf("PLAYER_IDLE_TTL must be > 0")
	}
	if c.PlayerRetention <= 0 {
		return fmt.Errorf("PLAYER_RETENTION must be > 0")
	}

	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderGemini:
		if c.LLM.Model == "" {
			return fmt.Errorf("LLM_MODEL is required for provider %q", c.LLM.Provider)
		}
	case ProviderGRPC:
		if c.LLM.GRPCAddr == "" {
			return fmt.Errorf("LLM_GRPC_ADDR cannot be empty")
		}
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER %q", c.LLM.Provider)
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be > 0")
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("LLM_MAX_TOKENS must be > 0")
	}
	if c.LLM.StrategistTemperature >= c.LLM.CommentatorTemperature {
		return fmt.Errorf("LLM_STRATEGIST_TEMPERATURE (%.2f) must be lower than LLM_COMMENTATOR_TEMPERATURE (%.2f)",
			c.LLM.StrategistTemperature, c.LLM.CommentatorTemperature)
	}

	if c.Agent.MaxRetries < 0 {
		return fmt.Errorf("AGENT_MAX_RETRIES must be >= 0")
	}
	if c.Agent.ReasoningSnippetLen < 0 {
		return fmt.Errorf("AGENT_REASONING_SNIPPET must be >= 0")
	}
	if c.Agent.HintMoves <= 0 {
		return fmt.Errorf("AGENT_HINT_MOVES must be > 0")
	}
	if strings.TrimSpace(c.Agent.FallbackCommentary) == "" || strings.TrimSpace(c.Agent.CommentaryFallback) == "" {
		return fmt.Errorf("fallback commentary strings cannot be empty")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

// getEnvList splits a comma-separated value, dropping blanks.
func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvLevel(key string, fallback slog.Level) slog.Level {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return fallback
	}
	return level
}
