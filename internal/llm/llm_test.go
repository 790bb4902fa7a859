package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ashureev/neurochess/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBackend struct {
	text  string
	err   error
	block bool
	last  Request
}

func (s *stubBackend) Generate(ctx context.Context, req Request) (string, error) {
	s.last = req
	if s.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return s.text, s.err
}

func (s *stubBackend) Close() error { return nil }

func TestClientAppliesOptions(t *testing.T) {
	backend := &stubBackend{text: "hello"}
	client := NewClient(backend, Options{Temperature: 0.6, MaxTokens: 42, Stop: []string{"<eos>"}})

	out, err := client.Complete(context.Background(), []Message{System("sys"), User("hi")})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
	assert.Equal(t, 0.6, backend.last.Temperature)
	assert.Equal(t, 42, backend.last.MaxTokens)
	assert.Equal(t, []string{"<eos>"}, backend.last.Stop)
	require.Len(t, backend.last.Messages, 2)
	assert.Equal(t, RoleSystem, backend.last.Messages[0].Role)
}

func TestClientTimeout(t *testing.T) {
	client := NewClient(&stubBackend{block: true}, Options{Timeout: 20 * time.Millisecond})

	start := time.Now()
	_, err := client.Complete(context.Background(), []Message{User("hi")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestClientEmptyResponse(t *testing.T) {
	client := NewClient(&stubBackend{text: "  \n"}, Options{})
	_, err := client.Complete(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestClientKeepsSurroundingWhitespace(t *testing.T) {
	client := NewClient(&stubBackend{text: "  Nice move!\n"}, Options{})
	out, err := client.Complete(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "  Nice move!\n", out)
}

func TestNewClientsTemperatures(t *testing.T) {
	strategist, commentator := NewClients(&stubBackend{}, config.LLMConfig{
		StrategistTemperature:  0.6,
		CommentatorTemperature: 0.8,
		MaxTokens:              100,
		Timeout:                time.Second,
	})
	assert.Less(t, strategist.Options().Temperature, commentator.Options().Temperature)
	assert.Equal(t, time.Second, commentator.Options().Timeout)
}

func TestNewBackendUnknownProvider(t *testing.T) {
	_, err := NewBackend(context.Background(), config.LLMConfig{Provider: "bard"}, nil)
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestOpenAIBackendGenerate(t *testing.T) {
	var got openAIRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"  I think e2e4. {\"move\": \"e2e4\"}  "}}]}`))
	}))
	defer srv.Close()

	backend := NewOpenAIBackend(OpenAIConfig{BaseURL: srv.URL + "/v1/", APIKey: "secret", Model: "qwen3"}, nil)
	out, err := backend.Generate(context.Background(), Request{
		Messages:    []Message{User("go")},
		Temperature: 0.6,
		MaxTokens:   16,
		Stop:        []string{"<|im_end|>"},
	})
	require.NoError(t, err)
	assert.Equal(t, `  I think e2e4. {"move": "e2e4"}  `, out)
	assert.Equal(t, "qwen3", got.Model)
	assert.Equal(t, 16, got.MaxTokens)
	assert.Equal(t, []string{"<|im_end|>"}, got.Stop)
}

func TestOpenAIBackendRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	backend := NewOpenAIBackend(OpenAIConfig{BaseURL: srv.URL, Model: "m", MaxRetries: 2, RetryBase: time.Millisecond}, nil)
	out, err := backend.Generate(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, int32(2), calls.Load())
}

func TestOpenAIBackendServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	backend := NewOpenAIBackend(OpenAIConfig{BaseURL: srv.URL, Model: "m", MaxRetries: 3, RetryBase: time.Millisecond}, nil)
	_, err := backend.Generate(context.Background(), Request{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
	assert.Equal(t, int32(1), calls.Load(), "non-429 errors are not retried")
}

func TestToGeminiContents(t *testing.T) {
	system, contents := toGeminiContents([]Message{
		System("a"),
		System("b"),
		User("question"),
		{Role: RoleAssistant, Content: "answer"},
	})
	assert.Equal(t, "a\n\nb", system)
	require.Len(t, contents, 2)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "model", contents[1].Role)
}
