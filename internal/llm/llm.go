// Package llm provides text generation backends and the per-temperature
// client handles the agent talks to.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrEmptyResponse is returned when a backend produced only whitespace.
	ErrEmptyResponse = errors.New("empty generation response")
	// ErrUnknownProvider is returned by NewBackend for unsupported providers.
	ErrUnknownProvider = errors.New("unknown LLM provider")
)

// Role tags a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged chat message.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// System builds a system message.
func System(content string) Message { return Message{Role: RoleSystem, Content: content} }

// User builds a user message.
func User(content string) Message { return Message{Role: RoleUser, Content: content} }

// Request is a single generation call.
type Request struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
	Stop        []string
}

// Backend generates text for a request. Implementations must be safe for
// concurrent use.
type Backend interface {
	Generate(ctx context.Context, req Request) (string, error)
	Close() error
}

// Options are the sampling settings a Client applies to every call.
type Options struct {
	Temperature float64
	MaxTokens   int
	Stop        []string
	// Timeout bounds each call. Zero means no extra bound beyond ctx.
	Timeout time.Duration
}

// Client is a backend bound to fixed sampling options.
type Client struct {
	backend Backend
	opts    Options
}

// NewClient binds backend to opts.
func NewClient(backend Backend, opts Options) *Client {
	return &Client{backend: backend, opts: opts}
}

// Options returns the client's sampling settings.
func (c *Client) Options() Options {
	return c.opts
}

// Complete generates a reply to messages. A call that outlives the client
// timeout fails with context.DeadlineExceeded.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	req := Request{
		Messages:    messages,
		Temperature: c.opts.Temperature,
		MaxTokens:   c.opts.MaxTokens,
		Stop:        c.opts.Stop,
	}

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := c.backend.Generate(ctx, req)
		done <- result{text, err}
	}()

	// Backends that ignore ctx must not hold the caller past the deadline.
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("generation aborted: %w", ctx.Err())
	case r := <-done:
		if r.err != nil {
			return "", r.err
		}
		if strings.TrimSpace(r.text) == "" {
			return "", ErrEmptyResponse
		}
		return r.text, nil
	}
}
