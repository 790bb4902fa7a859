// Package agent decides the engine's move: a strategist proposes, the rules
// oracle validates, rejections are fed back until the retry ceiling is hit,
// and a random legal move is substituted when it is. Accepted moves get a
// commentator remark.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/ashureev/neurochess/internal/board"
	"github.com/ashureev/neurochess/internal/config"
	"github.com/ashureev/neurochess/internal/llm"
)

// ErrNoLegalMoves is returned for finished positions. Callers must filter
// those before asking for a decision.
var ErrNoLegalMoves = errors.New("position has no legal moves")

// Completer generates a reply to a conversation. *llm.Client implements it.
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message) (string, error)
}

var _ Completer = (*llm.Client)(nil)

// Decision is the outcome of one session.
type Decision struct {
	ID         string        `json:"id"`
	Move       string        `json:"move"`
	Commentary string        `json:"commentary"`
	Attempts   int           `json:"attempts"`
	Fallback   bool          `json:"fallback"`
	Rejections []Rejection   `json:"-"`
	Duration   time.Duration `json:"-"`
}

// AttemptEvent describes one strategist attempt.
type AttemptEvent struct {
	SessionID string
	Attempt   int
	Candidate string
	// Rejection is nil when the candidate was accepted.
	Rejection *Rejection
	Duration  time.Duration
}

// Hooks observe the decision loop. Nil funcs are skipped.
type Hooks struct {
	OnAttempt  func(AttemptEvent)
	OnDecision func(Decision)
}

// Agent runs decisions. It holds no per-decision state and is safe for
// concurrent use.
type Agent struct {
	cfg         config.AgentConfig
	strategist  Completer
	commentator Completer
	picker      *picker
	hooks       Hooks
	logger      *slog.Logger
}

// Option customizes an Agent.
type Option func(*Agent)

// WithRand sets the fallback generator; tests pass a seeded one.
func WithRand(rng *rand.Rand) Option {
	return func(a *Agent) { a.picker = newPicker(rng) }
}

// WithHooks installs lifecycle hooks.
func WithHooks(h Hooks) Option {
	return func(a *Agent) { a.hooks = h }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

// New creates an agent using the strategist for proposals and the
// commentator for remarks.
func New(cfg config.AgentConfig, strategist, commentator Completer, opts ...Option) *Agent {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.HintMoves <= 0 {
		cfg.HintMoves = 10
	}
	if cfg.FallbackCommentary == "" {
		cfg.FallbackCommentary = "I am confused. Random move go!"
	}
	if cfg.CommentaryFallback == "" {
		cfg.CommentaryFallback = "..."
	}

	a := &Agent{
		cfg:         cfg,
		strategist:  strategist,
		commentator: commentator,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.picker == nil {
		a.picker = newPicker(nil)
	}
	return a
}

// Decide picks a legal move for pos. It makes at most MaxRetries+1
// strategist calls and one commentator call, and always yields a legal move
// with non-empty commentary unless ctx is cancelled first.
func (a *Agent) Decide(ctx context.Context, pos board.Position) (Decision, error) {
	legal := pos.LegalMoves()
	if len(legal) == 0 {
		return Decision{}, ErrNoLegalMoves
	}

	start := time.Now()
	s := newSession(pos, legal)
	a.logger.Info("Agent is thinking", "session_id", s.ID, "fen", pos.FEN(), "legal_moves", len(legal))

	for s.FinalMove == "" {
		if err := ctx.Err(); err != nil {
			a.logger.Info("Decision abandoned", "session_id", s.ID, "attempts", s.AttemptCount, "reason", err)
			return Decision{}, fmt.Errorf("decision abandoned: %w", err)
		}
		if s.AttemptCount > a.cfg.MaxRetries {
			a.fallback(s)
			break
		}
		a.step(ctx, s)
	}

	if !s.Fallback {
		a.comment(ctx, s)
	}

	d := Decision{
		ID:         s.ID,
		Move:       s.FinalMove,
		Commentary: s.Commentary,
		Attempts:   s.AttemptCount,
		Fallback:   s.Fallback,
		Rejections: s.Rejections,
		Duration:   time.Since(start),
	}
	a.logger.Info("Agent moved",
		"session_id", d.ID,
		"move", d.Move,
		"attempts", d.Attempts,
		"fallback", d.Fallback,
		"commentary", d.Commentary,
		"duration", d.Duration)
	if a.hooks.OnDecision != nil {
		a.hooks.OnDecision(d)
	}
	return d, nil
}

// step runs one propose/validate round.
func (a *Agent) step(ctx context.Context, s *Session) {
	started := time.Now()
	candidate, rejection := a.propose(ctx, s)
	if rejection == nil {
		rejection = a.validate(s, candidate)
	}
	if rejection != nil {
		s.reject(*rejection)
	}

	if a.hooks.OnAttempt != nil {
		a.hooks.OnAttempt(AttemptEvent{
			SessionID: s.ID,
			Attempt:   s.AttemptCount,
			Candidate: candidate,
			Rejection: rejection,
			Duration:  time.Since(started),
		})
	}
}
