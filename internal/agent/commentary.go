package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/ashureev/neurochess/internal/llm"
)

const commentatorSystemPrompt = "You are a chess commentator. " +
	"You have access to the player's internal thoughts and the board state. " +
	"Make a short, witty remark about the move."

func (a *Agent) commentatorMessages(s *Session) []llm.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Move played: %s. FEN: %s.", s.FinalMove, s.Position.FEN())

	if s.AttemptCount > 1 {
		fmt.Fprintf(&b, "\nNote: The AI struggled and failed %d times before finding this move. Make fun of that.", s.AttemptCount-1)
	}

	if snippet := truncateRunes(s.LastReasoning, a.cfg.ReasoningSnippetLen); snippet != "" {
		fmt.Fprintf(&b, "\nAI's internal monologue snippet: %s...", snippet)
	}

	return []llm.Message{
		llm.System(commentatorSystemPrompt),
		llm.User(b.String()),
	}
}

// comment attaches a remark to an accepted move. Failures are swallowed.
func (a *Agent) comment(ctx context.Context, s *Session) {
	text, err := a.commentator.Complete(ctx, a.commentatorMessages(s))
	if err != nil || strings.TrimSpace(text) == "" {
		a.logger.Warn("Commentary unavailable", "session_id", s.ID, "error", err)
		s.Commentary = a.cfg.CommentaryFallback
		return
	}
	s.Commentary = text
}

func truncateRunes(s string, n int) string {
	if n <= 0 || s == "" {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
