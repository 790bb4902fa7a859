package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/ashureev/neurochess/internal/llm"
)

const strategistSystemPrompt = "You are a professional chess engine." +
	"\nTASK: Analyze the board state and choose the best move." +
	"\nFORMAT:" +
	"\n1. First, think step-by-step. Analyze threats, candidate moves and strategy." +
	"\n2. Then output the selected move in UCI notation inside a JSON block: {\"move\": \"e2e4\"}." +
	"\nIMPORTANT: The JSON block must be at the very end."

// strategistMessages builds the prompt for the next proposal.
func (a *Agent) strategistMessages(s *Session) []llm.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Current FEN: %s", s.Position.FEN())
	fmt.Fprintf(&b, "\nSide to move: %s", s.Position.Turn())

	if r := s.LastRejection; r != nil {
		b.WriteString("\n\nCRITICAL ERROR: Your previous move was REJECTED by the Arbiter.")
		switch r.Kind {
		case RejectionIllegal:
			fmt.Fprintf(&b, "\nReason: %s", r.Reason())
			b.WriteString("\nTask: Choose a DIFFERENT, LEGAL move from the candidates.")
		case RejectionMalformed:
			fmt.Fprintf(&b, "\nReason: %s", r.Reason())
			b.WriteString("\nTask: Finish with a JSON block containing your move in UCI notation.")
		}
		fmt.Fprintf(&b, "\nAttempts used: %d/%d.", s.AttemptCount, a.cfg.MaxRetries)
	}

	return []llm.Message{
		llm.System(strategistSystemPrompt),
		llm.User(b.String()),
	}
}

// propose runs one strategist attempt. It always consumes an attempt. It
// returns the raw candidate, or the rejection to feed back when the output
// was unusable.
func (a *Agent) propose(ctx context.Context, s *Session) (string, *Rejection) {
	messages := a.strategistMessages(s)
	s.AttemptCount++
	s.Phase = PhaseProposing

	text, err := a.strategist.Complete(ctx, messages)
	if err != nil {
		a.logger.Error("Strategist generation failed", "session_id", s.ID, "attempt", s.AttemptCount, "error", err)
		r := generationFailure(err)
		return "", &r
	}

	s.LastReasoning = text
	a.logger.Debug("Strategist thoughts", "session_id", s.ID, "attempt", s.AttemptCount, "content", text)

	move, ok := ParseDecision(text)
	if !ok {
		a.logger.Warn("Failed to extract decision from response", "session_id", s.ID, "attempt", s.AttemptCount)
		r := malformedResponse()
		return "", &r
	}

	s.LastRejection = nil
	return move, nil
}
