package agent

import "strings"

// normalizeMove case-folds and trims a candidate.
func normalizeMove(candidate string) string {
	return strings.ToLower(strings.TrimSpace(candidate))
}

// validate checks candidate against the session's legal moves and either
// fixes the final move or returns the rejection.
func (a *Agent) validate(s *Session, candidate string) *Rejection {
	s.Phase = PhaseValidating

	move := normalizeMove(candidate)
	if move == "" {
		r := noMoveFound()
		return &r
	}

	if !s.isLegal(move) {
		a.logger.Warn("Arbiter rejected move", "session_id", s.ID, "move", move, "attempt", s.AttemptCount)
		r := illegalMove(move, s.LegalMoves, a.cfg.HintMoves)
		return &r
	}

	a.logger.Info("Arbiter approved move", "session_id", s.ID, "move", move, "attempt", s.AttemptCount)
	s.finalize(move, PhaseAccepted)
	return nil
}
