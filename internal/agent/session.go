package agent

import (
	"github.com/ashureev/neurochess/internal/board"
	"github.com/google/uuid"
)

// Phase is a state of the move-selection loop.
type Phase int

const (
	PhaseProposing Phase = iota
	PhaseValidating
	PhaseRejected
	PhaseAccepted
	PhaseExhausted
)

func (p Phase) String() string {
	switch p {
	case PhaseProposing:
		return "proposing"
	case PhaseValidating:
		return "validating"
	case PhaseRejected:
		return "rejected"
	case PhaseAccepted:
		return "accepted"
	case PhaseExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Session is the state of one decision. It is owned by a single Decide call
// and never shared.
type Session struct {
	ID       string
	Position board.Position
	// LegalMoves is computed once and read-only afterwards.
	LegalMoves []string
	legalSet   map[string]struct{}

	Phase         Phase
	AttemptCount  int
	LastRejection *Rejection
	LastReasoning string
	FinalMove     string
	Commentary    string
	Fallback      bool
	// Rejections keeps every rejection in order for logging and metrics.
	Rejections []Rejection
}

func newSession(pos board.Position, legal []string) *Session {
	set := make(map[string]struct{}, len(legal))
	for _, m := range legal {
		set[m] = struct{}{}
	}
	return &Session{
		ID:         uuid.NewString(),
		Position:   pos,
		LegalMoves: legal,
		legalSet:   set,
		Phase:      PhaseProposing,
	}
}

func (s *Session) isLegal(move string) bool {
	_, ok := s.legalSet[move]
	return ok
}

func (s *Session) reject(r Rejection) {
	s.Phase = PhaseRejected
	s.LastRejection = &r
	s.Rejections = append(s.Rejections, r)
}

// finalize fixes the move. It only takes effect once.
func (s *Session) finalize(move string, phase Phase) {
	if s.FinalMove != "" {
		return
	}
	s.FinalMove = move
	s.Phase = phase
	s.LastRejection = nil
}
