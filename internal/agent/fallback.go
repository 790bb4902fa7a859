package agent

import (
	"math/rand/v2"
	"sync"
)

// picker selects uniformly among moves. The generator is shared by
// concurrent sessions, so access is serialized.
type picker struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newPicker(rng *rand.Rand) *picker {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &picker{rng: rng}
}

func (p *picker) pick(moves []string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return moves[p.rng.IntN(len(moves))]
}

// fallback fixes a random legal move once the retry budget is spent.
func (a *Agent) fallback(s *Session) {
	s.Phase = PhaseExhausted
	move := a.picker.pick(s.LegalMoves)
	a.logger.Error("Max retries exceeded, falling back to random move",
		"session_id", s.ID,
		"attempts", s.AttemptCount,
		"move", move)
	s.finalize(move, PhaseExhausted)
	s.Fallback = true
	s.Commentary = a.cfg.FallbackCommentary
}
