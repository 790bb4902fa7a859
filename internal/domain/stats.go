package domain

// PlayerStats are aggregate per-player counters. Individual games and
// positions are never stored.
type PlayerStats struct {
	PlayerID   string `json:"player_id"`
	Games      int64  `json:"games"`
	HumanMoves int64  `json:"human_moves"`
	AgentMoves int64  `json:"agent_moves"`
	Fallbacks  int64  `json:"fallbacks"`
	Attempts   int64  `json:"attempts"`
}

// StatsDelta is an increment applied atomically to PlayerStats.
type StatsDelta struct {
	Games      int64
	HumanMoves int64
	AgentMoves int64
	Fallbacks  int64
	Attempts   int64
}

// IsZero reports whether applying the delta would change nothing.
func (d StatsDelta) IsZero() bool {
	return d == StatsDelta{}
}

// AverageAttempts returns strategist attempts per agent move.
func (s *PlayerStats) AverageAttempts() float64 {
	if s.AgentMoves == 0 {
		return 0
	}
	return float64(s.Attempts) / float64(s.AgentMoves)
}
