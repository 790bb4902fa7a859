package board

import (
	"fmt"

	"github.com/notnil/chess"
)

// Match is a game in progress with its full move history, so repetition and
// insufficient-material draws are detected. A Match is not safe for
// concurrent use.
type Match struct {
	game *chess.Game
}

// NewMatch starts a game from the standard initial position.
func NewMatch() *Match {
	return &Match{game: chess.NewGame(chess.UseNotation(chess.UCINotation{}))}
}

// Position returns a snapshot of the current position.
func (m *Match) Position() Position {
	return Position{pos: m.game.Position()}
}

// Push plays move (UCI) for the side to move.
func (m *Match) Push(move string) error {
	if m.Over() {
		return ErrGameOver
	}
	mv, err := m.Position().find(move)
	if err != nil {
		return err
	}
	if err := m.game.Move(mv); err != nil {
		return fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}
	return nil
}

// Over reports whether the game has finished.
func (m *Match) Over() bool {
	return m.game.Outcome() != chess.NoOutcome
}

// Outcome returns "*" while the game is running, otherwise "1-0", "0-1" or
// "1/2-1/2".
func (m *Match) Outcome() string {
	return string(m.game.Outcome())
}

// Method describes how the game ended, e.g. "Checkmate".
func (m *Match) Method() string {
	if !m.Over() {
		return ""
	}
	return m.game.Method().String()
}

// Moves returns the moves played so far in UCI notation.
func (m *Match) Moves() []string {
	played := m.game.Moves()
	out := make([]string, 0, len(played))
	for _, mv := range played {
		out = append(out, mv.String())
	}
	return out
}
