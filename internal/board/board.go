// Package board is the chess rules oracle: legal move generation, move
// application and game outcome, backed by github.com/notnil/chess.
//
// Moves are exchanged as UCI strings ("e2e4", "e7e8q") everywhere.
package board

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/notnil/chess"
)

var (
	// ErrIllegalMove is returned when a move is not legal in the position.
	ErrIllegalMove = errors.New("illegal move")
	// ErrGameOver is returned when a move is pushed onto a finished game.
	ErrGameOver = errors.New("game is over")
	// ErrInvalidFEN is returned when a FEN string cannot be decoded.
	ErrInvalidFEN = errors.New("invalid FEN")
)

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Position is an immutable board snapshot.
type Position struct {
	pos *chess.Position
}

// StartPosition returns the standard initial position.
func StartPosition() Position {
	return Position{pos: chess.NewGame().Position()}
}

// ParseFEN decodes a position from Forsyth-Edwards notation.
func ParseFEN(fen string) (Position, error) {
	fen = strings.TrimSpace(fen)
	if fen == "" {
		return Position{}, fmt.Errorf("%w: empty", ErrInvalidFEN)
	}
	opt, err := chess.FEN(fen)
	if err != nil {
		return Position{}, fmt.Errorf("%w: %v", ErrInvalidFEN, err)
	}
	return Position{pos: chess.NewGame(opt).Position()}, nil
}

// FEN returns the position in Forsyth-Edwards notation.
func (p Position) FEN() string {
	if p.pos == nil {
		return ""
	}
	return p.pos.String()
}

// Turn returns "white" or "black".
func (p Position) Turn() string {
	if p.pos != nil && p.pos.Turn() == chess.Black {
		return "black"
	}
	return "white"
}

// LegalMoves returns every legal move in UCI notation, in the engine's
// generation order.
func (p Position) LegalMoves() []string {
	if p.pos == nil {
		return nil
	}
	valid := p.pos.ValidMoves()
	moves := make([]string, 0, len(valid))
	for _, m := range valid {
		moves = append(moves, m.String())
	}
	return moves
}

// IsLegal reports whether move (UCI) is legal in the position.
func (p Position) IsLegal(move string) bool {
	_, err := p.find(move)
	return err == nil
}

// Apply plays move and returns the successor position.
func (p Position) Apply(move string) (Position, error) {
	m, err := p.find(move)
	if err != nil {
		return Position{}, err
	}
	return Position{pos: p.pos.Update(m)}, nil
}

// Status names the rule that ends the game in this position, such as
// "Checkmate" or "InsufficientMaterial", or returns "" while it is playable.
// Repetition needs the game history, so only Match detects it.
func (p Position) Status() string {
	if p.pos == nil {
		return ""
	}
	if m := p.pos.Status(); m != chess.NoMethod {
		return m.String()
	}
	if insufficientMaterial(p.pos.Board()) {
		return chess.InsufficientMaterial.String()
	}
	if fields := strings.Fields(p.FEN()); len(fields) > 4 {
		if clock, err := strconv.Atoi(fields[4]); err == nil && clock >= 150 {
			return chess.SeventyFiveMoveRule.String()
		}
	}
	return ""
}

// insufficientMaterial covers bare kings, a single minor piece, and bishops
// that all stand on one square color.
func insufficientMaterial(b *chess.Board) bool {
	var minors, knights int
	bishopColors := map[int]bool{}
	for sq, piece := range b.SquareMap() {
		switch piece.Type() {
		case chess.King:
		case chess.Knight:
			minors++
			knights++
		case chess.Bishop:
			minors++
			bishopColors[(int(sq.File())+int(sq.Rank()))%2] = true
		default:
			return false
		}
	}
	if minors <= 1 {
		return true
	}
	return knights == 0 && len(bishopColors) == 1
}

func (p Position) find(move string) (*chess.Move, error) {
	if p.pos == nil {
		return nil, fmt.Errorf("%w: empty position", ErrIllegalMove)
	}
	move = strings.ToLower(strings.TrimSpace(move))
	for _, m := range p.pos.ValidMoves() {
		if m.String() == move {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrIllegalMove, move)
}
