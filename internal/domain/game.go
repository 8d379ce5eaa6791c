package domain

import (
	"errors"
	"fmt"
)

// Errors returned by domain operations. All of them match ErrInvalidMove.
var (
	ErrInvalidMove = errors.New("invalid move")
	ErrOutOfBounds = fmt.Errorf("%w: out of bounds", ErrInvalidMove)
	ErrOccupied    = fmt.Errorf("%w: cell occupied", ErrInvalidMove)
	ErrGameOver    = fmt.Errorf("%w: game over", ErrInvalidMove)
	ErrInvalidMark = fmt.Errorf("%w: invalid mark", ErrInvalidMove)
)

// ApplyMove returns b with mark placed at idx. On error b is returned as is.
func ApplyMove(b Board, idx int, mark Cell) (Board, error) {
	if EvaluateOutcome(b).Terminal() {
		return b, ErrGameOver
	}
	if idx < 0 || idx >= len(b) {
		return b, ErrOutOfBounds
	}
	if b[idx] != Empty {
		return b, ErrOccupied
	}
	if !mark.IsMark() {
		return b, ErrInvalidMark
	}
	b[idx] = mark
	return b, nil
}

// Game holds one round of a Tic-Tac-Toe match.
type Game struct {
	Board Board
	Turn  Cell
}

// New returns a new round with X to move.
func New() Game {
	return Game{Turn: PlayerMark}
}

// Play places the current turn's mark at idx and passes the turn.
func (g *Game) Play(idx int) error {
	next, err := ApplyMove(g.Board, idx, g.Turn)
	if err != nil {
		return err
	}
	g.Board = next
	if !EvaluateOutcome(g.Board).Terminal() {
		g.Turn = g.Turn.Opponent()
	}
	return nil
}

// PlayAt plays row r, column c (0..2).
func (g *Game) PlayAt(r, c int) error {
	idx := Index(r, c)
	if idx < 0 {
		return ErrOutOfBounds
	}
	return g.Play(idx)
}

func (g Game) Outcome() Outcome { return EvaluateOutcome(g.Board) }

func (g Game) Over() bool { return g.Outcome().Terminal() }

func (g Game) Moves() int { return g.Board.Moves() }

// Winner returns the winning mark, or Empty for a draw or unfinished round.
func (g Game) Winner() Cell {
	if ln, ok := WinningLine(g.Board); ok {
		return g.Board[ln[0]]
	}
	return Empty
}
