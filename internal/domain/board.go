package domain

import (
	"fmt"
	"strings"
)

// Cell represents a board cell state.
type Cell uint8

const (
	Empty Cell = iota
	X
	O
)

// The human always plays X and moves first; the computer plays O.
const (
	PlayerMark   = X
	OpponentMark = O
)

func (c Cell) String() string {
	switch c {
	case X:
		return "X"
	case O:
		return "O"
	case Empty:
		return "_"
	default:
		return fmt.Sprintf("Cell(%d)", uint8(c))
	}
}

// Opponent returns the other mark. Empty has no opponent.
func (c Cell) Opponent() Cell {
	switch c {
	case X:
		return O
	case O:
		return X
	default:
		return Empty
	}
}

// IsMark reports whether c is X or O.
func (c Cell) IsMark() bool { return c == X || c == O }

// Board is a fixed 3x3 board stored row-major.
type Board [9]Cell

// Lines lists every winning triple: rows, columns, diagonals.
var Lines = [8][3]int{
	// rows
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	// cols
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	// diags
	{0, 4, 8}, {2, 4, 6},
}

// Index maps a row and column (0..2) to a cell index, or -1 when out of range.
func Index(r, c int) int {
	if r < 0 || r > 2 || c < 0 || c > 2 {
		return -1
	}
	return r*3 + c
}

// EmptyCells returns the indices of empty cells in ascending order.
func (b Board) EmptyCells() []int {
	out := make([]int, 0, len(b))
	for i, c := range b {
		if c == Empty {
			out = append(out, i)
		}
	}
	return out
}

// Full reports whether no empty cell remains.
func (b Board) Full() bool {
	for _, c := range b {
		if c == Empty {
			return false
		}
	}
	return true
}

// Moves counts the cells that have been played.
func (b Board) Moves() int {
	n := 0
	for _, c := range b {
		if c != Empty {
			n++
		}
	}
	return n
}

// Valid reports whether every cell holds Empty, X or O.
func (b Board) Valid() bool {
	for _, c := range b {
		if c != Empty && !c.IsMark() {
			return false
		}
	}
	return true
}

// HasLine reports whether side owns all three cells of any line.
func (b Board) HasLine(side Cell) bool {
	return hasWin(b, side)
}

func hasWin(b Board, side Cell) bool {
	for _, ln := range Lines {
		if b[ln[0]] == side && b[ln[1]] == side && b[ln[2]] == side {
			return true
		}
	}
	return false
}

// String renders the board as nine characters, e.g. "XO_X_____".
func (b Board) String() string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		sb.WriteString(c.String())
	}
	return sb.String()
}

// ParseBoard reads the notation produced by Board.String. Whitespace and
// '|' separators are ignored; '.', '-' and '_' mark empty cells.
func ParseBoard(s string) (Board, error) {
	var b Board
	i := 0
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '|':
			continue
		}
		if i >= len(b) {
			return Board{}, fmt.Errorf("parse board %q: too many cells", s)
		}
		switch r {
		case 'X', 'x':
			b[i] = X
		case 'O', 'o':
			b[i] = O
		case '_', '.', '-':
			b[i] = Empty
		default:
			return Board{}, fmt.Errorf("parse board %q: unexpected %q", s, r)
		}
		i++
	}
	if i != len(b) {
		return Board{}, fmt.Errorf("parse board %q: want 9 cells, got %d", s, i)
	}
	return b, nil
}
