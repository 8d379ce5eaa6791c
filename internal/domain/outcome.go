package domain

import "fmt"

// Outcome is the state of a round, always derived from the board.
type Outcome uint8

const (
	InProgress Outcome = iota
	PlayerWin
	OpponentWin
	Draw
)

var outcomeNames = [...]string{
	InProgress:  "in_progress",
	PlayerWin:   "player_win",
	OpponentWin: "opponent_win",
	Draw:        "draw",
}

func (o Outcome) String() string {
	if int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return fmt.Sprintf("Outcome(%d)", uint8(o))
}

// Terminal reports whether the round has ended.
func (o Outcome) Terminal() bool { return o != InProgress }

// EvaluateOutcome adjudicates a board.
func EvaluateOutcome(b Board) Outcome {
	if ln, ok := WinningLine(b); ok {
		if b[ln[0]] == PlayerMark {
			return PlayerWin
		}
		return OpponentWin
	}
	if b.Full() {
		return Draw
	}
	return InProgress
}

// WinningLine returns the first line holding three equal marks.
func WinningLine(b Board) ([3]int, bool) {
	for _, ln := range Lines {
		c := b[ln[0]]
		if c.IsMark() && b[ln[1]] == c && b[ln[2]] == c {
			return ln, true
		}
	}
	return [3]int{}, false
}
