package domain

// Score is the win/loss/draw tally of a session, seen from the human side.
// It outlives rounds and is reset only when the difficulty changes.
type Score struct {
	Wins   int `json:"wins"`
	Losses int `json:"losses"`
	Draws  int `json:"draws"`
}

// Record returns the tally after a round ended with o.
func (s Score) Record(o Outcome) Score {
	switch o {
	case PlayerWin:
		s.Wins++
	case OpponentWin:
		s.Losses++
	case Draw:
		s.Draws++
	}
	return s
}

func (s Score) Total() int { return s.Wins + s.Losses + s.Draws }
