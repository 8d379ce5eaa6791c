package ai

import (
	"errors"
	"fmt"
	"strings"
)

// Difficulty selects the move policy. It never changes the rules.
type Difficulty uint8

const (
	Easy Difficulty = iota
	Medium
	Hard
)

// ErrUnknownDifficulty is returned when parsing an unrecognised name.
var ErrUnknownDifficulty = errors.New("unknown difficulty")

// Difficulties lists every level in menu order.
var Difficulties = []Difficulty{Easy, Medium, Hard}

func (d Difficulty) String() string {
	switch d {
	case Easy:
		return "easy"
	case Medium:
		return "medium"
	case Hard:
		return "hard"
	default:
		return fmt.Sprintf("Difficulty(%d)", uint8(d))
	}
}

// ParseDifficulty accepts the names produced by String, case-insensitively.
func ParseDifficulty(s string) (Difficulty, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "easy":
		return Easy, nil
	case "medium":
		return Medium, nil
	case "hard":
		return Hard, nil
	}
	return Easy, fmt.Errorf("%w: %q", ErrUnknownDifficulty, s)
}

func (d Difficulty) MarshalText() ([]byte, error) {
	if d > Hard {
		return nil, fmt.Errorf("%w: %d", ErrUnknownDifficulty, uint8(d))
	}
	return []byte(d.String()), nil
}

func (d *Difficulty) UnmarshalText(b []byte) error {
	v, err := ParseDifficulty(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}
