// Package ai picks the computer's Tic-Tac-Toe moves.
package ai

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/saint2706/portfolio/internal/domain"
)

// mediumRandomRate is the chance that Medium plays a random cell instead of
// searching.
const mediumRandomRate = 0.3

const winScore = 10

// Rand is the randomness Easy and Medium draw from. *rand.Rand satisfies it.
type Rand interface {
	Intn(n int) int
	Float64() float64
}

// Engine selects moves for one mark. It is safe for concurrent use.
type Engine struct {
	self domain.Cell

	mu  sync.Mutex
	rng Rand
}

// New returns an engine playing self. A nil rng is replaced by a
// time-seeded source.
func New(self domain.Cell, rng Rand) *Engine {
	if !self.IsMark() {
		panic(fmt.Sprintf("ai: engine mark must be X or O, got %v", self))
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{self: self, rng: rng}
}

// Mark returns the mark the engine plays.
func (e *Engine) Mark() domain.Cell { return e.self }

// SelectMove returns the cell to play, or false when the board is full.
// It panics on a malformed board.
func (e *Engine) SelectMove(b domain.Board, d Difficulty) (int, bool) {
	if !b.Valid() {
		panic(fmt.Sprintf("ai: malformed board %s", b))
	}
	switch d {
	case Easy:
		return e.randomMove(b)
	case Medium:
		if e.coin() < mediumRandomRate {
			return e.randomMove(b)
		}
		return e.bestMove(b)
	case Hard:
		return e.bestMove(b)
	default:
		panic(fmt.Sprintf("ai: %v", d))
	}
}

func (e *Engine) randomMove(b domain.Board) (int, bool) {
	empty := b.EmptyCells()
	if len(empty) == 0 {
		return -1, false
	}
	e.mu.Lock()
	i := e.rng.Intn(len(empty))
	e.mu.Unlock()
	return empty[i], true
}

func (e *Engine) coin() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.Float64()
}

// bestMove scans empty cells in ascending order and keeps the first one
// with the strictly greatest minimax score.
func (e *Engine) bestMove(b domain.Board) (int, bool) {
	best, bestScore := -1, math.MinInt
	for _, i := range b.EmptyCells() {
		child := b
		child[i] = e.self
		score := e.minimax(child, 0, false, math.MinInt, math.MaxInt)
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return best, best >= 0
}

// Evaluate scores b with the opponent to move, from the engine's side.
func (e *Engine) Evaluate(b domain.Board) int {
	return e.minimax(b, 0, false, math.MinInt, math.MaxInt)
}

// minimax walks the full game tree below b. Boards are copied per branch,
// so the caller's board is never touched.
func (e *Engine) minimax(b domain.Board, depth int, maximizing bool, alpha, beta int) int {
	if b.HasLine(e.self) {
		return winScore - depth
	}
	if b.HasLine(e.self.Opponent()) {
		return depth - winScore
	}
	if b.Full() {
		return 0
	}

	if maximizing {
		best := math.MinInt
		for i, c := range b {
			if c != domain.Empty {
				continue
			}
			child := b
			child[i] = e.self
			score := e.minimax(child, depth+1, false, alpha, beta)
			best = max(best, score)
			alpha = max(alpha, score)
			if beta <= alpha {
				break
			}
		}
		return best
	}

	best := math.MaxInt
	for i, c := range b {
		if c != domain.Empty {
			continue
		}
		child := b
		child[i] = e.self.Opponent()
		score := e.minimax(child, depth+1, true, alpha, beta)
		best = min(best, score)
		beta = min(beta, score)
		if beta <= alpha {
			break
		}
	}
	return best
}
