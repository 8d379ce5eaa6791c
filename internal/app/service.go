package app

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/saint2706/portfolio/internal/ai"
	"github.com/saint2706/portfolio/internal/domain"
	"github.com/saint2706/portfolio/internal/store"
)

// Errors exposed by the service layer.
var (
	ErrNotFound    = errors.New("game not found")
	ErrNotYourTurn = errors.New("not your turn")
	ErrNotAPlayer  = errors.New("not a player")
)

// Strategy picks the computer's move. *ai.Engine satisfies it.
type Strategy interface {
	SelectMove(b domain.Board, d ai.Difficulty) (int, bool)
}

// Recorder persists finished rounds. *store.Store satisfies it.
type Recorder interface {
	RecordRound(ctx context.Context, r store.Round) error
}

// GameState is the in-memory state tracked per game session.
type GameState struct {
	ID         string
	Game       domain.Game
	Difficulty ai.Difficulty
	Score      domain.Score
	Round      int
	Player     string
	Thinking   bool // computer reply computed but not yet applied
	LastAIMove int
	Created    time.Time
	Updated    time.Time
}

// Outcome is derived from the board.
func (gs GameState) Outcome() domain.Outcome { return gs.Game.Outcome() }

type session struct {
	state   GameState
	pending *time.Timer
	subs    map[*subscriber]struct{}
}

type subscriber struct {
	mu     sync.Mutex
	ch     chan GameState
	closed bool
}

// offer delivers without blocking; false means the subscriber is too slow.
func (s *subscriber) offer(gs GameState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- gs:
		return true
	default:
		return false
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

const subscriberBuffer = 8

// Service manages game sessions against the computer.
type Service struct {
	mu       sync.Mutex
	games    map[string]*session
	strategy Strategy
	delay    time.Duration
	recorder Recorder
}

// Option configures a Service.
type Option func(*Service)

// WithStrategy replaces the default hard-capable engine playing O.
func WithStrategy(st Strategy) Option { return func(s *Service) { s.strategy = st } }

// WithMoveDelay defers applying the computer's reply. The move itself is
// chosen immediately.
func WithMoveDelay(d time.Duration) Option { return func(s *Service) { s.delay = d } }

// WithRecorder stores every finished round.
func WithRecorder(r Recorder) Option { return func(s *Service) { s.recorder = r } }

// NewService creates a service. Without options the computer replies at once.
func NewService(opts ...Option) *Service {
	s := &Service{games: make(map[string]*session)}
	for _, opt := range opts {
		opt(s)
	}
	if s.strategy == nil {
		s.strategy = ai.New(domain.OpponentMark, nil)
	}
	return s
}

// CreateGame creates and registers a new session.
func (s *Service) CreateGame(d ai.Difficulty) (*GameState, error) {
	if d > ai.Hard {
		return nil, ai.ErrUnknownDifficulty
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	sess := &session{
		state: GameState{
			ID:         uuid.NewString(),
			Game:       domain.New(),
			Difficulty: d,
			Round:      1,
			LastAIMove: -1,
			Created:    now,
			Updated:    now,
		},
		subs: make(map[*subscriber]struct{}),
	}
	s.games[sess.state.ID] = sess
	cp := sess.state
	return &cp, nil
}

// Get returns a copy of the game state if present.
func (s *Service) Get(id string) (*GameState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.games[id]
	if !ok {
		return nil, false
	}
	cp := sess.state
	return &cp, true
}

// Join seats the first player as X; anyone else spectates and gets Empty.
func (s *Service) Join(id, playerID string) (domain.Cell, *GameState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.games[id]
	if !ok {
		return domain.Empty, nil, ErrNotFound
	}
	side := domain.Empty
	if sess.state.Player == "" || sess.state.Player == playerID {
		sess.state.Player = playerID
		side = domain.PlayerMark
		sess.state.Updated = time.Now()
	}
	cp := sess.state
	return side, &cp, nil
}

// seatLocked resolves a session the player may act on.
func (s *Service) seatLocked(id, playerID string) (*session, error) {
	sess, ok := s.games[id]
	if !ok {
		return nil, ErrNotFound
	}
	if sess.state.Player == "" || sess.state.Player != playerID {
		return nil, ErrNotAPlayer
	}
	return sess, nil
}

// Play applies the human move at idx and answers with the computer's move,
// immediately or after the configured delay. Rejected moves leave the
// session untouched.
func (s *Service) Play(id, playerID string, idx int) (*GameState, error) {
	s.mu.Lock()
	sess, err := s.seatLocked(id, playerID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if sess.state.Game.Over() {
		s.mu.Unlock()
		return nil, domain.ErrGameOver
	}
	if sess.state.Thinking || sess.state.Game.Turn != domain.PlayerMark {
		s.mu.Unlock()
		return nil, ErrNotYourTurn
	}
	if err := sess.state.Game.Play(idx); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	sess.state.Updated = time.Now()

	var finished *store.Round
	if sess.state.Game.Over() {
		finished = s.finishLocked(sess)
	} else {
		finished = s.replyLocked(sess)
	}
	cp := sess.state
	s.publishLocked(sess)
	s.mu.Unlock()

	s.record(finished)
	return &cp, nil
}

// replyLocked picks the computer's move now and applies it now or later.
func (s *Service) replyLocked(sess *session) *store.Round {
	mv, ok := s.strategy.SelectMove(sess.state.Game.Board, sess.state.Difficulty)
	if !ok {
		return nil
	}
	if s.delay <= 0 {
		return s.applyReplyLocked(sess, mv)
	}
	sess.state.Thinking = true
	id, round := sess.state.ID, sess.state.Round
	sess.pending = time.AfterFunc(s.delay, func() { s.deliver(id, round, mv) })
	return nil
}

// deliver applies a delayed reply unless its round has been replaced.
func (s *Service) deliver(id string, round, mv int) {
	s.mu.Lock()
	sess, ok := s.games[id]
	if !ok || sess.state.Round != round || !sess.state.Thinking {
		s.mu.Unlock()
		log.Printf("[app] discarding stale move %d for game %s round %d", mv, id, round)
		return
	}
	sess.pending = nil
	finished := s.applyReplyLocked(sess, mv)
	s.publishLocked(sess)
	s.mu.Unlock()

	s.record(finished)
}

func (s *Service) applyReplyLocked(sess *session, mv int) *store.Round {
	sess.state.Thinking = false
	if err := sess.state.Game.Play(mv); err != nil {
		log.Printf("[app] computer move %d rejected in game %s: %v", mv, sess.state.ID, err)
		return nil
	}
	sess.state.LastAIMove = mv
	sess.state.Updated = time.Now()
	if sess.state.Game.Over() {
		return s.finishLocked(sess)
	}
	return nil
}

// finishLocked folds the outcome into the score and describes the round.
func (s *Service) finishLocked(sess *session) *store.Round {
	outcome := sess.state.Game.Outcome()
	sess.state.Score = sess.state.Score.Record(outcome)
	return &store.Round{
		GameID:     sess.state.ID,
		Round:      sess.state.Round,
		Difficulty: sess.state.Difficulty.String(),
		Outcome:    outcome.String(),
		Moves:      sess.state.Game.Moves(),
		Board:      sess.state.Game.Board.String(),
		FinishedAt: sess.state.Updated,
	}
}

func (s *Service) record(r *store.Round) {
	if r == nil || s.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.recorder.RecordRound(ctx, *r); err != nil {
		log.Printf("[app] failed to record round: %v", err)
	}
}

// newRoundLocked clears the board and cancels any pending reply.
func (s *Service) newRoundLocked(sess *session) {
	if sess.pending != nil {
		sess.pending.Stop()
		sess.pending = nil
	}
	sess.state.Thinking = false
	sess.state.Round++
	sess.state.Game = domain.New()
	sess.state.LastAIMove = -1
	sess.state.Updated = time.Now()
}

// Reset starts a new round and keeps the score.
func (s *Service) Reset(id, playerID string) (*GameState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.seatLocked(id, playerID)
	if err != nil {
		return nil, err
	}
	s.newRoundLocked(sess)
	cp := sess.state
	s.publishLocked(sess)
	return &cp, nil
}

// SetDifficulty switches difficulty, which starts a new round and clears
// the score. Choosing the current difficulty changes nothing.
func (s *Service) SetDifficulty(id, playerID string, d ai.Difficulty) (*GameState, error) {
	if d > ai.Hard {
		return nil, ai.ErrUnknownDifficulty
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.seatLocked(id, playerID)
	if err != nil {
		return nil, err
	}
	if sess.state.Difficulty != d {
		s.newRoundLocked(sess)
		sess.state.Difficulty = d
		sess.state.Score = domain.Score{}
		s.publishLocked(sess)
	}
	cp := sess.state
	return &cp, nil
}

// Subscribe registers a subscriber for a game. It returns a channel of
// snapshots and an unsubscribe func; the channel closes on unsubscribe,
// on ctx cancellation, or when the subscriber falls behind.
func (s *Service) Subscribe(ctx context.Context, id string) (<-chan GameState, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.games[id]
	if !ok {
		return nil, func() {}, ErrNotFound
	}
	sub := &subscriber{ch: make(chan GameState, subscriberBuffer)}
	sess.subs[sub] = struct{}{}

	var once sync.Once
	done := make(chan struct{})
	unsub := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(sess.subs, sub)
			s.mu.Unlock()
			sub.close()
			close(done)
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			unsub()
		case <-done:
		}
	}()
	return sub.ch, unsub, nil
}

// publishLocked fans the current snapshot out; slow subscribers are dropped.
func (s *Service) publishLocked(sess *session) {
	cp := sess.state
	for sub := range sess.subs {
		if !sub.offer(cp) {
			sub.close()
			delete(sess.subs, sub)
		}
	}
}

// Close cancels every pending computer reply.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.games {
		if sess.pending != nil {
			sess.pending.Stop()
			sess.pending = nil
		}
		sess.state.Thinking = false
	}
}
