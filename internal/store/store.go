// Package store keeps the history of finished rounds.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// ErrUnsupportedDriver is returned by Open for drivers other than sqlite
// and postgres.
var ErrUnsupportedDriver = errors.New("unsupported database driver")

// Round is one finished round.
type Round struct {
	GameID     string    `json:"game_id"`
	Round      int       `json:"round"`
	Difficulty string    `json:"difficulty"`
	Outcome    string    `json:"outcome"`
	Moves      int       `json:"moves"`
	Board      string    `json:"board"`
	FinishedAt time.Time `json:"finished_at"`
}

// DifficultyStats aggregates finished rounds for one difficulty, counted
// from the human side.
type DifficultyStats struct {
	Difficulty string `json:"difficulty"`
	Wins       int64  `json:"wins"`
	Losses     int64  `json:"losses"`
	Draws      int64  `json:"draws"`
}

// Store is a database/sql backed round log.
type Store struct {
	db     *sql.DB
	driver string
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS rounds (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	game_id TEXT NOT NULL,
	round INTEGER NOT NULL,
	difficulty TEXT NOT NULL,
	outcome TEXT NOT NULL,
	moves INTEGER NOT NULL,
	board TEXT NOT NULL,
	finished_at INTEGER NOT NULL
)`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS rounds (
	id SERIAL PRIMARY KEY,
	game_id VARCHAR(64) NOT NULL,
	round INT NOT NULL,
	difficulty VARCHAR(16) NOT NULL,
	outcome VARCHAR(16) NOT NULL,
	moves INT NOT NULL,
	board VARCHAR(9) NOT NULL,
	finished_at BIGINT NOT NULL
)`

// Open connects to driver ("sqlite" or "postgres") and creates the schema.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	var schema string
	switch driver {
	case "sqlite":
		schema = sqliteSchema
	case "postgres":
		schema = postgresSchema
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	if driver == "sqlite" {
		// every pooled connection to :memory: would see its own database
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating rounds table: %w", err)
	}
	return &Store{db: db, driver: driver}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// rebind turns ? placeholders into $n for postgres.
func (s *Store) rebind(q string) string {
	if s.driver != "postgres" {
		return q
	}
	var sb strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// RecordRound appends a finished round.
func (s *Store) RecordRound(ctx context.Context, r Round) error {
	if r.FinishedAt.IsZero() {
		r.FinishedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO rounds (game_id, round, difficulty, outcome, moves, board, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`), r.GameID, r.Round, r.Difficulty, r.Outcome, r.Moves, r.Board, r.FinishedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("record round %s/%d: %w", r.GameID, r.Round, err)
	}
	return nil
}

// Stats returns per-difficulty totals ordered by difficulty name.
func (s *Store) Stats(ctx context.Context) ([]DifficultyStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT difficulty,
			COALESCE(SUM(CASE WHEN outcome = 'player_win' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN outcome = 'opponent_win' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN outcome = 'draw' THEN 1 ELSE 0 END), 0)
		FROM rounds
		GROUP BY difficulty
		ORDER BY difficulty
	`)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	var out []DifficultyStats
	for rows.Next() {
		var st DifficultyStats
		if err := rows.Scan(&st.Difficulty, &st.Wins, &st.Losses, &st.Draws); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// Recent returns up to limit rounds, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Round, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT game_id, round, difficulty, outcome, moves, board, finished_at
		FROM rounds
		ORDER BY finished_at DESC, id DESC
		LIMIT ?
	`), limit)
	if err != nil {
		return nil, fmt.Errorf("query recent rounds: %w", err)
	}
	defer rows.Close()

	var out []Round
	for rows.Next() {
		var r Round
		var ms int64
		if err := rows.Scan(&r.GameID, &r.Round, &r.Difficulty, &r.Outcome, &r.Moves, &r.Board, &ms); err != nil {
			return nil, fmt.Errorf("scan round: %w", err)
		}
		r.FinishedAt = time.UnixMilli(ms)
		out = append(out, r)
	}
	return out, rows.Err()
}
