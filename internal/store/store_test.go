package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), "sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndStats(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.UnixMilli(1_700_000_000_000)
	rounds := []Round{
		{GameID: "g1", Round: 1, Difficulty: "hard", Outcome: "draw", Moves: 9, Board: "XOXXOOOXX", FinishedAt: base},
		{GameID: "g1", Round: 2, Difficulty: "hard", Outcome: "opponent_win", Moves: 6, Board: "OOOXX_X__", FinishedAt: base.Add(time.Second)},
		{GameID: "g2", Round: 1, Difficulty: "easy", Outcome: "player_win", Moves: 5, Board: "XXXOO____", FinishedAt: base.Add(2 * time.Second)},
		{GameID: "g2", Round: 2, Difficulty: "easy", Outcome: "player_win", Moves: 7, Board: "XXXOOXO__", FinishedAt: base.Add(3 * time.Second)},
	}
	for _, r := range rounds {
		if err := s.RecordRound(ctx, r); err != nil {
			t.Fatalf("RecordRound: %v", err)
		}
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	want := []DifficultyStats{
		{Difficulty: "easy", Wins: 2},
		{Difficulty: "hard", Losses: 1, Draws: 1},
	}
	if len(stats) != len(want) {
		t.Fatalf("expected %d rows, got %+v", len(want), stats)
	}
	for i := range want {
		if stats[i] != want[i] {
			t.Fatalf("row %d: expected %+v, got %+v", i, want[i], stats[i])
		}
	}
}

func TestRecentNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.UnixMilli(1_700_000_000_000)
	for i := 1; i <= 3; i++ {
		r := Round{GameID: "g", Round: i, Difficulty: "medium", Outcome: "draw", Moves: 9, Board: "XOXXOOOXX", FinishedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := s.RecordRound(ctx, r); err != nil {
			t.Fatalf("RecordRound: %v", err)
		}
	}
	got, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 || got[0].Round != 3 || got[1].Round != 2 {
		t.Fatalf("expected rounds 3,2; got %+v", got)
	}
	if !got[0].FinishedAt.Equal(base.Add(3 * time.Minute)) {
		t.Fatalf("unexpected timestamp %v", got[0].FinishedAt)
	}
}

func TestStatsEmpty(t *testing.T) {
	s := openTestStore(t)
	stats, err := s.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if len(stats) != 0 {
		t.Fatalf("expected no rows, got %+v", stats)
	}
}

func TestOpenUnsupportedDriver(t *testing.T) {
	if _, err := Open(context.Background(), "mysql", "x"); !errors.Is(err, ErrUnsupportedDriver) {
		t.Fatalf("expected ErrUnsupportedDriver, got %v", err)
	}
}

func TestRebindPostgres(t *testing.T) {
	s := &Store{driver: "postgres"}
	got := s.rebind("INSERT INTO t (a, b) VALUES (?, ?)")
	if got != "INSERT INTO t (a, b) VALUES ($1, $2)" {
		t.Fatalf("unexpected rebind: %q", got)
	}
	s.driver = "sqlite"
	if got := s.rebind("a = ?"); got != "a = ?" {
		t.Fatalf("sqlite should keep placeholders, got %q", got)
	}
}
