package web

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/saint2706/portfolio/internal/ai"
	"github.com/saint2706/portfolio/internal/app"
	"github.com/saint2706/portfolio/internal/domain"
	"github.com/saint2706/portfolio/internal/feeds"
	"github.com/saint2706/portfolio/internal/store"
)

func newTestServer(t *testing.T, opts ...Option) (*app.Service, http.Handler) {
	t.Helper()
	s := app.NewService()
	t.Cleanup(s.Close)
	h := NewServer(s, opts...)
	return s, h
}

func postForm(h http.Handler, path, player string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if player != "" {
		req.AddCookie(&http.Cookie{Name: "player_id", Value: player})
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func seatedGame(t *testing.T, svc *app.Service, d ai.Difficulty) string {
	t.Helper()
	gs, err := svc.CreateGame(d)
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	if _, _, err := svc.Join(gs.ID, "p1"); err != nil {
		t.Fatalf("Join: %v", err)
	}
	return gs.ID
}

func TestIndexPage(t *testing.T) {
	_, h := newTestServer(t)
	req := httptest.NewRequest("GET", "/", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "<form") || !strings.Contains(body, "action=\"/game\"") {
		t.Fatalf("index should contain create form; got body: %q", body)
	}
	if !strings.Contains(body, `<option value="medium" selected>`) {
		t.Fatalf("index should preselect medium; got body: %q", body)
	}
}

func TestCreateRedirectsToGame(t *testing.T) {
	svc, h := newTestServer(t)
	rr := postForm(h, "/game", "", url.Values{"difficulty": {"hard"}})
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected redirect, got %d", rr.Code)
	}
	loc := rr.Result().Header.Get("Location")
	if !strings.HasPrefix(loc, "/game/") {
		t.Fatalf("expected redirect to /game/{id}, got %q", loc)
	}
	gs, ok := svc.Get(strings.TrimPrefix(loc, "/game/"))
	if !ok || gs.Difficulty != ai.Hard {
		t.Fatalf("expected hard game, got %+v", gs)
	}
}

func TestCreateRejectsUnknownDifficulty(t *testing.T) {
	_, h := newTestServer(t)
	rr := postForm(h, "/game", "", url.Values{"difficulty": {"impossible"}})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestGamePageSetsCookieAndAutoClaims(t *testing.T) {
	svc, h := newTestServer(t)
	gs, _ := svc.CreateGame(ai.Medium)

	req := httptest.NewRequest("GET", "/game/"+url.PathEscape(gs.ID), nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var playerID string
	for _, c := range rr.Result().Cookies() {
		if c.Name == "player_id" {
			playerID = c.Value
			break
		}
	}
	if playerID == "" {
		t.Fatalf("expected player_id cookie to be set")
	}
	latest, ok := svc.Get(gs.ID)
	if !ok || latest.Player != playerID {
		t.Fatalf("expected auto-claim by %q, have %q", playerID, latest.Player)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "hx-ext=\"sse\"") || !strings.Contains(body, "/game/"+gs.ID+"/events") {
		t.Fatalf("expected SSE wiring in page; got body: %q", body)
	}
	if !strings.Contains(body, "id=\"board\"") {
		t.Fatalf("expected embedded board; got body: %q", body)
	}
}

func TestGamePageUnknownID(t *testing.T) {
	_, h := newTestServer(t)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/game/nope", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestJoinEndpointReturnsBoardFragment(t *testing.T) {
	svc, h := newTestServer(t)
	id := seatedGame(t, svc, ai.Medium)

	rr := postForm(h, "/game/"+id+"/join", "p2", url.Values{})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "id=\"board\"") {
		t.Fatalf("expected board fragment, got %q", rr.Body.String())
	}
	latest, _ := svc.Get(id)
	if latest.Player != "p1" {
		t.Fatalf("seat should stay with p1, got %q", latest.Player)
	}
}

func TestPlayEndpointUpdatesStateAndReturnsFragment(t *testing.T) {
	svc, h := newTestServer(t)
	id := seatedGame(t, svc, ai.Hard)

	rr := postForm(h, "/game/"+id+"/play", "p1", url.Values{"cell": {"4"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "id=\"board\"") {
		t.Fatalf("expected board fragment, got %q", rr.Body.String())
	}
	latest, _ := svc.Get(id)
	if latest.Game.Board[4] != domain.X {
		t.Fatalf("expected X at 4, board=%s", latest.Game.Board)
	}
	if latest.Game.Moves() != 2 || latest.LastAIMove < 0 {
		t.Fatalf("expected computer reply, moves=%d last=%d", latest.Game.Moves(), latest.LastAIMove)
	}
}

func TestPlayAcceptsRowAndColumn(t *testing.T) {
	svc, h := newTestServer(t)
	id := seatedGame(t, svc, ai.Hard)

	postForm(h, "/game/"+id+"/play", "p1", url.Values{"r": {"2"}, "c": {"1"}})
	latest, _ := svc.Get(id)
	if latest.Game.Board[7] != domain.X {
		t.Fatalf("expected X at 7, board=%s", latest.Game.Board)
	}
}

func TestPlayErrorsRenderInFragment(t *testing.T) {
	svc, h := newTestServer(t)
	id := seatedGame(t, svc, ai.Hard)
	postForm(h, "/game/"+id+"/play", "p1", url.Values{"cell": {"4"}})

	cases := []struct {
		name   string
		player string
		form   url.Values
		want   string
	}{
		{"occupied", "p1", url.Values{"cell": {"4"}}, "Cell is occupied"},
		{"out of bounds", "p1", url.Values{"cell": {"9"}}, "Out of bounds"},
		{"garbage", "p1", url.Values{"cell": {"x"}}, "Out of bounds"},
		{"spectator", "p2", url.Values{"cell": {"8"}}, "You are a spectator"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := postForm(h, "/game/"+id+"/play", tc.player, tc.form)
			if rr.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rr.Code)
			}
			if !strings.Contains(rr.Body.String(), tc.want) {
				t.Fatalf("expected %q in body, got %q", tc.want, rr.Body.String())
			}
		})
	}
	latest, _ := svc.Get(id)
	if latest.Game.Moves() != 2 {
		t.Fatalf("rejected moves must not change the board, moves=%d", latest.Game.Moves())
	}
}

func TestPlayUnknownGame(t *testing.T) {
	_, h := newTestServer(t)
	rr := postForm(h, "/game/missing/play", "p1", url.Values{"cell": {"0"}})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestResetAndDifficultyEndpoints(t *testing.T) {
	svc, h := newTestServer(t)
	id := seatedGame(t, svc, ai.Hard)
	postForm(h, "/game/"+id+"/play", "p1", url.Values{"cell": {"4"}})

	rr := postForm(h, "/game/"+id+"/reset", "p1", url.Values{})
	if !strings.Contains(rr.Body.String(), `data-round="2"`) {
		t.Fatalf("expected round 2 fragment, got %q", rr.Body.String())
	}
	latest, _ := svc.Get(id)
	if latest.Game.Moves() != 0 || latest.Difficulty != ai.Hard {
		t.Fatalf("expected empty board on hard, got %s %v", latest.Game.Board, latest.Difficulty)
	}

	rr = postForm(h, "/game/"+id+"/difficulty", "p1", url.Values{"difficulty": {"easy"}})
	if !strings.Contains(rr.Body.String(), `<option value="easy" selected>`) {
		t.Fatalf("expected easy selected, got %q", rr.Body.String())
	}
	latest, _ = svc.Get(id)
	if latest.Difficulty != ai.Easy || latest.Round != 3 {
		t.Fatalf("expected easy round 3, got %v round %d", latest.Difficulty, latest.Round)
	}

	rr = postForm(h, "/game/"+id+"/difficulty", "p1", url.Values{"difficulty": {"nightmare"}})
	if !strings.Contains(rr.Body.String(), "Unknown difficulty") {
		t.Fatalf("expected difficulty error, got %q", rr.Body.String())
	}
}

func TestEventsEndpointSSEHeaders(t *testing.T) {
	_, h := newTestServer(t)
	reqCreate := httptest.NewRequest("POST", "/game", nil)
	rrCreate := httptest.NewRecorder()
	h.ServeHTTP(rrCreate, reqCreate)
	loc := rrCreate.Result().Header.Get("Location")
	if loc == "" {
		t.Fatalf("missing redirect location")
	}
	req := httptest.NewRequest("GET", loc+"/events", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	ct := rr.Result().Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "text/event-stream") {
		io.Copy(io.Discard, rr.Result().Body)
		t.Fatalf("expected text/event-stream, got %q", ct)
	}
}

// nextEvent reads one SSE event and joins its data lines.
func nextEvent(t *testing.T, br *bufio.Reader) (string, string) {
	t.Helper()
	var event string
	var data []string
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			t.Fatalf("read event: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "" && event != "":
			return event, strings.Join(data, "\n")
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = append(data, strings.TrimPrefix(line, "data: "))
		}
	}
}

func TestEventsStreamBoardUpdates(t *testing.T) {
	svc, h := newTestServer(t)
	srv := httptest.NewServer(h)
	defer srv.Close()
	id := seatedGame(t, svc, ai.Hard)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, "GET", srv.URL+"/game/"+id+"/events", nil)
	req.Header.Set("Accept", "text/event-stream")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	defer resp.Body.Close()
	br := bufio.NewReader(resp.Body)

	event, data := nextEvent(t, br)
	if event != "board" || !strings.Contains(data, `id="board"`) || !strings.Contains(data, "Your move.") {
		t.Fatalf("unexpected initial event %q: %q", event, data)
	}

	if _, err := svc.Play(id, "p1", 0); err != nil {
		t.Fatalf("Play: %v", err)
	}
	_, data = nextEvent(t, br)
	if !strings.Contains(data, ">X</button>") {
		t.Fatalf("expected X in streamed board, got %q", data)
	}
	if !strings.Contains(data, " last") {
		t.Fatalf("expected computer move highlighted, got %q", data)
	}
}

func TestAPIGame(t *testing.T) {
	svc, h := newTestServer(t)
	id := seatedGame(t, svc, ai.Hard)
	if _, err := svc.Play(id, "p1", 4); err != nil {
		t.Fatalf("Play: %v", err)
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/api/games/"+id, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var v gameView
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.ID != id || v.Board[4] != "X" || v.Outcome != "in_progress" || v.Difficulty != ai.Hard {
		t.Fatalf("unexpected view %+v", v)
	}
	if v.LastAIMove < 0 || v.Board[v.LastAIMove] != "O" || v.Turn != "X" {
		t.Fatalf("expected computer reply in view %+v", v)
	}
	if !strings.Contains(rr.Body.String(), `"difficulty":"hard"`) {
		t.Fatalf("difficulty should encode by name: %s", rr.Body.String())
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/api/games/missing", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

type fakeHistory struct {
	stats  []store.DifficultyStats
	rounds []store.Round
	limit  int
	err    error
}

func (f *fakeHistory) Stats(context.Context) ([]store.DifficultyStats, error) { return f.stats, f.err }

func (f *fakeHistory) Recent(_ context.Context, limit int) ([]store.Round, error) {
	f.limit = limit
	return f.rounds, f.err
}

func TestAPIStatsAndRounds(t *testing.T) {
	_, bare := newTestServer(t)
	rr := httptest.NewRecorder()
	bare.ServeHTTP(rr, httptest.NewRequest("GET", "/api/stats", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without history, got %d", rr.Code)
	}

	hist := &fakeHistory{
		stats:  []store.DifficultyStats{{Difficulty: "hard", Losses: 2, Draws: 5}},
		rounds: []store.Round{{GameID: "g", Round: 1, Outcome: "draw"}},
	}
	_, h := newTestServer(t, WithHistory(hist))

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/api/stats", nil))
	var stats []store.DifficultyStats
	if err := json.Unmarshal(rr.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if len(stats) != 1 || stats[0].Draws != 5 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/api/rounds?limit=3", nil))
	if rr.Code != http.StatusOK || hist.limit != 3 {
		t.Fatalf("expected 200 with limit 3, got %d limit %d", rr.Code, hist.limit)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/api/rounds?limit=zero", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}

	hist.err = errors.New("db down")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/api/stats", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}

func TestAPIBlog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blogs.json")
	_, h := newTestServer(t, WithFeedPath(path))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/api/blog", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before first sync, got %d", rr.Code)
	}

	doc := feeds.Document{
		GeneratedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		Posts:       map[string][]feeds.Post{"devto": {{Title: "Minimax", URL: "https://dev.to/a/minimax"}}},
	}
	if err := feeds.WriteDocument(path, doc); err != nil {
		t.Fatalf("WriteDocument: %v", err)
	}
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/api/blog", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(rr.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := raw["generatedAt"]; !ok {
		t.Fatalf("expected generatedAt key, got %s", rr.Body.String())
	}
	if !strings.Contains(string(raw["devto"]), "Minimax") {
		t.Fatalf("expected devto posts, got %s", rr.Body.String())
	}
}
