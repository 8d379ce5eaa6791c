package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/saint2706/portfolio/internal/ai"
	"github.com/saint2706/portfolio/internal/app"
	"github.com/saint2706/portfolio/internal/domain"
	"github.com/saint2706/portfolio/internal/feeds"
	"github.com/saint2706/portfolio/internal/store"
)

type handlers struct {
	svc      *app.Service
	tpl      *templates
	history  History
	feedPath string
}

func (h *handlers) renderBoard(gs app.GameState, errMsg string) []byte {
	return renderTemplate(h.tpl.board, "", newBoardView(gs, errMsg))
}

func errorText(err error) string {
	switch {
	case errors.Is(err, app.ErrNotYourTurn):
		return "Not your turn"
	case errors.Is(err, app.ErrNotAPlayer):
		return "You are a spectator"
	case errors.Is(err, domain.ErrOccupied):
		return "Cell is occupied"
	case errors.Is(err, domain.ErrOutOfBounds):
		return "Out of bounds"
	case errors.Is(err, domain.ErrGameOver):
		return "Game is over"
	case errors.Is(err, ai.ErrUnknownDifficulty):
		return "Unknown difficulty"
	default:
		return "Invalid move"
	}
}

// writeBoard answers an htmx action with the refreshed board fragment.
// Rejected actions still render the current board plus the error.
func (h *handlers) writeBoard(w http.ResponseWriter, r *http.Request, id string, gs *app.GameState, err error) {
	var errMsg string
	if err != nil {
		if errors.Is(err, app.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		errMsg = errorText(err)
		if gs == nil {
			if g, ok := h.svc.Get(id); ok {
				gs = g
			}
		}
	}
	if gs == nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(h.renderBoard(*gs, errMsg))
}

func (h *handlers) index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(renderTemplate(h.tpl.index, "", struct{ Default ai.Difficulty }{ai.Medium}))
}

func (h *handlers) create(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	d := ai.Medium
	if v := r.Form.Get("difficulty"); v != "" {
		var err error
		if d, err = ai.ParseDifficulty(v); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	gs, err := h.svc.CreateGame(d)
	if err != nil {
		http.Error(w, "failed to create", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/game/"+gs.ID, http.StatusSeeOther)
}

func (h *handlers) view(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	// ensure cookie and auto-claim seat
	pid := ensurePlayerCookie(w, r)
	_, gs, err := h.svc.Join(id, pid)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	data := struct {
		ID        string
		BoardHTML template.HTML
	}{ID: gs.ID, BoardHTML: template.HTML(h.renderBoard(*gs, ""))}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(renderTemplate(h.tpl.game, "", data))
}

func (h *handlers) join(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	pid := ensurePlayerCookie(w, r)
	_, gs, err := h.svc.Join(id, pid)
	h.writeBoard(w, r, id, gs, err)
}

// cellFromForm reads "cell", or "r" and "c". Unparseable input maps to -1,
// which the game rejects as out of bounds.
func cellFromForm(r *http.Request) int {
	if v := r.Form.Get("cell"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return -1
		}
		return n
	}
	ri, err1 := strconv.Atoi(r.Form.Get("r"))
	ci, err2 := strconv.Atoi(r.Form.Get("c"))
	if err1 != nil || err2 != nil {
		return -1
	}
	return domain.Index(ri, ci)
}

func (h *handlers) play(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	pid := ensurePlayerCookie(w, r)
	_ = r.ParseForm()
	gs, err := h.svc.Play(id, pid, cellFromForm(r))
	h.writeBoard(w, r, id, gs, err)
}

func (h *handlers) reset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	pid := ensurePlayerCookie(w, r)
	gs, err := h.svc.Reset(id, pid)
	h.writeBoard(w, r, id, gs, err)
}

func (h *handlers) difficulty(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	pid := ensurePlayerCookie(w, r)
	_ = r.ParseForm()
	d, err := ai.ParseDifficulty(r.Form.Get("difficulty"))
	if err != nil {
		h.writeBoard(w, r, id, nil, err)
		return
	}
	gs, err := h.svc.SetDifficulty(id, pid, d)
	h.writeBoard(w, r, id, gs, err)
}

var heartbeatInterval = 15 * time.Second

// writeEvent frames one SSE event, one data line per payload line.
func writeEvent(w io.Writer, event string, data []byte) {
	_, _ = fmt.Fprintf(w, "event: %s\n", event)
	for _, line := range bytes.Split(bytes.TrimRight(data, "\n"), []byte("\n")) {
		_, _ = fmt.Fprintf(w, "data: %s\n", line)
	}
	_, _ = io.WriteString(w, "\n")
}

func (h *handlers) events(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	gs, ok := h.svc.Get(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	// Non-EventSource requests only get the headers.
	if !strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		w.WriteHeader(http.StatusOK)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		w.WriteHeader(http.StatusOK)
		return
	}
	ctx := r.Context()
	ch, unsub, err := h.svc.Subscribe(ctx, id)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer unsub()
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	writeEvent(w, "board", h.renderBoard(*gs, ""))
	flusher.Flush()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = io.WriteString(w, ": ping\n\n")
			flusher.Flush()
		case snap, ok := <-ch:
			if !ok {
				return
			}
			writeEvent(w, "board", h.renderBoard(snap, ""))
			flusher.Flush()
		}
	}
}

// gameView is the JSON shape of a game, shared by the API and WebSocket.
type gameView struct {
	ID          string        `json:"id"`
	Board       [9]string     `json:"board"`
	Turn        string        `json:"turn"`
	Outcome     string        `json:"outcome"`
	WinningLine []int         `json:"winning_line,omitempty"`
	Difficulty  ai.Difficulty `json:"difficulty"`
	Score       domain.Score  `json:"score"`
	Round       int           `json:"round"`
	Thinking    bool          `json:"thinking"`
	LastAIMove  int           `json:"last_ai_move"`
	Updated     time.Time     `json:"updated"`
}

func newGameView(gs app.GameState) gameView {
	v := gameView{
		ID:         gs.ID,
		Turn:       gs.Game.Turn.String(),
		Outcome:    gs.Outcome().String(),
		Difficulty: gs.Difficulty,
		Score:      gs.Score,
		Round:      gs.Round,
		Thinking:   gs.Thinking,
		LastAIMove: gs.LastAIMove,
		Updated:    gs.Updated,
	}
	for i, c := range gs.Game.Board {
		if c.IsMark() {
			v.Board[i] = c.String()
		}
	}
	if line, ok := domain.WinningLine(gs.Game.Board); ok {
		v.WinningLine = line[:]
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (h *handlers) apiGame(w http.ResponseWriter, r *http.Request) {
	gs, ok := h.svc.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, app.ErrNotFound.Error())
		return
	}
	writeJSON(w, http.StatusOK, newGameView(*gs))
}

func (h *handlers) apiStats(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusServiceUnavailable, "history disabled")
		return
	}
	stats, err := h.history.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "stats unavailable")
		return
	}
	if stats == nil {
		stats = []store.DifficultyStats{}
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *handlers) apiRounds(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusServiceUnavailable, "history disabled")
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 200 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 200")
			return
		}
		limit = n
	}
	rounds, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "rounds unavailable")
		return
	}
	if rounds == nil {
		rounds = []store.Round{}
	}
	writeJSON(w, http.StatusOK, rounds)
}

func (h *handlers) apiBlog(w http.ResponseWriter, r *http.Request) {
	if h.feedPath == "" {
		writeError(w, http.StatusNotFound, "no blog data")
		return
	}
	doc, err := feeds.LoadDocument(h.feedPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "blog data unreadable")
		return
	}
	if doc == nil {
		writeError(w, http.StatusNotFound, "no blog data")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}
