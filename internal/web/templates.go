package web

import (
	"bytes"
	"html/template"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/saint2706/portfolio/internal/ai"
	"github.com/saint2706/portfolio/internal/app"
	"github.com/saint2706/portfolio/internal/domain"
)

type templates struct {
	game  *template.Template
	board *template.Template
	index *template.Template
}

func funcs() template.FuncMap {
	return template.FuncMap{
		"difficulties": func() []ai.Difficulty { return ai.Difficulties },
	}
}

func loadTemplates() *templates {
	base := template.Must(template.New("base").Funcs(funcs()).Parse(`<!doctype html><html><head>
<meta charset="utf-8"/>
<title>Tic-Tac-Toe</title>
<script src="https://unpkg.com/htmx.org@1.9.12"></script>
<script src="https://unpkg.com/htmx.org/dist/ext/sse.js"></script>
</head><body>{{template "content" .}}</body></html>`))
	index := template.Must(template.Must(base.Clone()).New("content").Parse(`<h1>Tic-Tac-Toe</h1>
<form action="/game" method="post">
  <select name="difficulty">
    {{range difficulties}}<option value="{{.}}"{{if eq . $.Default}} selected{{end}}>{{.}}</option>{{end}}
  </select>
  <button>Play</button>
</form>`))
	game := template.Must(template.Must(base.Clone()).New("content").Parse(`
<div hx-ext="sse" sse-connect="/game/{{.ID}}/events">
  <div id="board-slot" sse-swap="board" hx-target="#board" hx-swap="outerHTML">{{.BoardHTML}}</div>
</div>`))
	board := template.Must(template.New("board_only").Funcs(funcs()).Parse(boardTemplate))
	return &templates{game: game, board: board, index: index}
}

func renderTemplate(t *template.Template, name string, data any) []byte {
	var buf bytes.Buffer
	var err error
	if name == "" {
		err = t.Execute(&buf, data)
	} else {
		err = t.ExecuteTemplate(&buf, name, data)
	}
	if err != nil {
		log.Printf("[web] render %s: %v", t.Name(), err)
	}
	return buf.Bytes()
}

const boardTemplate = `<div id="board" data-outcome="{{.Outcome}}" data-round="{{.Round}}">
  {{if .Error}}<div class="alert">{{.Error}}</div>{{end}}
  <p class="status">{{.Status}}</p>
  <p class="score">Wins: {{.Score.Wins}} Losses: {{.Score.Losses}} Draws: {{.Score.Draws}}</p>
  <div class="grid">
    {{range .Cells}}
    <form hx-post="/game/{{$.ID}}/play" hx-target="#board" hx-swap="outerHTML" method="post">
      <input type="hidden" name="cell" value="{{.Index}}">
      <button type="submit" class="cell{{if .Win}} win{{end}}{{if .Last}} last{{end}}"{{if not .Playable}} disabled{{end}}>{{.Symbol}}</button>
    </form>
    {{end}}
  </div>
  <form hx-post="/game/{{.ID}}/reset" hx-target="#board" hx-swap="outerHTML" method="post">
    <button type="submit">New round</button>
  </form>
  <form hx-post="/game/{{.ID}}/difficulty" hx-target="#board" hx-swap="outerHTML" hx-trigger="change" method="post">
    <select name="difficulty">
      {{range difficulties}}<option value="{{.}}"{{if eq . $.Difficulty}} selected{{end}}>{{.}}</option>{{end}}
    </select>
  </form>
</div>`

type cellView struct {
	Index    int
	Symbol   string
	Win      bool
	Last     bool
	Playable bool
}

type boardView struct {
	ID         string
	Cells      []cellView
	Outcome    domain.Outcome
	Status     string
	Score      domain.Score
	Difficulty ai.Difficulty
	Round      int
	Error      string
}

func newBoardView(gs app.GameState, errMsg string) boardView {
	outcome := gs.Outcome()
	v := boardView{
		ID:         gs.ID,
		Outcome:    outcome,
		Status:     statusText(gs),
		Score:      gs.Score,
		Difficulty: gs.Difficulty,
		Round:      gs.Round,
		Error:      errMsg,
	}
	line, won := domain.WinningLine(gs.Game.Board)
	canPlay := !outcome.Terminal() && !gs.Thinking && gs.Game.Turn == domain.PlayerMark
	for i, c := range gs.Game.Board {
		cv := cellView{Index: i, Last: i == gs.LastAIMove, Playable: canPlay && c == domain.Empty}
		if c.IsMark() {
			cv.Symbol = c.String()
		}
		if won {
			cv.Win = i == line[0] || i == line[1] || i == line[2]
		}
		v.Cells = append(v.Cells, cv)
	}
	return v
}

func statusText(gs app.GameState) string {
	switch gs.Outcome() {
	case domain.PlayerWin:
		return "You win!"
	case domain.OpponentWin:
		return "Computer wins."
	case domain.Draw:
		return "Draw."
	}
	if gs.Thinking {
		return "Computer is thinking..."
	}
	return "Your move."
}

const playerCookie = "player_id"

// playerFromRequest returns the player cookie value, if any.
func playerFromRequest(r *http.Request) string {
	if c, err := r.Cookie(playerCookie); err == nil && c.Value != "" {
		return c.Value
	}
	return ""
}

func newPlayerCookie() *http.Cookie {
	return &http.Cookie{Name: playerCookie, Value: uuid.NewString(), Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode}
}

// Helper to set cookie
func ensurePlayerCookie(w http.ResponseWriter, r *http.Request) string {
	if v := playerFromRequest(r); v != "" {
		return v
	}
	c := newPlayerCookie()
	http.SetCookie(w, c)
	return c.Value
}
