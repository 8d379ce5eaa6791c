package web

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/saint2706/portfolio/internal/app"
	"github.com/saint2706/portfolio/internal/store"
)

// History serves finished-round aggregates. *store.Store satisfies it.
type History interface {
	Stats(ctx context.Context) ([]store.DifficultyStats, error)
	Recent(ctx context.Context, limit int) ([]store.Round, error)
}

// Option configures the server.
type Option func(*handlers)

// WithHistory enables /api/stats and /api/rounds.
func WithHistory(hist History) Option { return func(h *handlers) { h.history = hist } }

// WithFeedPath sets the blog document served on /api/blog.
func WithFeedPath(path string) Option { return func(h *handlers) { h.feedPath = path } }

// NewServer wires routes and returns an http.Handler.
func NewServer(s *app.Service, opts ...Option) http.Handler {
	h := &handlers{svc: s, tpl: loadTemplates()}
	for _, opt := range opts {
		opt(h)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/", h.index)
	r.Post("/game", h.create)
	r.Route("/game/{id}", func(r chi.Router) {
		r.Get("/", h.view)
		r.Post("/join", h.join)
		r.Post("/play", h.play)
		r.Post("/reset", h.reset)
		r.Post("/difficulty", h.difficulty)
		r.Get("/events", h.events)
		r.Get("/ws", h.ws)
	})
	r.Route("/api", func(r chi.Router) {
		r.Get("/games/{id}", h.apiGame)
		r.Get("/stats", h.apiStats)
		r.Get("/rounds", h.apiRounds)
		r.Get("/blog", h.apiBlog)
	})
	return r
}
