package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/saint2706/portfolio/internal/ai"
	"github.com/saint2706/portfolio/internal/domain"
)

var wsIdlePingInterval = 25 * time.Second

// The default CheckOrigin only admits same-host origins.
var upgrader = websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024}

var errUnknownCommand = errors.New("unknown message type")

// wsMessage is every frame the server sends.
type wsMessage struct {
	Type  string    `json:"type"` // state, error or ping
	Seat  string    `json:"seat,omitempty"`
	State *gameView `json:"state,omitempty"`
	Error string    `json:"error,omitempty"`
}

// wsCommand is every frame a client sends.
type wsCommand struct {
	Type       string `json:"type"` // move, reset or difficulty
	Cell       *int   `json:"cell,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
}

func (h *handlers) ws(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var respHeader http.Header
	pid := playerFromRequest(r)
	if pid == "" {
		c := newPlayerCookie()
		pid = c.Value
		respHeader = http.Header{"Set-Cookie": {c.String()}}
	}
	seat, gs, err := h.svc.Join(id, pid)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	conn, err := upgrader.Upgrade(w, r, respHeader)
	if err != nil {
		log.Printf("[web] websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	updates, unsub, err := h.svc.Subscribe(ctx, id)
	if err != nil {
		return
	}
	defer unsub()

	replies := make(chan wsMessage, 4)
	go func() {
		defer cancel()
		h.readCommands(ctx, conn, id, pid, replies)
	}()

	hello := wsMessage{Type: "state", State: ptr(newGameView(*gs))}
	if seat.IsMark() {
		hello.Seat = seat.String()
	}
	if err := conn.WriteJSON(hello); err != nil {
		return
	}

	// Single writer: snapshots, replies and idle pings all go out here.
	ticker := time.NewTicker(wsIdlePingInterval)
	defer ticker.Stop()
	lastWrite := time.Now()
	for {
		var msg wsMessage
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			msg = wsMessage{Type: "state", State: ptr(newGameView(snap))}
		case msg = <-replies:
		case <-ticker.C:
			if time.Since(lastWrite) < wsIdlePingInterval {
				continue
			}
			msg = wsMessage{Type: "ping"}
		}
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
		lastWrite = time.Now()
	}
}

// readCommands applies client commands until the connection closes. Game
// changes reach the client through the subscription; only errors are
// answered directly.
func (h *handlers) readCommands(ctx context.Context, conn *websocket.Conn, id, pid string, replies chan<- wsMessage) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd wsCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			if !sendReply(ctx, replies, wsMessage{Type: "error", Error: "Malformed message"}) {
				return
			}
			continue
		}
		if err := h.apply(id, pid, cmd); err != nil {
			if !sendReply(ctx, replies, wsMessage{Type: "error", Error: commandErrorText(err)}) {
				return
			}
		}
	}
}

func (h *handlers) apply(id, pid string, cmd wsCommand) error {
	switch cmd.Type {
	case "move":
		if cmd.Cell == nil {
			return domain.ErrOutOfBounds
		}
		_, err := h.svc.Play(id, pid, *cmd.Cell)
		return err
	case "reset":
		_, err := h.svc.Reset(id, pid)
		return err
	case "difficulty":
		d, err := ai.ParseDifficulty(cmd.Difficulty)
		if err != nil {
			return err
		}
		_, err = h.svc.SetDifficulty(id, pid, d)
		return err
	}
	return fmt.Errorf("%w: %q", errUnknownCommand, cmd.Type)
}

func commandErrorText(err error) string {
	if errors.Is(err, errUnknownCommand) {
		return "Unknown message type"
	}
	return errorText(err)
}

func sendReply(ctx context.Context, replies chan<- wsMessage, msg wsMessage) bool {
	select {
	case replies <- msg:
		return true
	case <-ctx.Done():
		return false
	}
}

func ptr[T any](v T) *T { return &v }
