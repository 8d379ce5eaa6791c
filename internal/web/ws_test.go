package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/saint2706/portfolio/internal/ai"
)

func dialGame(t *testing.T, srv *httptest.Server, id, player string) (*websocket.Conn, *http.Response) {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/game/" + id + "/ws"
	header := http.Header{}
	if player != "" {
		header.Set("Cookie", "player_id="+player)
	}
	conn, resp, err := websocket.DefaultDialer.Dial(u, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn, resp
}

func readMessage(t *testing.T, conn *websocket.Conn) wsMessage {
	t.Helper()
	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if msg.Type != "ping" {
			return msg
		}
	}
}

func TestWebSocketPlay(t *testing.T) {
	svc, h := newTestServer(t)
	srv := httptest.NewServer(h)
	defer srv.Close()
	id := seatedGame(t, svc, ai.Hard)

	conn, _ := dialGame(t, srv, id, "p1")
	hello := readMessage(t, conn)
	if hello.Type != "state" || hello.Seat != "X" || hello.State == nil || hello.State.ID != id {
		t.Fatalf("unexpected hello %+v", hello)
	}

	if err := conn.WriteJSON(map[string]any{"type": "move", "cell": 4}); err != nil {
		t.Fatalf("write: %v", err)
	}
	msg := readMessage(t, conn)
	if msg.Type != "state" || msg.State.Board[4] != "X" || msg.State.LastAIMove < 0 {
		t.Fatalf("expected board with both moves, got %+v", msg)
	}

	cases := []struct {
		frame any
		want  string
	}{
		{map[string]any{"type": "move", "cell": 4}, "Cell is occupied"},
		{map[string]any{"type": "move"}, "Out of bounds"},
		{map[string]any{"type": "difficulty", "difficulty": "insane"}, "Unknown difficulty"},
		{map[string]any{"type": "surrender"}, "Unknown message type"},
	}
	for _, tc := range cases {
		if err := conn.WriteJSON(tc.frame); err != nil {
			t.Fatalf("write: %v", err)
		}
		msg := readMessage(t, conn)
		if msg.Type != "error" || msg.Error != tc.want {
			t.Fatalf("frame %v: expected error %q, got %+v", tc.frame, tc.want, msg)
		}
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if msg := readMessage(t, conn); msg.Error != "Malformed message" {
		t.Fatalf("expected malformed error, got %+v", msg)
	}

	if err := conn.WriteJSON(map[string]any{"type": "reset"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	msg = readMessage(t, conn)
	if msg.Type != "state" || msg.State.Round != 2 || msg.State.Board[4] != "" {
		t.Fatalf("expected fresh round, got %+v", msg)
	}
}

func TestWebSocketSpectatorGetsCookieAndUpdates(t *testing.T) {
	svc, h := newTestServer(t)
	srv := httptest.NewServer(h)
	defer srv.Close()
	id := seatedGame(t, svc, ai.Hard)

	conn, resp := dialGame(t, srv, id, "")
	var cookie string
	for _, c := range resp.Cookies() {
		if c.Name == "player_id" {
			cookie = c.Value
		}
	}
	if cookie == "" {
		t.Fatalf("expected player_id cookie on upgrade")
	}
	hello := readMessage(t, conn)
	if hello.Seat != "" {
		t.Fatalf("spectator should have no seat, got %q", hello.Seat)
	}

	if _, err := svc.Play(id, "p1", 0); err != nil {
		t.Fatalf("Play: %v", err)
	}
	msg := readMessage(t, conn)
	if msg.Type != "state" || msg.State.Board[0] != "X" {
		t.Fatalf("spectator should see the move, got %+v", msg)
	}

	if err := conn.WriteJSON(map[string]any{"type": "move", "cell": 8}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if msg := readMessage(t, conn); msg.Error != "You are a spectator" {
		t.Fatalf("expected spectator error, got %+v", msg)
	}
}

func TestWebSocketUnknownGame(t *testing.T) {
	_, h := newTestServer(t)
	srv := httptest.NewServer(h)
	defer srv.Close()
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/game/missing/ws"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected dial failure")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 response, got %+v", resp)
	}
}
