package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/chesslm/pkg/chessdto"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) chessdto.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var ev chessdto.Event
	if err := wsjson.Read(ctx, conn, &ev); err != nil {
		t.Fatalf("read: %v", err)
	}
	return ev
}

func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for h.Count() != n {
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d, want %d", h.Count(), n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHubSendsInitialAndBroadcasts(t *testing.T) {
	h := NewHub(nil, WithInitial(func() (chessdto.Event, bool) {
		return chessdto.Event{Type: "state", Game: chessdto.Game{ID: "g-1"}}, true
	}))
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	t.Cleanup(h.Close)

	a := dial(t, srv)
	b := dial(t, srv)
	for _, conn := range []*websocket.Conn{a, b} {
		if ev := readEvent(t, conn); ev.Type != "state" || ev.Game.ID != "g-1" {
			t.Fatalf("initial event = %+v", ev)
		}
	}
	waitClients(t, h, 2)

	h.Broadcast(chessdto.Event{Type: "move", Game: chessdto.Game{ID: "g-1"}, Move: &chessdto.Move{From: "e2", To: "e4", SAN: "e4"}})
	for _, conn := range []*websocket.Conn{a, b} {
		ev := readEvent(t, conn)
		if ev.Type != "move" || ev.Move == nil || ev.Move.SAN != "e4" {
			t.Fatalf("broadcast event = %+v", ev)
		}
	}
}

func TestHubDropsClosedClients(t *testing.T) {
	h := NewHub(nil)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	t.Cleanup(h.Close)

	conn := dial(t, srv)
	waitClients(t, h, 1)
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	waitClients(t, h, 0)

	h.Broadcast(chessdto.Event{Type: "state"})
}

func TestHubCloseDisconnectsClients(t *testing.T) {
	h := NewHub(nil)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	conn := dial(t, srv)
	waitClients(t, h, 1)
	h.Close()
	if h.Count() != 0 {
		t.Fatalf("clients remain after Close")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var ev chessdto.Event
	if err := wsjson.Read(ctx, conn, &ev); err == nil {
		t.Fatalf("expected closed connection")
	}
}

func TestHubBurstBeforeInitialDoesNotHang(t *testing.T) {
	var h *Hub
	h = NewHub(nil, WithInitial(func() (chessdto.Event, bool) {
		// Fill the client's buffer before its initial event is queued.
		for i := 0; i < sendBuffer+4; i++ {
			h.Broadcast(chessdto.Event{Type: "move"})
		}
		return chessdto.Event{Type: "state"}, true
	}))
	handled := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer close(handled)
		h.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(h.Close)

	dial(t, srv)
	select {
	case <-handled:
	case <-time.After(5 * time.Second):
		t.Fatalf("handler still blocked after a burst filled the send buffer")
	}
	if n := h.Count(); n != 0 {
		t.Fatalf("clients = %d, want 0", n)
	}
}
