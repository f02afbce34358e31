package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rps_arena/internal/logger"
	"rps_arena/internal/protocol"
	"rps_arena/internal/session"

	"github.com/gorilla/websocket"
)

func init() {
	logger.InitWriter(io.Discard, "error", false)
}

func TestSocketURL(t *testing.T) {
	cases := []struct {
		base string
		want string
		ok   bool
	}{
		{"http://127.0.0.1:8080", "ws://127.0.0.1:8080/ws?token=abc", true},
		{"https://arena.example/", "wss://arena.example/ws?token=abc", true},
		{"ws://host/base", "ws://host/base/ws?token=abc", true},
		{"ftp://host", "", false},
	}
	for _, tc := range cases {
		got, err := socketURL(tc.base, "abc")
		if (err == nil) != tc.ok || got != tc.want {
			t.Fatalf("socketURL(%q) = %q, %v; want %q", tc.base, got, err, tc.want)
		}
	}
}

// fakeServer answers the session query and echoes a pong for every ping.
func fakeServer(t *testing.T, status *protocol.SessionStatus) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "good" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		ready, _ := protocol.Encode(protocol.Event{Type: protocol.MsgReady})
		_ = conn.WriteMessage(websocket.TextMessage, ready)
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			env, err := protocol.Decode(raw)
			if err == nil && env.Type == protocol.MsgPing {
				pong, _ := protocol.Encode(protocol.Event{Type: protocol.MsgPong})
				_ = conn.WriteMessage(websocket.TextMessage, pong)
			}
		}
	})
	mux.HandleFunc("/api/v1/match/session", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(protocol.SessionStatusPayload{Status: status})
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func TestConnRoundTrip(t *testing.T) {
	ts := fakeServer(t, &protocol.SessionStatus{MatchID: "m1", Bet: 50, RoundsPlayed: 2, WinCount: 1})
	bus := session.NewBus()
	got := make(chan string, 4)
	bus.Subscribe(protocol.MsgReady, func(env protocol.Envelope) { got <- env.Type })
	bus.Subscribe(protocol.MsgPong, func(env protocol.Envelope) { got <- env.Type })

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	c, err := Dial(ctx, ts.URL, "good", bus)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if err := c.Send(ctx, protocol.Event{Type: protocol.MsgPing}); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{protocol.MsgReady, protocol.MsgPong} {
		select {
		case typ := <-got:
			if typ != want {
				t.Fatalf("got %s; want %s", typ, want)
			}
		case <-ctx.Done():
			t.Fatalf("timeout waiting for %s", want)
		}
	}

	st, err := c.SessionStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st == nil || st.MatchID != "m1" || st.RoundsPlayed != 2 {
		t.Fatalf("status = %+v", st)
	}
}

func TestDialRejectedTokenIsNotRetried(t *testing.T) {
	ts := fakeServer(t, nil)
	start := time.Now()
	if _, err := Dial(context.Background(), ts.URL, "bad", session.NewBus()); err == nil {
		t.Fatal("expected dial to fail")
	}
	if time.Since(start) > time.Second {
		t.Fatalf("rejected token was retried")
	}
}

func TestSendAfterClose(t *testing.T) {
	ts := fakeServer(t, nil)
	c, err := Dial(context.Background(), ts.URL, "good", session.NewBus())
	if err != nil {
		t.Fatal(err)
	}
	_ = c.Close()
	<-c.Done()
	if err := c.Send(context.Background(), protocol.Event{Type: protocol.MsgPing}); err != ErrClosed {
		t.Fatalf("send after close = %v; want ErrClosed", err)
	}
}
