package signalhub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewHub(rdb, "test:signal", nil)
}

// dialRegistered spins up a websocket endpoint that registers every upgraded
// connection under identity, then dials it.
func dialRegistered(t *testing.T, hub *Hub, identity string) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Register(identity, ws)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func waitForConns(t *testing.T, hub *Hub, identity string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.LocalConns(identity) < n {
		if time.Now().After(deadline) {
			t.Fatalf("only %d of %d connections registered", hub.LocalConns(identity), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSendToUserReachesRegisteredConn(t *testing.T) {
	hub := newTestHub(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := dialRegistered(t, hub, "juror@example.com")
	waitForConns(t, hub, "juror@example.com", 1)

	if err := hub.SendToUser(ctx, "juror@example.com", []byte(`{"action":"Create"}`)); err != nil {
		t.Fatalf("send: %v", err)
	}

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(payload) != `{"action":"Create"}` {
		t.Fatalf("unexpected payload: %s", payload)
	}
}

func TestSendToUserFansOutToAllConns(t *testing.T) {
	hub := newTestHub(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	first := dialRegistered(t, hub, "witness@example.com")
	second := dialRegistered(t, hub, "witness@example.com")
	waitForConns(t, hub, "witness@example.com", 2)

	if err := hub.SendToUser(ctx, "witness@example.com", []byte("hello")); err != nil {
		t.Fatalf("send: %v", err)
	}

	for i, client := range []*websocket.Conn{first, second} {
		client.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, payload, err := client.ReadMessage()
		if err != nil {
			t.Fatalf("conn %d read: %v", i, err)
		}
		if string(payload) != "hello" {
			t.Fatalf("conn %d unexpected payload: %s", i, payload)
		}
	}
}

func TestSendToOtherIdentityNotDelivered(t *testing.T) {
	hub := newTestHub(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := dialRegistered(t, hub, "attorney@example.com")
	waitForConns(t, hub, "attorney@example.com", 1)

	if err := hub.SendToUser(ctx, "someone.else@example.com", []byte("nope")); err != nil {
		t.Fatalf("send: %v", err)
	}

	client.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, payload, err := client.ReadMessage(); err == nil {
		t.Fatalf("expected no delivery, got: %s", payload)
	}
}

func TestUnregisterRemovesConn(t *testing.T) {
	h := newTestHub(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		up := websocket.Upgrader{}
		ws, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := h.Register("clerk@example.com", ws)
		h.Unregister("clerk@example.com", c)
	}))
	defer srv.Close()

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	deadline := time.Now().Add(time.Second)
	for h.LocalConns("clerk@example.com") != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("connection still registered: %d", h.LocalConns("clerk@example.com"))
		}
		time.Sleep(5 * time.Millisecond)
	}
}
