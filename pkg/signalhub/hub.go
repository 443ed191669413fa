package signalhub

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "depohub:signal"

// Conn wraps a websocket connection with a write lock. gorilla/websocket
// allows only one concurrent writer per connection.
type Conn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws}
}

func (c *Conn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

func (c *Conn) Close() error {
	return c.ws.Close()
}

// Hub routes push payloads to the websocket connections of a user identity.
// Connections register locally; sends go through a redis pub/sub backplane so
// every instance delivers to its own connections, wherever the user landed.
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]map[*Conn]struct{}
	rdb    *redis.Client
	prefix string
	log    *slog.Logger
}

func NewHub(rdb *redis.Client, prefix string, log *slog.Logger) *Hub {
	if prefix == "" {
		prefix = defaultPrefix
	}
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		conns:  make(map[string]map[*Conn]struct{}),
		rdb:    rdb,
		prefix: prefix,
		log:    log,
	}
}

// Register attaches a connection to identity and returns the wrapped conn.
func (h *Hub) Register(identity string, ws *websocket.Conn) *Conn {
	c := NewConn(ws)
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.conns[identity]
	if !ok {
		set = make(map[*Conn]struct{})
		h.conns[identity] = set
	}
	set[c] = struct{}{}
	return c
}

// Unregister detaches a connection. It does not close the underlying socket.
func (h *Hub) Unregister(identity string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.conns[identity]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.conns, identity)
	}
}

// LocalConns reports how many connections identity has on this instance.
func (h *Hub) LocalConns(identity string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[identity])
}

// SendToUser publishes payload for identity. Delivery happens in Run on
// whichever instances hold connections for that identity, this one included.
func (h *Hub) SendToUser(ctx context.Context, identity string, payload []byte) error {
	channel := h.prefix + ":" + identity
	if err := h.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", channel, err)
	}
	return nil
}

// Run subscribes to the backplane and delivers published payloads to local
// connections until ctx is canceled.
func (h *Hub) Run(ctx context.Context) error {
	sub := h.rdb.PSubscribe(ctx, h.prefix+":*")
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			identity := strings.TrimPrefix(msg.Channel, h.prefix+":")
			h.deliverLocal(identity, []byte(msg.Payload))
		}
	}
}

func (h *Hub) deliverLocal(identity string, payload []byte) {
	h.mu.RLock()
	targets := make([]*Conn, 0, len(h.conns[identity]))
	for c := range h.conns[identity] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.Send(payload); err != nil {
			h.log.Warn("push delivery failed, dropping connection",
				slog.String("identity", identity), slog.String("error", err.Error()))
			h.Unregister(identity, c)
			c.Close()
		}
	}
}
