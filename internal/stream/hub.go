package stream

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/chesslm/pkg/chessdto"
)

const (
	defaultPingInterval = 30 * time.Second
	writeTimeout        = 5 * time.Second
	sendBuffer          = 16
)

type client struct {
	conn *websocket.Conn
	send chan chessdto.Event
	done chan struct{}
	once sync.Once
}

// close is idempotent. send is never closed so Broadcast cannot panic on it.
func (c *client) close(code websocket.StatusCode, reason string) {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close(code, reason)
	})
}

// Hub fans game events out to websocket subscribers. A client that cannot keep
// up with its buffer is disconnected rather than blocking the broadcaster.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool

	initial      func() (chessdto.Event, bool)
	pingInterval time.Duration
	logger       *zap.Logger
	wg           sync.WaitGroup
}

type Option func(*Hub)

func WithPingInterval(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.pingInterval = d
		}
	}
}

// WithInitial sets the event sent to a client right after it connects.
func WithInitial(fn func() (chessdto.Event, bool)) Option {
	return func(h *Hub) { h.initial = fn }
}

func NewHub(logger *zap.Logger, opts ...Option) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		clients:      make(map[*client]struct{}),
		pingInterval: defaultPingInterval,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  []string{"*"},
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		h.logger.Warn("stream_accept_failed", zap.Error(err))
		return
	}
	c := &client{conn: conn, send: make(chan chessdto.Event, sendBuffer), done: make(chan struct{})}
	if !h.add(c) {
		_ = conn.Close(websocket.StatusGoingAway, "shutting down")
		return
	}
	h.logger.Info("stream_client_connected", zap.String("remote", r.RemoteAddr), zap.Int("clients", h.Count()))

	if h.initial != nil {
		if ev, ok := h.initial(); ok {
			select {
			case c.send <- ev:
			case <-c.done:
			default:
				h.logger.Warn("stream_initial_dropped", zap.String("remote", r.RemoteAddr))
			}
		}
	}

	// Reads are discarded; CloseRead cancels ctx when the peer goes away.
	ctx := conn.CloseRead(context.Background())
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.pingLoop(ctx, c)
	}()
	h.writeLoop(ctx, c)

	h.remove(c)
	h.logger.Info("stream_client_disconnected", zap.String("remote", r.RemoteAddr), zap.Int("clients", h.Count()))
}

func (h *Hub) writeLoop(ctx context.Context, c *client) {
	for {
		select {
		case <-ctx.Done():
			c.close(websocket.StatusNormalClosure, "")
			return
		case <-c.done:
			return
		case ev := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, c.conn, ev)
			cancel()
			if err != nil {
				h.logger.Debug("stream_write_failed", zap.Error(err))
				c.close(websocket.StatusInternalError, "write failed")
				return
			}
		}
	}
}

func (h *Hub) pingLoop(ctx context.Context, c *client) {
	t := time.NewTicker(h.pingInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := c.conn.Ping(pctx)
			cancel()
			if err != nil {
				c.close(websocket.StatusGoingAway, "ping failed")
				return
			}
		}
	}
}

func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close(websocket.StatusNormalClosure, "")
}

// Broadcast queues ev for every client without blocking.
func (h *Hub) Broadcast(ev chessdto.Event) {
	h.mu.RLock()
	var slow []*client
	for c := range h.clients {
		select {
		case <-c.done:
		case c.send <- ev:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("stream_client_slow")
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		c.close(websocket.StatusPolicyViolation, "too slow")
	}
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = map[*client]struct{}{}
	h.mu.Unlock()

	for _, c := range clients {
		c.close(websocket.StatusGoingAway, "shutting down")
	}
	h.wg.Wait()
}
