package api

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"MarketSweep/pkg/logger"
)

// ProgressHub fans optimization progress events out to websocket listeners.
// Slow or dead connections are dropped rather than allowed to stall a run.
type ProgressHub struct {
	mu       sync.Mutex
	conns    map[*websocket.Conn]struct{}
	upgrader websocket.Upgrader
	log      *logger.Logger
}

func NewProgressHub(log *logger.Logger) *ProgressHub {
	return &ProgressHub{
		conns: make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: log,
	}
}

// Serve upgrades the request and parks it until the client disconnects.
func (h *ProgressHub) Serve(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.conns[conn] = struct{}{}
	n := len(h.conns)
	h.mu.Unlock()
	h.log.Debug("progress listener connected", logger.Int("listeners", n))

	// Read loop only to observe close; inbound frames are ignored.
	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return nil
}

// Broadcast sends one JSON event to every listener. Writes stay under the
// lock: the connection permits a single writer, and concurrent runs broadcast
// from independent goroutines.
func (h *ProgressHub) Broadcast(v interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		if err := conn.WriteJSON(v); err != nil {
			delete(h.conns, conn)
			_ = conn.Close()
		}
	}
}

// Close disconnects all listeners.
func (h *ProgressHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		_ = conn.Close()
	}
	h.conns = make(map[*websocket.Conn]struct{})
}

func (h *ProgressHub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[conn]; ok {
		delete(h.conns, conn)
		_ = conn.Close()
	}
}
