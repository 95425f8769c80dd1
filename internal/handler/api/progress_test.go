package api

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketSweep/pkg/logger"
)

func newTestHub(t *testing.T) *ProgressHub {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "stderr"})
	require.NoError(t, err)
	return NewProgressHub(log)
}

func dialHub(t *testing.T, hub *ProgressHub) (*websocket.Conn, func()) {
	t.Helper()
	e := echo.New()
	e.GET("/progress", hub.Serve)
	srv := httptest.NewServer(e)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/progress"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}

	// The server registers the connection after the handshake completes.
	require.Eventually(t, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		return len(hub.conns) == 1
	}, time.Second, 5*time.Millisecond)

	return conn, func() {
		conn.Close()
		srv.Close()
	}
}

func TestProgressBroadcastFromConcurrentRuns(t *testing.T) {
	hub := newTestHub(t)
	conn, done := dialHub(t, hub)
	defer done()

	// Two optimization runs broadcasting at once must not interleave writes
	// on the single connection.
	const perRun = 25
	var wg sync.WaitGroup
	for run := 0; run < 2; run++ {
		wg.Add(1)
		go func(run int) {
			defer wg.Done()
			for i := 0; i < perRun; i++ {
				hub.Broadcast(map[string]int{"run": run, "iteration": i})
			}
		}(run)
	}

	for got := 0; got < 2*perRun; got++ {
		var msg map[string]int
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Contains(t, msg, "iteration")
	}
	wg.Wait()
	hub.Close()
}

func TestProgressDropsDeadListener(t *testing.T) {
	hub := newTestHub(t)
	conn, done := dialHub(t, hub)
	defer done()

	conn.Close()
	require.Eventually(t, func() bool {
		hub.Broadcast(map[string]int{"iteration": 0})
		hub.mu.Lock()
		defer hub.mu.Unlock()
		return len(hub.conns) == 0
	}, time.Second, 10*time.Millisecond)
}
