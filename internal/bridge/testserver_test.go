package bridge

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"punter/internal/wire"
)

// testServer is a minimal in-process platform speaking the wire envelope.
// Handlers are registered per request type; unhandled types get an empty OK
// response.
type testServer struct {
	t   *testing.T
	srv *httptest.Server

	mu       sync.Mutex
	conns    []*websocket.Conn
	dials    int
	seen     []wire.Request
	handlers map[string]func(conn *websocket.Conn, req wire.Request)

	writeMu sync.Mutex
}

func newTestServer(t *testing.T) *testServer {
	ts := &testServer{
		t:        t,
		handlers: make(map[string]func(*websocket.Conn, wire.Request)),
	}

	upgrader := websocket.Upgrader{}
	ts.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ts.mu.Lock()
		ts.conns = append(ts.conns, conn)
		ts.dials++
		ts.mu.Unlock()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req wire.Request
			if json.Unmarshal(data, &req) != nil {
				continue
			}
			ts.mu.Lock()
			ts.seen = append(ts.seen, req)
			handler := ts.handlers[req.Type]
			ts.mu.Unlock()

			if handler != nil {
				handler(conn, req)
			} else {
				ts.reply(conn, req, map[string]string{})
			}
		}
	}))
	t.Cleanup(ts.srv.Close)
	return ts
}

func (ts *testServer) URL() string {
	return "ws" + strings.TrimPrefix(ts.srv.URL, "http")
}

func (ts *testServer) handle(reqType string, fn func(conn *websocket.Conn, req wire.Request)) {
	ts.mu.Lock()
	ts.handlers[reqType] = fn
	ts.mu.Unlock()
}

func (ts *testServer) write(conn *websocket.Conn, frame wire.Response) {
	payload, _ := json.Marshal(frame)
	ts.writeMu.Lock()
	conn.WriteMessage(websocket.TextMessage, payload)
	ts.writeMu.Unlock()
}

func (ts *testServer) reply(conn *websocket.Conn, req wire.Request, data interface{}) {
	raw, _ := json.Marshal(data)
	ts.write(conn, wire.Response{
		Type:      req.Type,
		RequestID: req.RequestID,
		OK:        true,
		ServerTs:  time.Now().UnixMilli(),
		Data:      raw,
	})
}

func (ts *testServer) fail(conn *websocket.Conn, req wire.Request, e *wire.Error) {
	ts.write(conn, wire.Response{
		Type:      req.Type,
		RequestID: req.RequestID,
		ServerTs:  time.Now().UnixMilli(),
		Error:     e,
	})
}

func (ts *testServer) push(frame wire.Response) {
	ts.mu.Lock()
	conns := append([]*websocket.Conn(nil), ts.conns...)
	ts.mu.Unlock()
	for _, c := range conns {
		ts.write(c, frame)
	}
}

func (ts *testServer) closeAll() {
	ts.mu.Lock()
	conns := ts.conns
	ts.conns = nil
	ts.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
}

func (ts *testServer) requestCount(reqType string) int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	n := 0
	for _, r := range ts.seen {
		if r.Type == reqType {
			n++
		}
	}
	return n
}

func (ts *testServer) dialCount() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.dials
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
