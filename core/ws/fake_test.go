package ws_test

import (
	"bytes"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/wirehttp/core/ws"
)

type inbound struct {
	typ  int
	data []byte
}

type written struct {
	typ    int
	frames [][]byte
}

func (w written) payload() []byte { return bytes.Join(w.frames, nil) }

// fakeConn is an in-memory Transport. Each WriteMessage is one frame and each
// Write on a NextWriter writer is one frame.
type fakeConn struct {
	in        chan inbound
	readErr   error
	closed    chan struct{}
	closeOnce sync.Once

	gate chan struct{} // when set, every data write waits for a token

	mu       sync.Mutex
	msgs     []written
	controls []int

	inflight    atomic.Int32
	maxInflight atomic.Int32
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan inbound, 16),
		closed: make(chan struct{}),
	}
}

func (f *fakeConn) push(text string) { f.in <- inbound{typ: websocket.TextMessage, data: []byte(text)} }

// hangUp makes the next read fail with err, or a clean 1000 close when nil.
func (f *fakeConn) hangUp(err error) {
	f.readErr = err
	close(f.in)
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case m, ok := <-f.in:
		if !ok {
			if f.readErr != nil {
				return 0, nil, f.readErr
			}
			return 0, nil, &websocket.CloseError{Code: websocket.CloseNormalClosure}
		}
		return m.typ, m.data, nil
	case <-f.closed:
		return 0, nil, net.ErrClosed
	}
}

func (f *fakeConn) enter() {
	n := f.inflight.Add(1)
	for {
		cur := f.maxInflight.Load()
		if n <= cur || f.maxInflight.CompareAndSwap(cur, n) {
			break
		}
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-f.closed:
		}
	}
}

func (f *fakeConn) leave() { f.inflight.Add(-1) }

func (f *fakeConn) record(w written) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, w)
}

func (f *fakeConn) WriteMessage(typ int, data []byte) error {
	f.enter()
	defer f.leave()
	f.record(written{typ: typ, frames: [][]byte{bytes.Clone(data)}})
	return nil
}

func (f *fakeConn) NextWriter(typ int) (io.WriteCloser, error) {
	f.enter()
	return &fakeWriter{conn: f, msg: written{typ: typ}}, nil
}

func (f *fakeConn) WriteControl(typ int, _ []byte, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.controls = append(f.controls, typ)
	return nil
}

func (f *fakeConn) SetReadDeadline(time.Time) error   { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error  { return nil }
func (f *fakeConn) SetReadLimit(int64)                {}
func (f *fakeConn) SetPongHandler(func(string) error) {}

func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) messages() []written {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]written(nil), f.msgs...)
}

func (f *fakeConn) controlFrames() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.controls...)
}

type fakeWriter struct {
	conn *fakeConn
	msg  written
}

func (w *fakeWriter) Write(p []byte) (int, error) {
	w.msg.frames = append(w.msg.frames, bytes.Clone(p))
	return len(p), nil
}

func (w *fakeWriter) Close() error {
	w.conn.record(w.msg)
	w.conn.leave()
	return nil
}

// events records dispatched callbacks.
type events struct {
	mu      sync.Mutex
	names   []string
	last    *ws.Context
	closeCt int
	errs    []error
}

func (e *events) add(name string, c *ws.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.names = append(e.names, name)
	e.last = c
	switch name {
	case "close":
		e.closeCt = c.CloseCode()
	case "error":
		e.errs = append(e.errs, c.Err())
	}
}

func (e *events) list() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.names...)
}

func (e *events) handlers() ws.Handlers {
	return ws.Handlers{
		Open:    func(c *ws.Context) { e.add("open", c) },
		Message: func(c *ws.Context) { e.add("message:"+c.Text(), c) },
		Close:   func(c *ws.Context) { e.add("close", c) },
		Error:   func(c *ws.Context) { e.add("error", c) },
	}
}

func testConfig() ws.Config {
	cfg := ws.DefaultConfig()
	cfg.PongWait = 0
	cfg.WriteTimeout = 0
	return cfg
}

func sequentialIDs(prefix string) func() string {
	var n atomic.Int32
	return func() string {
		return prefix + string(rune('a'+n.Add(1)-1))
	}
}

func start(t *testing.T, u *ws.Upgrader, conn *fakeConn, path string) *ws.Session {
	t.Helper()
	s := u.Attach(conn, httptest.NewRequest(http.MethodGet, path, nil))
	go s.Run()
	require.Eventually(t, func() bool {
		_, ok := u.Registry().Get(s.ID())
		return ok
	}, time.Second, time.Millisecond)
	t.Cleanup(func() { _ = conn.Close() })
	return s
}
