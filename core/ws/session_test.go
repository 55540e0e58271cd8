package ws_test

import (
	"bytes"
	"errors"
	"io"
	"strconv"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/wirehttp/core/ws"
)

func newUpgrader(path string, h ws.Handlers, opts ...ws.Option) *ws.Upgrader {
	router := ws.NewRouter(nil)
	router.Handle(path, h)
	opts = append([]ws.Option{ws.WithConfig(testConfig())}, opts...)
	return ws.NewUpgrader(router, ws.NewRegistry(), opts...)
}

func TestSessionLifecycle(t *testing.T) {
	t.Parallel()

	ev := &events{}
	h := ev.handlers()
	h.Message = func(c *ws.Context) {
		ev.add("message:"+c.Text(), c)
		c.SendText("echo " + c.Text())
	}
	u := newUpgrader("/chat", h, ws.WithIDGenerator(func() string { return "s1" }))
	conn := newFakeConn()
	s := start(t, u, conn, "/chat")

	assert.Equal(t, "s1", s.ID())
	assert.Equal(t, "/chat", s.Path())
	assert.Equal(t, ws.StateOpen, s.State())

	conn.push("hello")
	require.Eventually(t, func() bool { return len(conn.messages()) == 1 }, time.Second, time.Millisecond)
	msg := conn.messages()[0]
	assert.Equal(t, websocket.TextMessage, msg.typ)
	assert.Equal(t, "echo hello", string(msg.payload()))

	conn.hangUp(nil)
	<-s.Done()
	require.Eventually(t, func() bool { return s.State() == ws.StateClosed }, time.Second, time.Millisecond)

	assert.Equal(t, []string{"open", "message:hello", "close"}, ev.list())
	assert.Equal(t, websocket.CloseNormalClosure, ev.closeCt)
	assert.Equal(t, 0, u.Registry().Len())
}

func TestSessionPreservesBinaryFlag(t *testing.T) {
	t.Parallel()

	got := make(chan bool, 1)
	u := newUpgrader("/bin", ws.Handlers{
		Message: func(c *ws.Context) {
			got <- c.IsText()
			c.Send(c.Message(), c.IsText())
		},
	})
	conn := newFakeConn()
	start(t, u, conn, "/bin")

	conn.in <- inbound{typ: websocket.BinaryMessage, data: []byte{0x00, 0xff}}
	assert.False(t, <-got)
	require.Eventually(t, func() bool { return len(conn.messages()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, websocket.BinaryMessage, conn.messages()[0].typ)
	assert.Equal(t, []byte{0x00, 0xff}, conn.messages()[0].payload())
}

func TestSessionFragmentation(t *testing.T) {
	t.Parallel()

	u := newUpgrader("/f", ws.Handlers{})
	conn := newFakeConn()
	s := start(t, u, conn, "/f")

	small := bytes.Repeat([]byte("a"), 1000)
	belowThreshold := bytes.Repeat([]byte("b"), ws.DefaultFragmentThreshold-1)
	atThreshold := bytes.Repeat([]byte("c"), ws.DefaultFragmentThreshold)
	large := make([]byte, 40<<10)
	for i := range large {
		large[i] = byte(i % 251)
	}

	for _, m := range [][]byte{small, belowThreshold, atThreshold, large} {
		require.NoError(t, s.Send(m, false))
	}
	require.Eventually(t, func() bool { return len(conn.messages()) == 4 }, time.Second, time.Millisecond)

	msgs := conn.messages()
	assert.Len(t, msgs[0].frames, 1)
	assert.Len(t, msgs[1].frames, 1)
	assert.Len(t, msgs[2].frames, 2)
	assert.Len(t, msgs[3].frames, 3)

	for i, want := range [][]byte{small, belowThreshold, atThreshold, large} {
		assert.Equal(t, want, msgs[i].payload(), "message %d", i)
	}
	for _, f := range msgs[3].frames {
		assert.LessOrEqual(t, len(f), ws.DefaultFragmentSize)
	}
}

func TestSessionWritesInOrderOneAtATime(t *testing.T) {
	t.Parallel()

	u := newUpgrader("/q", ws.Handlers{})
	conn := newFakeConn()
	s := start(t, u, conn, "/q")

	const n = 200
	for i := range n {
		require.NoError(t, s.Send([]byte(strconv.Itoa(i)), true))
	}
	require.Eventually(t, func() bool { return len(conn.messages()) == n }, 2*time.Second, time.Millisecond)

	for i, m := range conn.messages() {
		assert.Equal(t, strconv.Itoa(i), string(m.payload()))
	}
	assert.Equal(t, int32(1), conn.maxInflight.Load())
}

func TestSessionQueueBound(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.MaxQueuedMessages = 2
	u := newUpgrader("/q", ws.Handlers{}, ws.WithConfig(cfg))
	conn := newFakeConn()
	conn.gate = make(chan struct{})
	s := start(t, u, conn, "/q")

	require.NoError(t, s.Send([]byte("1"), true))
	// wait until the first message left the queue and is blocked in write
	require.Eventually(t, func() bool { return conn.inflight.Load() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, s.Send([]byte("2"), true))
	require.NoError(t, s.Send([]byte("3"), true))
	assert.ErrorIs(t, s.Send([]byte("4"), true), ws.ErrQueueFull)

	close(conn.gate)
	require.Eventually(t, func() bool { return len(conn.messages()) == 3 }, time.Second, time.Millisecond)
}

func TestSessionServerClose(t *testing.T) {
	t.Parallel()

	ev := &events{}
	u := newUpgrader("/c", ev.handlers())
	conn := newFakeConn()
	s := start(t, u, conn, "/c")
	id := s.ID()

	require.NoError(t, s.Close(websocket.CloseGoingAway, "bye"))

	assert.Equal(t, ws.StateClosed, s.State())
	assert.Contains(t, conn.controlFrames(), websocket.CloseMessage)
	assert.False(t, u.Registry().Send(id, []byte("late"), true))
	assert.Equal(t, 0, u.Registry().SendMany([]string{id}, []byte("late"), true))
	assert.ErrorIs(t, s.Send([]byte("late"), true), ws.ErrSessionClosed)
	assert.ErrorIs(t, s.Close(websocket.CloseNormalClosure, ""), ws.ErrSessionClosed)

	require.Eventually(t, func() bool {
		l := ev.list()
		return len(l) > 0 && l[len(l)-1] == "close"
	}, time.Second, time.Millisecond)
	assert.Equal(t, websocket.CloseGoingAway, ev.closeCt)
}

func TestSessionAbnormalEndDispatchesError(t *testing.T) {
	t.Parallel()

	ev := &events{}
	u := newUpgrader("/e", ev.handlers())
	conn := newFakeConn()
	s := start(t, u, conn, "/e")

	boom := errors.New("connection reset by peer")
	conn.hangUp(boom)
	<-s.Done()
	require.Eventually(t, func() bool { return s.State() == ws.StateClosed }, time.Second, time.Millisecond)

	assert.Equal(t, []string{"open", "error"}, ev.list())
	require.Len(t, ev.errs, 1)
	assert.ErrorIs(t, ev.errs[0], boom)
	assert.Equal(t, 0, u.Registry().Len())
}

func TestSessionCloseCauses(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		cause error
		event string
	}{
		{"going away", &websocket.CloseError{Code: websocket.CloseGoingAway}, "close"},
		{"no status", &websocket.CloseError{Code: websocket.CloseNoStatusReceived}, "close"},
		{"peer dropped", &websocket.CloseError{Code: websocket.CloseAbnormalClosure, Text: io.ErrUnexpectedEOF.Error()}, "close"},
		{"eof", io.EOF, "close"},
		{"policy violation", &websocket.CloseError{Code: websocket.ClosePolicyViolation}, "error"},
		{"message too big", &websocket.CloseError{Code: websocket.CloseMessageTooBig}, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ev := &events{}
			u := newUpgrader("/x", ev.handlers())
			conn := newFakeConn()
			s := start(t, u, conn, "/x")

			conn.hangUp(tt.cause)
			<-s.Done()
			require.Eventually(t, func() bool { return s.State() == ws.StateClosed }, time.Second, time.Millisecond)
			assert.Equal(t, []string{"open", tt.event}, ev.list())
		})
	}
}

func TestContextSendAfterClose(t *testing.T) {
	t.Parallel()

	opened := make(chan *ws.Context, 1)
	u := newUpgrader("/w", ws.Handlers{Open: func(c *ws.Context) { opened <- c }})
	conn := newFakeConn()
	s := start(t, u, conn, "/w")

	c := <-opened
	assert.Equal(t, s.ID(), c.ID())
	assert.True(t, c.SendText("while open"))

	require.NoError(t, s.Close(websocket.CloseNormalClosure, ""))
	assert.False(t, c.SendText("after close"))
	assert.False(t, c.Close(websocket.CloseNormalClosure, ""))
}

func TestContextAttributesSpanEvents(t *testing.T) {
	t.Parallel()

	got := make(chan string, 1)
	u := newUpgrader("/a", ws.Handlers{
		Open: func(c *ws.Context) { c.Set("user", "alice") },
		Message: func(c *ws.Context) {
			user, _ := ws.Value[string](c, "user")
			got <- user
		},
	})
	conn := newFakeConn()
	start(t, u, conn, "/a")

	conn.push("hi")
	assert.Equal(t, "alice", <-got)
}

func TestHandlerPanicDoesNotEndSession(t *testing.T) {
	t.Parallel()

	got := make(chan string, 2)
	u := newUpgrader("/p", ws.Handlers{
		Message: func(c *ws.Context) {
			if c.Text() == "boom" {
				panic("handler bug")
			}
			got <- c.Text()
		},
	})
	conn := newFakeConn()
	s := start(t, u, conn, "/p")

	conn.push("boom")
	conn.push("after")
	assert.Equal(t, "after", <-got)
	assert.Equal(t, ws.StateOpen, s.State())
}

func TestStateString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "connecting", ws.StateConnecting.String())
	assert.Equal(t, "open", ws.StateOpen.String())
	assert.Equal(t, "closing", ws.StateClosing.String())
	assert.Equal(t, "closed", ws.StateClosed.String())
}
