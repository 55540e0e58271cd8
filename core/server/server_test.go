package server_test

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/wirehttp/core/handler"
	"github.com/dmitrymomot/wirehttp/core/server"
	"github.com/dmitrymomot/wirehttp/core/ws"
)

// serve runs srv on a loopback listener and returns its host:port.
func serve(t *testing.T, srv *server.Server) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(context.Background(), ln) }()
	require.Eventually(t, func() bool { return srv.Addr() != nil }, time.Second, time.Millisecond)

	t.Cleanup(func() {
		_ = srv.Stop()
		<-errCh
	})
	return ln.Addr().String()
}

func dialWS(t *testing.T, addr, path string) *websocket.Conn {
	t.Helper()
	c, _, err := websocket.DefaultDialer.Dial("ws://"+addr+path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func readMessage(t *testing.T, c *websocket.Conn) (int, []byte) {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	mt, data, err := c.ReadMessage()
	require.NoError(t, err)
	return mt, data
}

func TestServerHTTP(t *testing.T) {
	t.Parallel()

	srv := server.New("")
	srv.Router().Get("/users/:id", func(c *handler.Context) error {
		id, _ := c.Param("id")
		c.String(http.StatusOK, "user "+id)
		return nil
	})
	addr := serve(t, srv)

	client := &http.Client{Timeout: 2 * time.Second}
	for range 2 {
		resp, err := client.Get("http://" + addr + "/users/42")
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "user 42", string(body))
	}

	resp, err := client.Get("http://" + addr + "/missing")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServerWebSocketPush(t *testing.T) {
	t.Parallel()

	srv := server.New("")
	opened := make(chan string, 2)
	srv.WebSocket().Handle("/chat", ws.Handlers{
		Open:    func(c *ws.Context) { opened <- c.ID() },
		Message: func(c *ws.Context) { c.Send(c.Message(), c.IsText()) },
	})
	addr := serve(t, srv)

	first := dialWS(t, addr, "/chat")
	firstID := <-opened
	second := dialWS(t, addr, "/chat")
	secondID := <-opened
	require.Eventually(t, func() bool { return srv.Sessions().Len() == 2 }, time.Second, time.Millisecond)

	require.NoError(t, first.WriteMessage(websocket.TextMessage, []byte("echo")))
	mt, data := readMessage(t, first)
	assert.Equal(t, websocket.TextMessage, mt)
	assert.Equal(t, "echo", string(data))

	assert.True(t, srv.Send(secondID, []byte("only you"), true))
	_, data = readMessage(t, second)
	assert.Equal(t, "only you", string(data))
	assert.False(t, srv.Send("unknown", []byte("x"), true))

	assert.Equal(t, 1, srv.SendMany([]string{firstID, "unknown"}, []byte{1, 2, 3}, false))
	mt, data = readMessage(t, first)
	assert.Equal(t, websocket.BinaryMessage, mt)
	assert.Equal(t, []byte{1, 2, 3}, data)

	assert.Equal(t, 2, srv.Broadcast([]byte("all"), true))
	for _, c := range []*websocket.Conn{first, second} {
		_, data = readMessage(t, c)
		assert.Equal(t, "all", string(data))
	}
}

func TestServerWebSocketLargeMessage(t *testing.T) {
	t.Parallel()

	cfg := ws.DefaultConfig()
	cfg.FragmentSize = 1024
	cfg.FragmentThreshold = 2048
	srv := server.New("", server.WithWebSocketConfig(cfg))
	srv.WebSocket().Handle("/big", ws.Handlers{
		Open: func(c *ws.Context) {
			c.Send(bytes.Repeat([]byte("x"), 10_000), false)
		},
	})
	addr := serve(t, srv)

	c := dialWS(t, addr, "/big")
	mt, data := readMessage(t, c)
	assert.Equal(t, websocket.BinaryMessage, mt)
	assert.Len(t, data, 10_000)
}

func TestServerStopClosesWebSockets(t *testing.T) {
	t.Parallel()

	srv := server.New("")
	srv.WebSocket().Handle("/live", ws.Handlers{})
	addr := serve(t, srv)

	c := dialWS(t, addr, "/live")
	require.Eventually(t, func() bool { return srv.Sessions().Len() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, srv.Stop())
	assert.Nil(t, srv.Addr())
	assert.Equal(t, 0, srv.Sessions().Len())

	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := c.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)

	_, err = net.DialTimeout("tcp", addr, 200*time.Millisecond)
	assert.Error(t, err)
	assert.NoError(t, srv.Stop())
}

func TestServerStopClosesIdleKeepAlive(t *testing.T) {
	t.Parallel()

	srv := server.New("")
	srv.Router().Get("/", func(c *handler.Context) error {
		c.String(http.StatusOK, "ok")
		return nil
	})
	addr := serve(t, srv)

	c, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer c.Close()
	_, err = io.WriteString(c, "GET / HTTP/1.1\r\nHost: x\r\n\r\n")
	require.NoError(t, err)

	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 512)
	n, err := c.Read(buf)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(buf[:n]), "HTTP/1.1 200"))

	require.NoError(t, srv.Stop())
	_, err = io.ReadAll(c)
	assert.NoError(t, err)
}

func TestServerStopTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	entered := make(chan struct{})
	srv := server.New("", server.WithShutdownTimeout(50*time.Millisecond))
	srv.Router().Get("/slow", func(c *handler.Context) error {
		close(entered)
		<-release
		return nil
	})
	addr := serve(t, srv)
	defer close(release)

	c, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer c.Close()
	_, err = io.WriteString(c, "GET /slow HTTP/1.1\r\nHost: x\r\n\r\n")
	require.NoError(t, err)
	<-entered

	assert.ErrorIs(t, srv.Stop(), server.ErrShutdownTimeout)
}

func TestServerServeTwice(t *testing.T) {
	t.Parallel()

	srv := server.New("")
	serve(t, srv)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	assert.ErrorIs(t, srv.Serve(context.Background(), ln), server.ErrServerAlreadyRunning)
}

func TestServerRun(t *testing.T) {
	t.Parallel()

	srv := server.New("127.0.0.1:0", server.WithMaxConnections(4), server.WithReusePort(true))
	srv.Router().Get("/ping", func(c *handler.Context) error {
		c.String(http.StatusOK, "pong")
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(ctx)() }()
	require.Eventually(t, func() bool { return srv.Addr() != nil }, time.Second, time.Millisecond)

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + srv.Addr().String() + "/ping")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "pong", string(body))
	client.CloseIdleConnections()

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return")
	}
	assert.Nil(t, srv.Addr())
}

func TestServerServeCanceledContext(t *testing.T) {
	t.Parallel()

	srv := server.New("")
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, srv.Serve(ctx, ln), context.Canceled)
	assert.Nil(t, srv.Addr())

	_, err = ln.Accept()
	assert.ErrorIs(t, err, net.ErrClosed)
}

func TestServerRunCanceledImmediately(t *testing.T) {
	t.Parallel()

	srv := server.New("127.0.0.1:0")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx)() }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return")
	}

	// the server is reusable: no abandoned accept loop holds it
	addr := serve(t, srv)
	assert.NotEmpty(t, addr)
}

func TestServerInvalidAutoCert(t *testing.T) {
	t.Parallel()

	srv := server.New("127.0.0.1:0", server.WithAutoCert(server.AutoCertConfig{}))
	assert.ErrorIs(t, srv.Start(context.Background()), server.ErrNoAutoCertDomain)
}
