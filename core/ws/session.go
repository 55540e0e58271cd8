package ws

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
	"weak"

	"github.com/gorilla/websocket"

	"github.com/dmitrymomot/wirehttp/core/logger"
)

// Transport is the framed connection a session runs on. *websocket.Conn
// implements it. Data writes are never issued concurrently; WriteControl may
// run alongside them.
type Transport interface {
	ReadMessage() (messageType int, p []byte, err error)
	NextWriter(messageType int) (io.WriteCloser, error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(appData string) error)
	Close() error
}

// State is the lifecycle stage of a session.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type outbound struct {
	data []byte
	text bool
}

// Session is one upgraded WebSocket connection.
type Session struct {
	id       string
	path     string
	req      *http.Request
	conn     Transport
	cfg      Config
	router   *Router
	registry *Registry
	observer Observer
	logger   *slog.Logger
	attrs    *attrs

	state atomic.Int32

	mu      sync.Mutex
	queue   []outbound
	writing bool

	closeOnce sync.Once
	closeCode atomic.Int32
	done      chan struct{}
}

// ID returns the session id assigned at handshake.
func (s *Session) ID() string { return s.id }

// Path returns the request path the session was opened on.
func (s *Session) Path() string { return s.path }

// Request returns the upgrade request.
func (s *Session) Request() *http.Request { return s.req }

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// Done is closed once the session starts shutting down.
func (s *Session) Done() <-chan struct{} { return s.done }

// Run opens the session and serves it until the connection ends. It blocks on
// the read loop and returns after the close or error event was dispatched.
func (s *Session) Run() {
	s.conn.SetReadLimit(s.cfg.ReadLimit)
	if s.cfg.PongWait > 0 {
		_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
		s.conn.SetPongHandler(func(string) error {
			return s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
		})
	}

	s.state.Store(int32(StateOpen))
	s.registry.Add(s)
	s.observer.SessionOpened(s.path)
	s.logger.Debug("websocket session opened", logger.SessionID(s.id), logger.Path(s.path))

	s.router.DispatchOpen(s.path, s.newContext())

	if s.cfg.PongWait > 0 && s.cfg.PingInterval > 0 {
		go s.pingLoop()
	}
	s.readLoop()
}

func (s *Session) readLoop() {
	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			s.shutdown(err)
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		s.observer.MessageReceived(s.path, len(data))
		c := s.newContext()
		c.msg = data
		c.text = mt == websocket.TextMessage
		s.router.DispatchMessage(s.path, c)
	}
}

func (s *Session) pingLoop() {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, s.writeDeadline()); err != nil {
				s.shutdown(err)
				return
			}
		}
	}
}

// Send queues msg for delivery and returns immediately. Messages are written
// in the order they were queued.
func (s *Session) Send(msg []byte, isText bool) error {
	if s.State() != StateOpen {
		return ErrSessionClosed
	}

	s.mu.Lock()
	if len(s.queue) >= s.cfg.MaxQueuedMessages {
		s.mu.Unlock()
		return ErrQueueFull
	}
	s.queue = append(s.queue, outbound{data: msg, text: isText})
	start := !s.writing
	s.writing = true
	s.mu.Unlock()

	if start {
		go s.drain()
	}
	return nil
}

// drain writes queued messages until the queue is empty. Only one drain runs
// at a time, guarded by the writing flag.
func (s *Session) drain() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 || s.State() != StateOpen {
			s.queue = nil
			s.writing = false
			s.mu.Unlock()
			return
		}
		m := s.queue[0]
		s.queue[0] = outbound{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		if err := s.write(m); err != nil {
			s.mu.Lock()
			s.queue = nil
			s.writing = false
			s.mu.Unlock()
			s.shutdown(err)
			return
		}
		s.observer.MessageSent(s.path, len(m.data))
	}
}

func (s *Session) write(m outbound) error {
	mt := websocket.BinaryMessage
	if m.text {
		mt = websocket.TextMessage
	}
	if s.cfg.WriteTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	}

	if len(m.data) < s.cfg.FragmentThreshold {
		return s.conn.WriteMessage(mt, m.data)
	}

	w, err := s.conn.NextWriter(mt)
	if err != nil {
		return err
	}
	for off := 0; off < len(m.data); off += s.cfg.FragmentSize {
		end := min(off+s.cfg.FragmentSize, len(m.data))
		if _, err := w.Write(m.data[off:end]); err != nil {
			_ = w.Close()
			return err
		}
	}
	return w.Close()
}

func (s *Session) writeDeadline() time.Time {
	if s.cfg.WriteTimeout > 0 {
		return time.Now().Add(s.cfg.WriteTimeout)
	}
	return time.Now().Add(10 * time.Second)
}

// Close sends a close frame with code and reason and shuts the session down.
func (s *Session) Close(code int, reason string) error {
	if s.State() != StateOpen {
		return ErrSessionClosed
	}
	s.closeCode.Store(int32(code))
	err := s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), s.writeDeadline())
	s.shutdown(nil)
	return err
}

// shutdown moves the session to Closed exactly once: it leaves the registry,
// releases the transport, and dispatches either close or error.
func (s *Session) shutdown(cause error) {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosing))
		s.registry.remove(s)
		close(s.done)
		_ = s.conn.Close()

		s.mu.Lock()
		s.queue = nil
		s.mu.Unlock()

		normal := isNormalClose(cause)
		c := s.newContext()
		c.closeCode = s.causeCode(cause)
		s.observer.SessionClosed(s.path, normal)

		if normal {
			s.logger.Debug("websocket session closed",
				logger.SessionID(s.id),
				logger.Path(s.path),
				logger.CloseCode(c.closeCode),
			)
			s.router.DispatchClose(s.path, c)
		} else {
			c.err = cause
			s.logger.Warn("websocket session failed",
				logger.SessionID(s.id),
				logger.Path(s.path),
				logger.Error(cause),
			)
			s.router.DispatchError(s.path, c)
		}

		s.state.Store(int32(StateClosed))
	})
}

func (s *Session) causeCode(cause error) int {
	var ce *websocket.CloseError
	if errors.As(cause, &ce) {
		return ce.Code
	}
	if code := s.closeCode.Load(); code != 0 {
		return int(code)
	}
	return websocket.CloseNoStatusReceived
}

func (s *Session) newContext() *Context {
	return &Context{
		session: weak.Make(s),
		id:      s.id,
		path:    s.path,
		req:     s.req,
		attrs:   s.attrs,
		logger:  s.logger,
	}
}

// isNormalClose reports whether cause ends a session without an error event:
// a local close, a clean close handshake, or the peer dropping the connection.
func isNormalClose(cause error) bool {
	if cause == nil || errors.Is(cause, net.ErrClosed) || errors.Is(cause, io.EOF) {
		return true
	}
	var ce *websocket.CloseError
	if errors.As(cause, &ce) {
		switch ce.Code {
		case websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived:
			return true
		case websocket.CloseAbnormalClosure:
			return ce.Text == io.ErrUnexpectedEOF.Error()
		}
	}
	return false
}
