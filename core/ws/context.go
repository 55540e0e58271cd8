package ws

import (
	"log/slog"
	"net/http"
	"sync"
	"weak"

	"github.com/dmitrymomot/wirehttp/core/logger"
)

// Context describes one session event. It refers to its session weakly, so
// a context retained by application code does not keep a closed session
// alive.
type Context struct {
	session weak.Pointer[Session]
	id      string
	path    string
	req     *http.Request
	attrs   *attrs
	logger  *slog.Logger

	msg       []byte
	text      bool
	err       error
	closeCode int
}

// ID returns the session id. Empty for handshake failures.
func (c *Context) ID() string { return c.id }

// Path returns the upgrade request path.
func (c *Context) Path() string { return c.path }

// Request returns the upgrade request.
func (c *Context) Request() *http.Request { return c.req }

// Message returns the received payload for message events.
func (c *Context) Message() []byte { return c.msg }

// Text returns the payload as a string.
func (c *Context) Text() string { return string(c.msg) }

// IsText reports whether the message arrived as a text frame.
func (c *Context) IsText() bool { return c.text }

// Err returns the failure cause for error events.
func (c *Context) Err() error { return c.err }

// CloseCode returns the close status for close and error events, 0 if unknown.
func (c *Context) CloseCode() int { return c.closeCode }

// Session returns the live session, if it still exists.
func (c *Context) Session() (*Session, bool) {
	s := c.session.Value()
	return s, s != nil
}

// Send queues msg on the session. It returns false, and logs a warning, when
// the session is gone, closed, or its queue is full.
func (c *Context) Send(msg []byte, isText bool) bool {
	s := c.session.Value()
	if s == nil {
		c.logger.Warn("websocket send on released session", logger.SessionID(c.id), logger.Path(c.path))
		return false
	}
	if err := s.Send(msg, isText); err != nil {
		c.logger.Warn("websocket send dropped",
			logger.SessionID(c.id),
			logger.Path(c.path),
			logger.State(s.State().String()),
			logger.Error(err),
		)
		return false
	}
	return true
}

// SendText queues a text message.
func (c *Context) SendText(msg string) bool { return c.Send([]byte(msg), true) }

// Close closes the session with the given status code and reason.
func (c *Context) Close(code int, reason string) bool {
	s := c.session.Value()
	if s == nil {
		return false
	}
	return s.Close(code, reason) == nil
}

// Set stores a value shared by every event of the session.
func (c *Context) Set(key string, v any) { c.attrs.set(key, v) }

// Get reads a value stored with Set.
func (c *Context) Get(key string) (any, bool) { return c.attrs.get(key) }

// Value reads a typed value stored with Set.
func Value[T any](c *Context, key string) (T, bool) {
	v, _ := c.attrs.get(key)
	t, ok := v.(T)
	return t, ok
}

type attrs struct {
	mu sync.RWMutex
	m  map[string]any
}

func (a *attrs) set(key string, v any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.m == nil {
		a.m = make(map[string]any)
	}
	a.m[key] = v
}

func (a *attrs) get(key string) (any, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	v, ok := a.m[key]
	return v, ok
}
