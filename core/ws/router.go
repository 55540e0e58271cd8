package ws

import (
	"io"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"

	"github.com/dmitrymomot/wirehttp/core/logger"
)

// Handlers are the event callbacks for one WebSocket path. Any may be nil.
type Handlers struct {
	Open    func(c *Context)
	Message func(c *Context)
	Close   func(c *Context)
	Error   func(c *Context)
}

// Router maps exact request paths to Handlers.
type Router struct {
	mu     sync.RWMutex
	routes map[string]Handlers
	logger *slog.Logger
}

// NewRouter creates an empty router. A nil logger discards output.
func NewRouter(l *slog.Logger) *Router {
	if l == nil {
		l = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Router{
		routes: make(map[string]Handlers),
		logger: l,
	}
}

// Handle registers or replaces the handlers for path.
func (r *Router) Handle(path string, h Handlers) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[path] = h
}

// Has reports whether path accepts upgrades.
func (r *Router) Has(path string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.routes[path]
	return ok
}

// Paths returns the registered paths, sorted.
func (r *Router) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.routes))
	for p := range r.routes {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (r *Router) lookup(path string) (Handlers, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.routes[path]
	return h, ok
}

// DispatchOpen runs the open handler registered for path. Unknown paths and nil handlers are a no-op.
func (r *Router) DispatchOpen(path string, c *Context) {
	h, _ := r.lookup(path)
	r.invoke("open", path, h.Open, c)
}

// DispatchMessage runs the message handler registered for path. Unknown paths and nil handlers are a no-op.
func (r *Router) DispatchMessage(path string, c *Context) {
	h, _ := r.lookup(path)
	r.invoke("message", path, h.Message, c)
}

// DispatchClose runs the close handler registered for path. Unknown paths and nil handlers are a no-op.
func (r *Router) DispatchClose(path string, c *Context) {
	h, _ := r.lookup(path)
	r.invoke("close", path, h.Close, c)
}

// DispatchError runs the error handler registered for path. Unknown paths and nil handlers are a no-op.
func (r *Router) DispatchError(path string, c *Context) {
	h, _ := r.lookup(path)
	r.invoke("error", path, h.Error, c)
}

// invoke runs one callback, containing panics to the session that caused them.
func (r *Router) invoke(event, path string, fn func(*Context), c *Context) {
	if fn == nil {
		r.logger.Debug("no websocket handler for event",
			logger.Event(event),
			logger.Path(path),
		)
		return
	}
	defer func() {
		if v := recover(); v != nil {
			r.logger.Error("websocket handler panic recovered",
				logger.Event(event),
				logger.Path(path),
				logger.SessionID(c.ID()),
				slog.Any("panic", v),
				logger.StackBytes(debug.Stack()),
			)
		}
	}()
	fn(c)
}
