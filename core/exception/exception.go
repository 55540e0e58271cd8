// Package exception maps errors returned by route handlers to responses.
//
// A Dispatcher holds an ordered list of handlers. The first handler that
// claims an error writes the response; if none does, the caller falls back to
// a generic 500.
//
//	d := &exception.Dispatcher{}
//	exception.On(d, func(err *ValidationError, c *handler.Context) {
//		_ = c.JSON(http.StatusUnprocessableEntity, err.Fields)
//	})
//	exception.OnTarget(d, sql.ErrNoRows, func(_ error, c *handler.Context) {
//		c.String(http.StatusNotFound, "not found")
//	})
package exception

import (
	"errors"
	"sync"

	"github.com/dmitrymomot/wirehttp/core/handler"
)

// Handler claims an error by returning true after writing a response.
type Handler interface {
	TryHandle(err error, c *handler.Context) bool
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(err error, c *handler.Context) bool

func (f HandlerFunc) TryHandle(err error, c *handler.Context) bool { return f(err, c) }

// Dispatcher tries handlers in registration order.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers []Handler
}

// Add registers handlers.
func (d *Dispatcher) Add(hs ...Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, h := range hs {
		if h != nil {
			d.handlers = append(d.handlers, h)
		}
	}
}

// Len returns the number of registered handlers.
func (d *Dispatcher) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.handlers)
}

// TryHandle offers err to each handler and reports whether one claimed it.
func (d *Dispatcher) TryHandle(err error, c *handler.Context) bool {
	if err == nil {
		return false
	}
	d.mu.RLock()
	hs := d.handlers
	d.mu.RUnlock()

	for _, h := range hs {
		if h.TryHandle(err, c) {
			return true
		}
	}
	return false
}

// On registers fn for errors whose chain contains an E.
func On[E error](d *Dispatcher, fn func(err E, c *handler.Context)) {
	d.Add(HandlerFunc(func(err error, c *handler.Context) bool {
		var target E
		if !errors.As(err, &target) {
			return false
		}
		fn(target, c)
		return true
	}))
}

// OnTarget registers fn for errors matching target via errors.Is.
func OnTarget(d *Dispatcher, target error, fn func(err error, c *handler.Context)) {
	d.Add(HandlerFunc(func(err error, c *handler.Context) bool {
		if !errors.Is(err, target) {
			return false
		}
		fn(err, c)
		return true
	}))
}

// HTTPErrors claims *handler.HTTPError values, writing the status code and
// the public message. The wrapped cause is never sent.
func HTTPErrors() Handler {
	return HandlerFunc(func(err error, c *handler.Context) bool {
		var he *handler.HTTPError
		if !errors.As(err, &he) {
			return false
		}
		c.Reset()
		c.String(he.Code, he.Message)
		return true
	})
}
