// Package interceptor runs ordered pre/post hooks around route dispatch.
//
// Pre-hooks run in registration order and may stop the request; when one
// returns Stop the remaining pre-hooks and the route handler are skipped.
// Post-hooks always run, in reverse registration order, so an interceptor
// registered first sees the final response last.
package interceptor

import (
	"sync"

	"github.com/dmitrymomot/wirehttp/core/handler"
)

// Result is the outcome of a pre-hook.
type Result int

const (
	// Continue lets the request proceed.
	Continue Result = iota
	// Stop ends pre-processing. The response on the context is sent as-is.
	Stop
)

func (r Result) String() string {
	if r == Stop {
		return "stop"
	}
	return "continue"
}

// Interceptor observes or short-circuits every request.
type Interceptor interface {
	Before(c *handler.Context) Result
	After(c *handler.Context)
}

// Funcs adapts plain functions to Interceptor. Either field may be nil.
type Funcs struct {
	Pre  func(c *handler.Context) Result
	Post func(c *handler.Context)
}

func (f Funcs) Before(c *handler.Context) Result {
	if f.Pre == nil {
		return Continue
	}
	return f.Pre(c)
}

func (f Funcs) After(c *handler.Context) {
	if f.Post != nil {
		f.Post(c)
	}
}

// Chain is an ordered list of interceptors. Registration normally happens
// before the server starts; Add is still safe to call concurrently with runs.
type Chain struct {
	mu    sync.RWMutex
	items []Interceptor
}

// Add appends interceptors. Nil values are ignored.
func (ch *Chain) Add(items ...Interceptor) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	for _, it := range items {
		if it != nil {
			ch.items = append(ch.items, it)
		}
	}
}

// Len returns the number of registered interceptors.
func (ch *Chain) Len() int {
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	return len(ch.items)
}

func (ch *Chain) snapshot() []Interceptor {
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	return ch.items
}

// RunPre invokes pre-hooks in order, stopping at the first Stop.
func (ch *Chain) RunPre(c *handler.Context) Result {
	for _, it := range ch.snapshot() {
		if it.Before(c) == Stop {
			return Stop
		}
	}
	return Continue
}

// RunPost invokes every post-hook in reverse order.
func (ch *Chain) RunPost(c *handler.Context) {
	items := ch.snapshot()
	for i := len(items) - 1; i >= 0; i-- {
		items[i].After(c)
	}
}
