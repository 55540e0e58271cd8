package router

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/dmitrymomot/wirehttp/core/errpage"
	"github.com/dmitrymomot/wirehttp/core/exception"
	"github.com/dmitrymomot/wirehttp/core/handler"
	"github.com/dmitrymomot/wirehttp/core/interceptor"
	"github.com/dmitrymomot/wirehttp/core/logger"
)

// Controller groups related routes.
type Controller interface {
	RegisterRoutes(r *Router)
}

// Router composes the route table, the interceptor chain and the exception
// dispatcher.
type Router struct {
	table      Table
	chain      interceptor.Chain
	exceptions exception.Dispatcher
	unknown    handler.ErrorHandler
	logger     *slog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the logger used for handler errors and panics.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithUnknownErrorHandler overrides the fallback for errors no exception
// handler claims.
func WithUnknownErrorHandler(fn handler.ErrorHandler) Option {
	return func(r *Router) {
		if fn != nil {
			r.unknown = fn
		}
	}
}

// WithInterceptors registers interceptors at construction time.
func WithInterceptors(items ...interceptor.Interceptor) Option {
	return func(r *Router) {
		r.chain.Add(items...)
	}
}

// New creates an empty router.
func New(opts ...Option) *Router {
	r := &Router{
		unknown: defaultUnknownError,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func defaultUnknownError(c *handler.Context, _ error) {
	errpage.Write(c, http.StatusInternalServerError, errpage.InternalError())
}

// Handle registers h for method on pattern. It panics on a nil handler, as
// that is a programming error caught at startup.
func (r *Router) Handle(method, pattern string, h handler.HandlerFunc) {
	if h == nil {
		panic(fmt.Errorf("%w: %s %s", ErrNilHandler, method, pattern))
	}
	r.table.Add(pattern, method, h)
}

// Get registers h for GET requests matching pattern.
func (r *Router) Get(pattern string, h handler.HandlerFunc) {
	r.Handle(http.MethodGet, pattern, h)
}

// Post registers h for POST requests matching pattern.
func (r *Router) Post(pattern string, h handler.HandlerFunc) {
	r.Handle(http.MethodPost, pattern, h)
}

// Put registers h for PUT requests matching pattern.
func (r *Router) Put(pattern string, h handler.HandlerFunc) {
	r.Handle(http.MethodPut, pattern, h)
}

// Delete registers h for DELETE requests matching pattern.
func (r *Router) Delete(pattern string, h handler.HandlerFunc) {
	r.Handle(http.MethodDelete, pattern, h)
}

// Options registers h for OPTIONS requests matching pattern.
func (r *Router) Options(pattern string, h handler.HandlerFunc) {
	r.Handle(http.MethodOptions, pattern, h)
}

// Patch registers h for PATCH requests matching pattern.
func (r *Router) Patch(pattern string, h handler.HandlerFunc) {
	r.Handle(http.MethodPatch, pattern, h)
}

// Head registers h for HEAD requests matching pattern.
func (r *Router) Head(pattern string, h handler.HandlerFunc) {
	r.Handle(http.MethodHead, pattern, h)
}

// Use appends interceptors to the chain.
func (r *Router) Use(items ...interceptor.Interceptor) { r.chain.Add(items...) }

// Exceptions returns the dispatcher for registering error handlers.
func (r *Router) Exceptions() *exception.Dispatcher { return &r.exceptions }

// SetUnknownErrorHandler replaces the fallback for unclaimed errors.
func (r *Router) SetUnknownErrorHandler(fn handler.ErrorHandler) {
	if fn != nil {
		r.unknown = fn
	}
}

// Register lets each controller add its routes.
func (r *Router) Register(controllers ...Controller) {
	for _, c := range controllers {
		c.RegisterRoutes(r)
	}
}

// Routes lists registered routes in match order.
func (r *Router) Routes() []Route { return r.table.Routes() }

// Lookup exposes the table lookup without invoking anything.
func (r *Router) Lookup(method, path string) Match { return r.table.Lookup(method, path) }

// Dispatch resolves the route for c and invokes its handler. Unmatched
// requests get a 404 or 405 page; those are outcomes, not errors.
func (r *Router) Dispatch(c *handler.Context) error {
	m := r.table.Lookup(c.Method(), c.Path())
	switch m.Outcome {
	case Found:
		c.SetParams(m.Params)
		c.SetRoute(m.Route)
		return m.Handler(c)
	case MethodNotAllowed:
		c.SetRoute(m.Route)
		errpage.Write(c, http.StatusMethodNotAllowed, errpage.MethodNotAllowed(c.Method(), c.Path()))
		c.SetHeader("Allow", strings.Join(m.Allowed, ", "))
	default:
		errpage.Write(c, http.StatusNotFound, errpage.NotFound(c.Path()))
	}
	return nil
}

// Serve runs interceptors, dispatch and error handling for one request.
// Post-hooks run even when a pre-hook stops the request or the handler fails.
func (r *Router) Serve(c *handler.Context) {
	if err := r.run(c); err != nil {
		r.handleError(c, err)
	}
	r.chain.RunPost(c)
}

func (r *Router) run(c *handler.Context) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &panicError{value: v, stack: debug.Stack()}
		}
	}()

	if r.chain.RunPre(c) == interceptor.Stop {
		return nil
	}
	return r.Dispatch(c)
}

func (r *Router) handleError(c *handler.Context, err error) {
	attrs := []any{
		logger.Method(c.Method()),
		logger.Path(c.Path()),
		logger.Route(c.Route()),
		logger.Error(err),
	}
	if pe, ok := err.(PanicError); ok {
		attrs = append(attrs, logger.StackBytes(pe.Stack()))
		r.logger.ErrorContext(c.Context(), "handler panic recovered", attrs...)
	} else {
		r.logger.ErrorContext(c.Context(), "handler error", attrs...)
	}

	if r.exceptions.TryHandle(err, c) {
		return
	}
	r.unknown(c, err)
}
