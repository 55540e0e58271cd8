package ws

import (
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dmitrymomot/wirehttp/core/logger"
)

// Upgrader performs handshakes for registered paths and runs the resulting
// sessions.
type Upgrader struct {
	upgrader websocket.Upgrader
	router   *Router
	registry *Registry
	cfg      Config
	observer Observer
	logger   *slog.Logger
	newID    func() string
}

// Option configures an Upgrader.
type Option func(*Upgrader)

// WithConfig sets session and handshake settings.
func WithConfig(cfg Config) Option {
	return func(u *Upgrader) {
		u.cfg = cfg
	}
}

// WithLogger sets the logger for sessions and handshakes.
func WithLogger(l *slog.Logger) Option {
	return func(u *Upgrader) {
		if l != nil {
			u.logger = l
		}
	}
}

// WithObserver receives session notifications, e.g. for metrics.
func WithObserver(o Observer) Option {
	return func(u *Upgrader) {
		if o != nil {
			u.observer = o
		}
	}
}

// WithCheckOrigin overrides origin validation.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(u *Upgrader) {
		u.upgrader.CheckOrigin = fn
	}
}

// WithIDGenerator replaces the UUID session id generator.
func WithIDGenerator(fn func() string) Option {
	return func(u *Upgrader) {
		if fn != nil {
			u.newID = fn
		}
	}
}

// NewUpgrader creates an Upgrader that dispatches to router and registers
// sessions in registry.
func NewUpgrader(router *Router, registry *Registry, opts ...Option) *Upgrader {
	u := &Upgrader{
		router:   router,
		registry: registry,
		cfg:      DefaultConfig(),
		observer: nopObserver{},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(u)
	}
	u.cfg = u.cfg.withDefaults()

	u.upgrader.ReadBufferSize = u.cfg.ReadBufferSize
	// A full buffer is flushed as one frame, so each FragmentSize chunk
	// written through NextWriter leaves as exactly one frame.
	u.upgrader.WriteBufferSize = u.cfg.FragmentSize
	u.upgrader.HandshakeTimeout = u.cfg.HandshakeTimeout
	if u.upgrader.CheckOrigin == nil && len(u.cfg.AllowedOrigins) > 0 {
		u.upgrader.CheckOrigin = originChecker(u.cfg.AllowedOrigins)
	}
	return u
}

// Router returns the event router.
func (u *Upgrader) Router() *Router { return u.router }

// Registry returns the session registry.
func (u *Upgrader) Registry() *Registry { return u.registry }

// Config returns the effective configuration.
func (u *Upgrader) Config() Config { return u.cfg }

// Serve completes the handshake on w and runs the session until it ends.
// w must support hijacking. On handshake failure the upgrader has already
// written an HTTP error to w, the path's error handler is invoked, and the
// error is returned.
func (u *Upgrader) Serve(w http.ResponseWriter, r *http.Request) error {
	if !websocket.IsWebSocketUpgrade(r) {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return ErrNotUpgrade
	}
	if !u.router.Has(r.URL.Path) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return ErrPathNotHandled
	}

	conn, err := u.upgrader.Upgrade(w, r, nil)
	if err != nil {
		u.logger.Warn("websocket handshake failed",
			logger.Path(r.URL.Path),
			logger.RemoteAddr(r.RemoteAddr),
			logger.Error(err),
		)
		u.router.DispatchError(r.URL.Path, &Context{
			path:   r.URL.Path,
			req:    r,
			err:    err,
			attrs:  &attrs{},
			logger: u.logger,
		})
		return err
	}

	u.Attach(conn, r).Run()
	return nil
}

// Attach wraps an established transport in a new session without running it.
func (u *Upgrader) Attach(conn Transport, r *http.Request) *Session {
	return &Session{
		id:       u.newID(),
		path:     r.URL.Path,
		req:      r,
		conn:     conn,
		cfg:      u.cfg,
		router:   u.router,
		registry: u.registry,
		observer: u.observer,
		logger:   u.logger,
		attrs:    &attrs{},
		done:     make(chan struct{}),
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		for _, a := range allowed {
			if strings.EqualFold(a, origin) || strings.EqualFold(a, u.Host) {
				return true
			}
		}
		return false
	}
}
