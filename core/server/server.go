package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/net/netutil"

	"github.com/dmitrymomot/wirehttp/core/conn"
	"github.com/dmitrymomot/wirehttp/core/logger"
	"github.com/dmitrymomot/wirehttp/core/router"
	"github.com/dmitrymomot/wirehttp/core/static"
	"github.com/dmitrymomot/wirehttp/core/ws"
)

// Server accepts connections and serves HTTP/1.1 and WebSocket traffic on
// them. Each connection runs in its own goroutine; the runtime network poller
// multiplexes them over GOMAXPROCS threads.
// Safe for concurrent use.
type Server struct {
	mu        sync.Mutex
	addr      string
	logger    *slog.Logger
	shutdown  time.Duration
	connCfg   conn.Config
	wsCfg     ws.Config
	tlsConfig *tls.Config
	maxConns  int
	reusePort bool
	optErr    error

	router      *router.Router
	static      static.Resolver
	checkOrigin func(r *http.Request) bool
	metrics     Metrics

	wsRouter *ws.Router
	sessions *ws.Registry
	upgrader *ws.Upgrader
	connOpts []conn.Option

	running  bool
	listener net.Listener
	cancel   context.CancelFunc
	conns    map[*conn.Session]struct{}
	wg       sync.WaitGroup
}

// New creates a new Server with the given address and options.
// Defaults to a 30-second graceful shutdown timeout and a no-op logger.
func New(addr string, opts ...Option) *Server {
	s := &Server{
		addr:     addr,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		shutdown: DefaultShutdownTimeout,
		connCfg:  conn.DefaultConfig(),
		wsCfg:    ws.DefaultConfig(),
		conns:    make(map[*conn.Session]struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.router == nil {
		s.router = router.New(router.WithLogger(s.logger))
	}
	s.wsRouter = ws.NewRouter(s.logger)
	s.sessions = ws.NewRegistry()

	wsOpts := []ws.Option{ws.WithConfig(s.wsCfg), ws.WithLogger(s.logger)}
	connOpts := []conn.Option{conn.WithConfig(s.connCfg), conn.WithLogger(s.logger)}
	if s.checkOrigin != nil {
		wsOpts = append(wsOpts, ws.WithCheckOrigin(s.checkOrigin))
	}
	if s.metrics != nil {
		wsOpts = append(wsOpts, ws.WithObserver(s.metrics))
		connOpts = append(connOpts, conn.WithObserver(s.metrics))
	}
	if s.static != nil {
		connOpts = append(connOpts, conn.WithStatic(s.static))
	}
	s.upgrader = ws.NewUpgrader(s.wsRouter, s.sessions, wsOpts...)
	s.connOpts = append(connOpts, conn.WithUpgrader(s.upgrader))

	return s
}

// Router returns the HTTP router. Register routes before Start.
func (s *Server) Router() *router.Router { return s.router }

// WebSocket returns the WebSocket event router.
func (s *Server) WebSocket() *ws.Router { return s.wsRouter }

// Sessions returns the registry of open WebSocket sessions.
func (s *Server) Sessions() *ws.Registry { return s.sessions }

// Send queues msg for the session with the given id.
// Returns false if no such session is open.
func (s *Server) Send(id string, msg []byte, isText bool) bool {
	return s.sessions.Send(id, msg, isText)
}

// SendMany queues msg for every listed session and returns how many accepted it.
func (s *Server) SendMany(ids []string, msg []byte, isText bool) int {
	return s.sessions.SendMany(ids, msg, isText)
}

// Broadcast queues msg for every open session and returns how many accepted it.
func (s *Server) Broadcast(msg []byte, isText bool) int {
	return s.sessions.Broadcast(msg, isText)
}

// Addr returns the listener address, or nil when the server is not running.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Listen opens the configured address with the server's socket options,
// connection cap and TLS settings applied.
func (s *Server) Listen(ctx context.Context) (net.Listener, error) {
	if s.optErr != nil {
		return nil, s.optErr
	}
	lc := net.ListenConfig{Control: listenControl(s.reusePort)}
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	return s.wrapListener(ln), nil
}

func (s *Server) wrapListener(ln net.Listener) net.Listener {
	if s.maxConns > 0 {
		ln = netutil.LimitListener(ln, s.maxConns)
	}
	if s.tlsConfig != nil {
		ln = tls.NewListener(ln, s.tlsConfig)
	}
	return ln
}

// Start listens on the configured address and blocks until the context is
// canceled or the accept loop fails.
// Returns context.Err() when the context is canceled.
// Use Stop() for graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := s.Listen(ctx)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.serve(ctx, ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Serve accepts connections from ln until Stop is called or ln fails.
// ln is used as given: connection caps and TLS from options are not applied.
// Returns nil after Stop.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.optErr != nil {
		return s.optErr
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		_ = ln.Close()
		return ErrServerAlreadyRunning
	}
	// Stop may already have run for this ctx; nobody else would close ln.
	if err := ctx.Err(); err != nil {
		s.mu.Unlock()
		_ = ln.Close()
		return err
	}
	connCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.listener = ln
	s.cancel = cancel
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "starting server", slog.String("addr", ln.Addr().String()))

	var backoff time.Duration
	for {
		c, err := ln.Accept()
		if err != nil {
			if !s.isRunning(ln) {
				return nil
			}
			if isTemporary(err) {
				backoff = nextBackoff(backoff)
				s.logger.WarnContext(ctx, "accept failed, retrying",
					logger.Error(err),
					slog.Duration("backoff", backoff),
				)
				time.Sleep(backoff)
				continue
			}
			s.mu.Lock()
			s.running = false
			s.listener = nil
			s.mu.Unlock()
			cancel()
			return fmt.Errorf("accept: %w", err)
		}
		backoff = 0

		sess := conn.New(c, s.router, s.connOpts...)
		if !s.track(sess) {
			_ = c.Close()
			continue
		}
		go func() {
			defer s.wg.Done()
			defer s.untrack(sess)
			sess.Serve(connCtx)
		}()
	}
}

// Stop stops accepting, closes idle HTTP connections, closes WebSocket
// sessions with 1001 (going away) and waits up to the shutdown timeout for
// the rest. Connections still open after the timeout are closed and
// ErrShutdownTimeout is returned.
// Returns immediately if the server is not running.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	ln := s.listener
	s.listener = nil
	cancel := s.cancel
	s.mu.Unlock()

	s.logger.Info("shutting down server gracefully", logger.Duration(s.shutdown))

	err := ln.Close()
	if err != nil && !errors.Is(err, net.ErrClosed) {
		s.logger.Error("failed to close listener", logger.Error(err))
	}
	cancel()

	s.closeIdle()
	if n := s.sessions.CloseAll(websocket.CloseGoingAway, goingAwayReason); n > 0 {
		s.logger.Info("closed websocket sessions", logger.Count("sessions", n))
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(s.shutdown)
	defer timer.Stop()
	ticker := time.NewTicker(idlePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			s.logger.Info("server shutdown complete")
			return nil
		case <-ticker.C:
			s.closeIdle()
		case <-timer.C:
			n := s.closeAll()
			s.logger.Error("server shutdown timed out", logger.Count("connections", n))
			return ErrShutdownTimeout
		}
	}
}

// Run provides errgroup compatibility for coordinated lifecycle management.
// Returns a function that starts the server, monitors context cancellation,
// and performs graceful shutdown when the context is cancelled.
func (s *Server) Run(ctx context.Context) func() error {
	return func() error {
		errCh := make(chan error, 1)
		go func() {
			errCh <- s.Start(ctx)
		}()

		select {
		case <-ctx.Done():
			if stopErr := s.Stop(); stopErr != nil {
				s.logger.Error("failed to stop server during context cancellation", logger.Error(stopErr))
			}
			<-errCh
			return nil
		case err := <-errCh:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
	}
}

func (s *Server) isRunning(ln net.Listener) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running && s.listener == ln
}

// track registers sess unless the server is already stopping. The wait
// group is incremented under the lock so Stop never waits on a stale count.
func (s *Server) track(sess *conn.Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return false
	}
	s.conns[sess] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(sess *conn.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, sess)
}

func (s *Server) snapshot() []*conn.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*conn.Session, 0, len(s.conns))
	for sess := range s.conns {
		out = append(out, sess)
	}
	return out
}

func (s *Server) closeIdle() {
	for _, sess := range s.snapshot() {
		sess.CloseIfIdle()
	}
}

func (s *Server) closeAll() int {
	conns := s.snapshot()
	for _, sess := range conns {
		_ = sess.Close()
	}
	return len(conns)
}

func isTemporary(err error) bool {
	var te interface{ Temporary() bool }
	return errors.As(err, &te) && te.Temporary()
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return minAcceptBackoff
	}
	return min(d*2, maxAcceptBackoff)
}
