package conn

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"runtime/debug"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/a-h/templ"
	"github.com/gorilla/websocket"

	"github.com/dmitrymomot/wirehttp/core/errpage"
	"github.com/dmitrymomot/wirehttp/core/handler"
	"github.com/dmitrymomot/wirehttp/core/logger"
	"github.com/dmitrymomot/wirehttp/core/static"
	"github.com/dmitrymomot/wirehttp/core/ws"
)

const noLimit int64 = 1<<63 - 1

// Dispatcher runs the full dispatch pipeline for a request. *router.Router
// implements it.
type Dispatcher interface {
	Serve(c *handler.Context)
}

// Observer is notified after every response.
type Observer interface {
	RequestDone(method string, status int, d time.Duration)
}

type nopObserver struct{}

func (nopObserver) RequestDone(string, int, time.Duration) {}

// Session serves one client connection.
type Session struct {
	conn     net.Conn
	lr       *io.LimitedReader
	br       *bufio.Reader
	bw       *bufio.Writer
	tlsState *tls.ConnectionState

	cfg      Config
	router   Dispatcher
	static   static.Resolver
	upgrader *ws.Upgrader
	observer Observer
	logger   *slog.Logger

	state atomic.Int32
}

// Option configures a Session.
type Option func(*Session)

// WithConfig sets timeouts and size limits.
func WithConfig(cfg Config) Option {
	return func(s *Session) { s.cfg = cfg }
}

// WithStatic lets r answer GET and HEAD requests before routing.
func WithStatic(r static.Resolver) Option {
	return func(s *Session) { s.static = r }
}

// WithUpgrader enables WebSocket upgrades for the upgrader's paths.
func WithUpgrader(u *ws.Upgrader) Option {
	return func(s *Session) { s.upgrader = u }
}

// WithObserver receives per-request notifications.
func WithObserver(o Observer) Option {
	return func(s *Session) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a session for c that dispatches to router.
func New(c net.Conn, router Dispatcher, opts ...Option) *Session {
	s := &Session{
		conn:     c,
		cfg:      DefaultConfig(),
		router:   router,
		observer: nopObserver{},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cfg = s.cfg.withDefaults()
	s.logger = s.logger.With(logger.RemoteAddr(c.RemoteAddr().String()))

	s.lr = &io.LimitedReader{R: c, N: noLimit}
	s.br = bufio.NewReaderSize(s.lr, 4096)
	s.bw = bufio.NewWriterSize(c, 4096)
	return s
}

// State returns the current state.
func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) setState(st State) { s.state.Store(int32(st)) }

// CloseIfIdle closes the connection if it is waiting for a request.
func (s *Session) CloseIfIdle() bool {
	if s.state.CompareAndSwap(int32(StateIdle), int32(StateClosing)) {
		_ = s.conn.Close()
		return true
	}
	return false
}

// Close closes the underlying connection regardless of state.
func (s *Session) Close() error {
	return s.conn.Close()
}

// Serve runs the request loop until the connection ends or ctx is done.
func (s *Session) Serve(ctx context.Context) {
	defer func() {
		_ = s.conn.Close()
		s.setState(StateClosed)
	}()

	if tc, ok := s.conn.(*tls.Conn); ok {
		if s.cfg.ReadTimeout > 0 {
			_ = tc.SetDeadline(time.Now().Add(s.cfg.ReadTimeout))
		}
		if err := tc.HandshakeContext(ctx); err != nil {
			s.logger.Debug("tls handshake failed", logger.Error(err))
			return
		}
		state := tc.ConnectionState()
		s.tlsState = &state
	}

	for {
		s.setState(StateIdle)
		if ctx.Err() != nil || !s.awaitRequest() {
			return
		}
		if !s.serveRequest(ctx) {
			return
		}
	}
}

// awaitRequest blocks until the first byte of a request arrives or the idle
// timeout expires.
func (s *Session) awaitRequest() bool {
	if s.cfg.IdleTimeout > 0 {
		_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
	} else {
		_ = s.conn.SetReadDeadline(time.Time{})
	}
	if _, err := s.br.Peek(1); err != nil {
		if !isQuiet(err) {
			s.logger.Debug("connection read failed", logger.Error(err))
		}
		return false
	}
	return s.state.CompareAndSwap(int32(StateIdle), int32(StateReading))
}

// serveRequest handles one request and reports whether to keep reading.
func (s *Session) serveRequest(ctx context.Context) bool {
	start := time.Now()
	if s.cfg.ReadTimeout > 0 {
		_ = s.conn.SetReadDeadline(start.Add(s.cfg.ReadTimeout))
	} else {
		_ = s.conn.SetReadDeadline(time.Time{})
	}

	s.lr.N = int64(s.cfg.MaxHeaderBytes) + int64(s.br.Size())
	req, err := http.ReadRequest(s.br)
	exceeded := s.lr.N <= 0
	s.lr.N = noLimit
	if err != nil {
		s.rejectRead(err, exceeded)
		return false
	}
	if req.ProtoMajor != 1 {
		s.writeError(http.StatusHTTPVersionNotSupported, errpage.Status(http.StatusHTTPVersionNotSupported))
		return false
	}

	req.RemoteAddr = s.conn.RemoteAddr().String()
	req.TLS = s.tlsState
	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	req = req.WithContext(reqCtx)

	if websocket.IsWebSocketUpgrade(req) {
		s.upgrade(req, start)
		return false
	}

	if status := s.readBody(req); status != 0 {
		s.observer.RequestDone(req.Method, status, time.Since(start))
		return false
	}

	c := handler.NewContext(req)
	s.dispatch(c)

	s.setState(StateWriting)
	if s.cfg.WriteTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	}
	keep := c.KeepAlive() && !req.Close && ctx.Err() == nil
	keep, err = s.writeResponse(req, c, keep)
	s.observer.RequestDone(req.Method, c.Status(), time.Since(start))
	if err != nil {
		s.logger.Debug("response write failed",
			logger.Method(req.Method),
			logger.Path(req.URL.Path),
			logger.Error(err),
		)
		return false
	}
	if !keep {
		s.closeWrite()
		return false
	}
	return true
}

func (s *Session) dispatch(c *handler.Context) {
	defer func() {
		if v := recover(); v != nil {
			s.logger.ErrorContext(c.Context(), "request panic recovered",
				logger.Method(c.Method()),
				logger.Path(c.Path()),
				slog.Any("panic", v),
				logger.StackBytes(debug.Stack()),
			)
			errpage.Write(c, http.StatusInternalServerError, errpage.InternalError())
		}
	}()

	if s.static != nil && (c.Method() == http.MethodGet || c.Method() == http.MethodHead) {
		s.setState(StateStatic)
		if s.static.Resolve(c) {
			return
		}
	}
	s.setState(StateDispatching)
	s.router.Serve(c)
}

func (s *Session) rejectRead(err error, headerTooLarge bool) {
	switch {
	case headerTooLarge:
		s.writeError(http.StatusRequestHeaderFieldsTooLarge, errpage.Status(http.StatusRequestHeaderFieldsTooLarge))
	case isQuiet(err), errors.Is(err, io.ErrUnexpectedEOF):
		s.logger.Debug("connection closed mid-request", logger.Error(err))
	default:
		s.logger.Debug("malformed request", logger.Error(err))
		s.writeError(http.StatusBadRequest, errpage.BadRequest())
	}
}

// readBody buffers the request body, enforcing MaxBodyBytes and answering
// Expect: 100-continue first. A non-zero result is the status of the error
// response already sent; the connection must be closed.
func (s *Session) readBody(req *http.Request) int {
	if req.Body == nil || req.Body == http.NoBody {
		return 0
	}
	if req.ContentLength > s.cfg.MaxBodyBytes {
		s.writeError(http.StatusRequestEntityTooLarge, errpage.PayloadTooLarge())
		return http.StatusRequestEntityTooLarge
	}

	if expect := req.Header.Get("Expect"); expect != "" {
		if !strings.EqualFold(expect, "100-continue") {
			s.writeError(http.StatusExpectationFailed, errpage.Status(http.StatusExpectationFailed))
			return http.StatusExpectationFailed
		}
		if req.ProtoAtLeast(1, 1) {
			_, _ = s.bw.WriteString("HTTP/1.1 100 Continue\r\n\r\n")
			if err := s.bw.Flush(); err != nil {
				return http.StatusContinue
			}
		}
		req.Header.Del("Expect")
	}

	body, err := io.ReadAll(io.LimitReader(req.Body, s.cfg.MaxBodyBytes+1))
	_ = req.Body.Close()
	if err != nil {
		s.logger.Debug("request body read failed", logger.Error(err))
		s.writeError(http.StatusBadRequest, errpage.BadRequest())
		return http.StatusBadRequest
	}
	if int64(len(body)) > s.cfg.MaxBodyBytes {
		s.writeError(http.StatusRequestEntityTooLarge, errpage.PayloadTooLarge())
		return http.StatusRequestEntityTooLarge
	}
	req.Body = io.NopCloser(bytes.NewReader(body))
	return 0
}

// writeResponse serializes the response on c. It returns whether the
// connection may be reused, which a streamed HTTP/1.0 response forbids.
func (s *Session) writeResponse(req *http.Request, c *handler.Context, keep bool) (bool, error) {
	status := c.Status()
	if status < 100 || status > 999 {
		status = http.StatusInternalServerError
	}

	h := c.ResponseHeader().Clone()
	h.Del("Content-Length")
	h.Del("Transfer-Encoding")
	h.Del("Connection")
	if h.Get("Date") == "" {
		h.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	}

	http10 := !req.ProtoAtLeast(1, 1)
	bodyless := req.Method == http.MethodHead || !bodyAllowed(status)

	stream := c.Stream()
	reader, size := c.BodyReader()
	if closer, ok := reader.(io.Closer); ok {
		defer closer.Close()
	}
	if stream == nil && reader != nil && size < 0 {
		stream = copyStream(reader)
	}

	if stream != nil {
		if http10 {
			keep = false
		} else if !bodyless {
			h.Set("Transfer-Encoding", "chunked")
		}
		setConnection(h, keep, http10)
		s.writeHead(status, h)
		if bodyless {
			return keep, s.bw.Flush()
		}
		return keep, s.writeStream(c, stream, !http10)
	}

	var body []byte
	n := size
	if reader == nil {
		body = c.ResponseBody()
		n = int64(len(body))
	}
	if bodyAllowed(status) {
		h.Set("Content-Length", strconv.FormatInt(n, 10))
	}
	setConnection(h, keep, http10)
	s.writeHead(status, h)

	if !bodyless {
		if reader != nil {
			if _, err := io.CopyN(s.bw, reader, n); err != nil {
				return false, err
			}
		} else if _, err := s.bw.Write(body); err != nil {
			return false, err
		}
	}
	return keep, s.bw.Flush()
}

func (s *Session) writeStream(c *handler.Context, fn handler.StreamFunc, chunked bool) error {
	if err := s.bw.Flush(); err != nil {
		return err
	}

	var out io.Writer = s.bw
	var cw io.WriteCloser
	if chunked {
		cw = httputil.NewChunkedWriter(s.bw)
		out = cw
	}

	var failed error
	write := func(chunk []byte) bool {
		if failed != nil {
			return false
		}
		if len(chunk) == 0 {
			return true
		}
		if s.cfg.WriteTimeout > 0 {
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
		}
		if _, err := out.Write(chunk); err != nil {
			failed = err
			return false
		}
		if err := s.bw.Flush(); err != nil {
			failed = err
			return false
		}
		return true
	}

	func() {
		defer func() {
			if v := recover(); v != nil {
				s.logger.ErrorContext(c.Context(), "stream panic recovered",
					logger.Path(c.Path()),
					slog.Any("panic", v),
					logger.StackBytes(debug.Stack()),
				)
				failed = fmt.Errorf("stream panic: %v", v)
			}
		}()
		fn(c, write)
	}()

	if failed != nil {
		return failed
	}
	if chunked {
		if err := cw.Close(); err != nil {
			return err
		}
		if _, err := s.bw.WriteString("\r\n"); err != nil {
			return err
		}
	}
	return s.bw.Flush()
}

func (s *Session) writeHead(status int, h http.Header) {
	text := http.StatusText(status)
	if text == "" {
		text = "status code " + strconv.Itoa(status)
	}
	_, _ = fmt.Fprintf(s.bw, "HTTP/1.1 %03d %s\r\n", status, text)
	_ = h.Write(s.bw)
	_, _ = s.bw.WriteString("\r\n")
}

// writeError answers with an HTML error page and closes the connection.
func (s *Session) writeError(status int, comp templ.Component) {
	var body bytes.Buffer
	_ = comp.Render(context.Background(), &body)

	h := make(http.Header)
	h.Set("Content-Type", "text/html; charset=utf-8")
	s.writeClosing(status, h, body.Bytes())
}

func (s *Session) writeClosing(status int, h http.Header, body []byte) {
	s.setState(StateWriting)
	if s.cfg.WriteTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	}
	h.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	h.Set("Content-Length", strconv.Itoa(len(body)))
	h.Set("Connection", "close")
	if h.Get("Server") == "" {
		h.Set("Server", handler.ServerName)
	}
	s.writeHead(status, h)
	_, _ = s.bw.Write(body)
	if err := s.bw.Flush(); err != nil {
		s.logger.Debug("error response write failed", logger.Error(err))
	}
	s.closeWrite()
}

// closeWrite half-closes the connection and drains what the peer still
// sends for a short while so the response is not lost to a reset.
func (s *Session) closeWrite() {
	s.setState(StateClosing)
	_ = s.bw.Flush()
	if cw, ok := s.conn.(interface{ CloseWrite() error }); ok {
		if cw.CloseWrite() == nil {
			_ = s.conn.SetReadDeadline(time.Now().Add(lingerTimeout))
			_, _ = io.CopyN(io.Discard, s.conn, lingerBytes)
		}
	}
}

func setConnection(h http.Header, keep, http10 bool) {
	switch {
	case !keep:
		h.Set("Connection", "close")
	case http10:
		h.Set("Connection", "keep-alive")
	}
}

func bodyAllowed(status int) bool {
	switch {
	case status >= 100 && status <= 199:
		return false
	case status == http.StatusNoContent, status == http.StatusNotModified:
		return false
	}
	return true
}

func copyStream(r io.Reader) handler.StreamFunc {
	return func(_ *handler.Context, write handler.WriteFunc) {
		buf := make([]byte, 32<<10)
		for {
			n, err := r.Read(buf)
			if n > 0 && !write(buf[:n]) {
				return
			}
			if err != nil {
				return
			}
		}
	}
}

// isQuiet reports errors that end a connection without being worth logging.
func isQuiet(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
