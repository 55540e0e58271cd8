package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dmitrymomot/wirehttp/core/exception"
	"github.com/dmitrymomot/wirehttp/core/handler"
	"github.com/dmitrymomot/wirehttp/core/health"
	"github.com/dmitrymomot/wirehttp/core/logger"
	"github.com/dmitrymomot/wirehttp/core/metrics"
	"github.com/dmitrymomot/wirehttp/core/relay"
	"github.com/dmitrymomot/wirehttp/core/server"
	"github.com/dmitrymomot/wirehttp/core/static"
	"github.com/dmitrymomot/wirehttp/core/ws"
	"github.com/dmitrymomot/wirehttp/middleware"
)

const (
	chatPath      = "/chat"
	staticPrefix  = "/files"
	maxStreamSize = 1 << 20
	streamChunk   = 4096
)

// broadcaster sends a message to every connected session, locally or
// across processes when the relay is enabled.
type broadcaster interface {
	Broadcast(msg []byte, isText bool) int
}

// relayBroadcaster adapts a Relay to broadcaster.
type relayBroadcaster struct {
	ctx   context.Context
	relay *relay.Relay
	log   *slog.Logger
}

func (b relayBroadcaster) Broadcast(msg []byte, isText bool) int {
	n, err := b.relay.Broadcast(b.ctx, msg, isText)
	if err != nil {
		b.log.WarnContext(b.ctx, "relay broadcast failed", logger.Error(err))
	}
	return n
}

// app is the demo application: a server with routes, middleware and
// metrics registered.
type app struct {
	srv     *server.Server
	metrics *metrics.Collector
	log     *slog.Logger
	push    broadcaster
	ready   func(ctx context.Context) error
}

func newApp(cfg appConfig, log *slog.Logger, reg *prometheus.Registry) (*app, error) {
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(metrics.WithRegistry(reg))

	opts := []server.Option{
		server.WithLogger(log),
		server.WithMetrics(m),
	}
	if cfg.StaticDir != "" {
		dir, err := static.NewDir(cfg.StaticDir, static.WithPrefix(staticPrefix), static.WithLogger(log))
		if err != nil {
			return nil, fmt.Errorf("static directory: %w", err)
		}
		opts = append(opts, server.WithStatic(dir))
	}

	srv, err := server.NewFromConfig(cfg.Server, opts...)
	if err != nil {
		return nil, err
	}
	m.TrackSessions(srv.Sessions().Len)

	a := &app{
		srv:     srv,
		metrics: m,
		log:     log,
		push:    srv,
	}
	a.routes()
	return a, nil
}

// withRelay sends chat broadcasts through r from now on.
func (a *app) withRelay(ctx context.Context, r *relay.Relay, check func(context.Context) error) {
	a.push = relayBroadcaster{ctx: ctx, relay: r, log: a.log}
	a.ready = check
}

func (a *app) routes() {
	r := a.srv.Router()
	r.Exceptions().Add(exception.HTTPErrors())
	r.Use(
		middleware.RequestID(),
		middleware.ClientIP(),
		middleware.LoggingWithConfig(middleware.LoggingConfig{
			Logger: a.log,
			Skip:   func(c *handler.Context) bool { return c.Path() == "/metrics" },
		}),
		middleware.Tracing(),
		middleware.CORS(),
		middleware.SecurityHeaders(),
		a.metrics.Interceptor(),
	)

	r.Get("/", a.index)
	r.Get("/hello", a.hello)
	r.Get("/users/:id", a.user)
	r.Post("/echo", a.echo)
	r.Get("/stream/:size", a.stream)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness(a.log, a.checkRelay))
	r.Get("/ping", health.NoContent)
	r.Get("/stats", a.stats)
	r.Get("/metrics", handler.FromHTTP(a.metrics.Handler()))

	a.srv.WebSocket().Handle(chatPath, ws.Handlers{
		Open: func(c *ws.Context) {
			a.log.Debug("chat joined", logger.SessionID(c.ID()))
		},
		Message: func(c *ws.Context) {
			a.push.Broadcast(c.Message(), c.IsText())
		},
		Close: func(c *ws.Context) {
			a.log.Debug("chat left", logger.SessionID(c.ID()), logger.CloseCode(c.CloseCode()))
		},
	})
}

func (a *app) index(c *handler.Context) error {
	c.HTML(http.StatusOK, `<!doctype html><title>wirehttp</title><h1>wirehttp</h1>`)
	return nil
}

func (a *app) hello(c *handler.Context) error {
	name, ok := c.Query("name")
	if !ok || name == "" {
		name = "World"
	}
	c.String(http.StatusOK, "Hello, "+name+"!")
	return nil
}

func (a *app) user(c *handler.Context) error {
	id, _ := c.Param("id")
	reqID, _ := middleware.GetRequestID(c)
	return c.JSON(http.StatusOK, map[string]string{
		"id":         id,
		"request_id": reqID,
	})
}

func (a *app) echo(c *handler.Context) error {
	if err := c.BodyErr(); err != nil {
		return handler.NewHTTPError(http.StatusBadRequest, "unreadable body").Wrap(err)
	}
	if ct, ok := c.Header("Content-Type"); ok {
		c.SetContentType(ct)
	}
	c.SetBody(c.Body())
	return nil
}

// stream sends size bytes of a repeating alphabet as a chunked response.
func (a *app) stream(c *handler.Context) error {
	raw, _ := c.Param("size")
	size, err := strconv.Atoi(raw)
	if err != nil || size < 0 || size > maxStreamSize {
		return handler.NewHTTPError(http.StatusBadRequest, "size must be between 0 and "+strconv.Itoa(maxStreamSize))
	}

	c.SetStatus(http.StatusOK)
	c.SetContentType("text/plain; charset=utf-8")
	c.Chunked(func(_ *handler.Context, write handler.WriteFunc) {
		chunk := []byte(strings.Repeat("abcdefghijklmnopqrstuvwxyz", streamChunk/26+1)[:streamChunk])
		for remaining := size; remaining > 0; remaining -= streamChunk {
			if !write(chunk[:min(remaining, streamChunk)]) {
				return
			}
		}
	})
	return nil
}

// checkRelay reports whether the relay's Redis connection answers. It
// passes when the relay is disabled.
func (a *app) checkRelay(ctx context.Context) error {
	if a.ready == nil {
		return nil
	}
	return a.ready(ctx)
}

func (a *app) stats(c *handler.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"sessions": a.srv.Sessions().Len(),
		"version":  version,
	})
}
