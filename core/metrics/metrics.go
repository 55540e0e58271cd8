// Package metrics exports Prometheus metrics for HTTP requests, connections
// and WebSocket sessions.
//
// A Collector satisfies both conn.Observer and ws.Observer, so a single
// instance passed to server.WithMetrics records everything:
//
//	m := metrics.New(metrics.WithRegistry(reg))
//	srv := server.New(":8080", server.WithMetrics(m))
//	m.TrackSessions(srv.Sessions().Len)
//	srv.Router().Use(m.Interceptor())
//	srv.Router().Get("/metrics", handler.FromHTTP(m.Handler()))
//
// Metrics collected (namespace "wirehttp" by default):
//   - http_requests_total: counter by method and status
//   - http_request_duration_seconds: histogram by method
//   - http_route_requests_total: counter by method and route template
//   - websocket_sessions_opened_total, websocket_sessions_closed_total: counters by path
//   - websocket_sessions_active: gauge by path
//   - websocket_sessions: number of sessions in the registry, when tracked
//   - websocket_messages_total, websocket_message_bytes_total: counters by path and direction
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/wirehttp/core/conn"
	"github.com/dmitrymomot/wirehttp/core/handler"
	"github.com/dmitrymomot/wirehttp/core/interceptor"
	"github.com/dmitrymomot/wirehttp/core/ws"
)

var (
	_ conn.Observer = (*Collector)(nil)
	_ ws.Observer   = (*Collector)(nil)
)

const (
	directionIn  = "in"
	directionOut = "out"

	otherMethod    = "OTHER"
	unmatchedRoute = "unmatched"
)

// Collector records server events as Prometheus metrics.
// Safe for concurrent use.
type Collector struct {
	cfg Config

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	routeRequests   *prometheus.CounterVec

	sessionsOpened *prometheus.CounterVec
	sessionsClosed *prometheus.CounterVec
	sessionsActive *prometheus.GaugeVec
	messagesTotal  *prometheus.CounterVec
	messageBytes   *prometheus.CounterVec
}

// New creates a Collector and registers its metrics.
// Registering twice into the same registry panics, as with promauto.
func New(opts ...Option) *Collector {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	factory := promauto.With(cfg.Registerer)

	return &Collector{
		cfg: cfg,

		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "http_requests_total",
			Help:        "Total number of HTTP responses written",
			ConstLabels: cfg.ConstLabels,
		}, []string{"method", "status"}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "http_request_duration_seconds",
			Help:        "Time from reading a request to writing its response",
			ConstLabels: cfg.ConstLabels,
			Buckets:     cfg.Buckets,
		}, []string{"method"}),

		routeRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "http_route_requests_total",
			Help:        "Total number of routed requests by route template",
			ConstLabels: cfg.ConstLabels,
		}, []string{"method", "route"}),

		sessionsOpened: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "websocket_sessions_opened_total",
			Help:        "Total number of WebSocket sessions opened",
			ConstLabels: cfg.ConstLabels,
		}, []string{"path"}),

		sessionsClosed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "websocket_sessions_closed_total",
			Help:        "Total number of WebSocket sessions closed, by outcome",
			ConstLabels: cfg.ConstLabels,
		}, []string{"path", "outcome"}),

		sessionsActive: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "websocket_sessions_active",
			Help:        "Number of open WebSocket sessions",
			ConstLabels: cfg.ConstLabels,
		}, []string{"path"}),

		messagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "websocket_messages_total",
			Help:        "Total number of WebSocket messages",
			ConstLabels: cfg.ConstLabels,
		}, []string{"path", "direction"}),

		messageBytes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "websocket_message_bytes_total",
			Help:        "Total WebSocket payload bytes",
			ConstLabels: cfg.ConstLabels,
		}, []string{"path", "direction"}),
	}
}

// TrackSessions exports fn as the websocket_sessions gauge.
// Call it at most once per Collector.
func (c *Collector) TrackSessions(fn func() int) {
	promauto.With(c.cfg.Registerer).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   c.cfg.Namespace,
		Subsystem:   c.cfg.Subsystem,
		Name:        "websocket_sessions",
		Help:        "Number of sessions in the WebSocket registry",
		ConstLabels: c.cfg.ConstLabels,
	}, func() float64 { return float64(fn()) })
}

// Handler serves the configured gatherer in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.cfg.Gatherer, promhttp.HandlerOpts{})
}

// RequestDone implements conn.Observer.
func (c *Collector) RequestDone(method string, status int, d time.Duration) {
	method = normalizeMethod(method)
	c.requestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	c.requestDuration.WithLabelValues(method).Observe(d.Seconds())
}

// SessionOpened implements ws.Observer.
func (c *Collector) SessionOpened(path string) {
	c.sessionsOpened.WithLabelValues(path).Inc()
	c.sessionsActive.WithLabelValues(path).Inc()
}

// SessionClosed implements ws.Observer.
func (c *Collector) SessionClosed(path string, normal bool) {
	outcome := "normal"
	if !normal {
		outcome = "error"
	}
	c.sessionsClosed.WithLabelValues(path, outcome).Inc()
	c.sessionsActive.WithLabelValues(path).Dec()
}

// MessageReceived implements ws.Observer.
func (c *Collector) MessageReceived(path string, size int) {
	c.messagesTotal.WithLabelValues(path, directionIn).Inc()
	c.messageBytes.WithLabelValues(path, directionIn).Add(float64(size))
}

// MessageSent implements ws.Observer.
func (c *Collector) MessageSent(path string, size int) {
	c.messagesTotal.WithLabelValues(path, directionOut).Inc()
	c.messageBytes.WithLabelValues(path, directionOut).Add(float64(size))
}

// Interceptor counts requests per route template. Requests that matched no
// route are counted as "unmatched".
func (c *Collector) Interceptor() interceptor.Interceptor {
	return interceptor.Funcs{
		Post: func(hc *handler.Context) {
			route := hc.Route()
			if route == "" {
				route = unmatchedRoute
			}
			c.routeRequests.WithLabelValues(normalizeMethod(hc.Method()), route).Inc()
		},
	}
}

// normalizeMethod bounds label cardinality to the registered HTTP methods.
func normalizeMethod(m string) string {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodPatch,
		http.MethodDelete, http.MethodOptions, http.MethodConnect, http.MethodTrace:
		return m
	}
	return otherMethod
}
