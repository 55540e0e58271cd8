package server

import (
	"crypto/tls"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/wirehttp/core/conn"
	"github.com/dmitrymomot/wirehttp/core/router"
	"github.com/dmitrymomot/wirehttp/core/static"
	"github.com/dmitrymomot/wirehttp/core/ws"
)

// Option configures server behavior.
type Option func(*Server)

// Metrics receives HTTP and WebSocket notifications. *metrics.Collector
// implements it.
type Metrics interface {
	conn.Observer
	ws.Observer
}

// WithTLS configures TLS settings for HTTPS.
func WithTLS(config *tls.Config) Option {
	return func(s *Server) {
		s.tlsConfig = config
	}
}

// WithAutoCert obtains certificates from Let's Encrypt for the given domains.
// A configuration error is reported by NewFromConfig or Start.
func WithAutoCert(cfg AutoCertConfig) Option {
	return func(s *Server) {
		tlsConfig, _, err := NewAutoCertTLSConfig(cfg)
		if err != nil {
			s.optErr = err
			return
		}
		s.tlsConfig = tlsConfig
	}
}

// WithLogger sets a custom logger for server operations.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithShutdownTimeout sets the maximum time to wait for graceful shutdown.
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(s *Server) {
		s.shutdown = timeout
	}
}

// WithReadTimeout bounds reading one request. Zero disables it.
func WithReadTimeout(timeout time.Duration) Option {
	return func(s *Server) {
		s.connCfg.ReadTimeout = timeout
	}
}

// WithWriteTimeout bounds writing one response. Zero disables it.
func WithWriteTimeout(timeout time.Duration) Option {
	return func(s *Server) {
		s.connCfg.WriteTimeout = timeout
	}
}

// WithIdleTimeout bounds the wait for the next keep-alive request. Zero disables it.
func WithIdleTimeout(timeout time.Duration) Option {
	return func(s *Server) {
		s.connCfg.IdleTimeout = timeout
	}
}

// WithMaxHeaderBytes limits the size of request headers.
func WithMaxHeaderBytes(n int) Option {
	return func(s *Server) {
		s.connCfg.MaxHeaderBytes = n
	}
}

// WithMaxBodyBytes limits the size of a buffered request body.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		s.connCfg.MaxBodyBytes = n
	}
}

// WithMaxConnections caps concurrently accepted connections. Zero means no cap.
func WithMaxConnections(n int) Option {
	return func(s *Server) {
		s.maxConns = n
	}
}

// WithReusePort sets SO_REUSEPORT on the listening socket where supported.
func WithReusePort(enabled bool) Option {
	return func(s *Server) {
		s.reusePort = enabled
	}
}

// WithRouter replaces the HTTP router.
func WithRouter(r *router.Router) Option {
	return func(s *Server) {
		if r != nil {
			s.router = r
		}
	}
}

// WithStatic answers GET and HEAD requests from r before routing.
func WithStatic(r static.Resolver) Option {
	return func(s *Server) {
		s.static = r
	}
}

// WithWebSocketConfig sets WebSocket session settings.
func WithWebSocketConfig(cfg ws.Config) Option {
	return func(s *Server) {
		s.wsCfg = cfg
	}
}

// WithCheckOrigin overrides WebSocket origin validation.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(s *Server) {
		s.checkOrigin = fn
	}
}

// WithMetrics reports per-request and per-session events to m.
func WithMetrics(m Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}
