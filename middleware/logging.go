package middleware

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/dmitrymomot/wirehttp/core/handler"
	"github.com/dmitrymomot/wirehttp/core/interceptor"
	"github.com/dmitrymomot/wirehttp/core/logger"
)

const loggingStartAttr = "middleware.logging_start"

// LoggingConfig configures the request/response logging middleware.
// It provides fine-grained control over what gets logged and how.
type LoggingConfig struct {
	// Skip defines a function to skip middleware execution for specific requests
	Skip func(c *handler.Context) bool

	// Logger is the slog logger to use (default: slog.Default())
	Logger *slog.Logger

	// LogLevel for request logging (default: slog.LevelInfo)
	LogLevel slog.Level

	// LogRequest enables logging of request details (default: true)
	LogRequest bool

	// LogResponse enables logging of response details (default: true)
	LogResponse bool

	// LogRequestBody enables logging of request body (default: false for security)
	LogRequestBody bool

	// LogResponseBody enables logging of buffered response bodies (default: false for performance)
	LogResponseBody bool

	// LogHeaders enables logging of request/response headers (default: false for security)
	LogHeaders bool

	// MaxBodyLogSize is the maximum size of body to log in bytes (default: 4KB)
	MaxBodyLogSize int

	// SensitiveHeaders is a list of header names to redact (default: common auth headers)
	SensitiveHeaders []string

	// SlowRequestThreshold logs slow requests at warning level (default: 5s)
	SlowRequestThreshold time.Duration

	// Component name for structured logging
	Component string
}

// Logging creates a request/response logging middleware with default configuration.
func Logging() interceptor.Interceptor {
	return LoggingWithConfig(LoggingConfig{})
}

// LoggingWithLogger creates a logging middleware with a custom logger.
func LoggingWithLogger(log *slog.Logger) interceptor.Interceptor {
	return LoggingWithConfig(LoggingConfig{Logger: log})
}

// LoggingWithConfig logs each request when it arrives and again once the
// response is final. Responses with status 5xx are logged at error level,
// 4xx and slow requests at warning level.
//
//	r.Use(middleware.LoggingWithConfig(middleware.LoggingConfig{
//		Logger:               log,
//		LogHeaders:           true,
//		SlowRequestThreshold: 2 * time.Second,
//		Skip: func(c *handler.Context) bool { return c.Path() == "/metrics" },
//	}))
func LoggingWithConfig(cfg LoggingConfig) interceptor.Interceptor {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.LogLevel == 0 {
		cfg.LogLevel = slog.LevelInfo
	}
	if !cfg.LogRequest && !cfg.LogResponse {
		cfg.LogRequest = true
		cfg.LogResponse = true
	}
	if cfg.MaxBodyLogSize <= 0 {
		cfg.MaxBodyLogSize = 4 * 1024
	}
	if cfg.SensitiveHeaders == nil {
		cfg.SensitiveHeaders = []string{
			"Authorization",
			"Cookie",
			"Set-Cookie",
			"X-Api-Key",
			"X-Auth-Token",
			"X-Csrf-Token",
		}
	}
	if cfg.SlowRequestThreshold <= 0 {
		cfg.SlowRequestThreshold = 5 * time.Second
	}
	if cfg.Component == "" {
		cfg.Component = "http"
	}

	return interceptor.Funcs{
		Pre: func(c *handler.Context) interceptor.Result {
			if cfg.Skip != nil && cfg.Skip(c) {
				return interceptor.Continue
			}
			c.Set(loggingStartAttr, time.Now())
			if !cfg.LogRequest {
				return interceptor.Continue
			}

			attrs := []slog.Attr{
				logger.Component(cfg.Component),
				logger.Event("request"),
				logger.Method(c.Method()),
				logger.Path(c.Path()),
				logger.RemoteAddr(c.RemoteAddr()),
			}
			if id, ok := GetRequestID(c); ok {
				attrs = append(attrs, logger.RequestID(id))
			}
			if q := c.Request().URL.RawQuery; q != "" {
				attrs = append(attrs, slog.String("query", q))
			}
			if cfg.LogRequestBody {
				attrs = appendBody(attrs, "request_body", c.Body(), cfg.MaxBodyLogSize)
			}
			if cfg.LogHeaders {
				attrs = appendHeaders(attrs, "request_headers", c.Request().Header, cfg.SensitiveHeaders)
			}

			cfg.Logger.LogAttrs(c.Context(), cfg.LogLevel, "HTTP request started", attrs...)
			return interceptor.Continue
		},
		Post: func(c *handler.Context) {
			start, ok := handler.Attr[time.Time](c, loggingStartAttr)
			if !ok || !cfg.LogResponse {
				return
			}
			duration := time.Since(start)
			status := c.Status()

			attrs := []slog.Attr{
				logger.Component(cfg.Component),
				logger.Event("response"),
				logger.Method(c.Method()),
				logger.Path(c.Path()),
				logger.StatusCode(status),
				logger.BytesOut(responseSize(c)),
				logger.Duration(duration),
			}
			if route := c.Route(); route != "" {
				attrs = append(attrs, logger.Route(route))
			}
			if id, ok := GetRequestID(c); ok {
				attrs = append(attrs, logger.RequestID(id))
			}
			if cfg.LogResponseBody {
				attrs = appendBody(attrs, "response_body", c.ResponseBody(), cfg.MaxBodyLogSize)
			}
			if cfg.LogHeaders {
				attrs = appendHeaders(attrs, "response_headers", c.ResponseHeader(), cfg.SensitiveHeaders)
			}

			level := cfg.LogLevel
			switch {
			case status >= 500:
				level = slog.LevelError
			case status >= 400:
				level = slog.LevelWarn
			case duration > cfg.SlowRequestThreshold:
				level = slog.LevelWarn
				attrs = append(attrs, slog.Bool("slow_request", true))
			}

			cfg.Logger.LogAttrs(c.Context(), level, "HTTP request completed", attrs...)
		},
	}
}

// responseSize reports the known body size, or -1 for chunked responses.
func responseSize(c *handler.Context) int64 {
	if c.Stream() != nil {
		return -1
	}
	if r, size := c.BodyReader(); r != nil {
		return size
	}
	return int64(len(c.ResponseBody()))
}

func appendBody(attrs []slog.Attr, key string, body []byte, limit int) []slog.Attr {
	if len(body) == 0 {
		return attrs
	}
	if len(body) > limit {
		body = body[:limit]
		attrs = append(attrs, slog.Bool(key+"_truncated", true))
	}
	return append(attrs, slog.String(key, string(body)))
}

func appendHeaders(attrs []slog.Attr, key string, h http.Header, sensitive []string) []slog.Attr {
	if len(h) == 0 {
		return attrs
	}
	headers := make(map[string]any, len(h))
	for name, values := range h {
		switch {
		case slices.ContainsFunc(sensitive, func(s string) bool { return http.CanonicalHeaderKey(s) == name }):
			headers[name] = "[REDACTED]"
		case len(values) == 1:
			headers[name] = values[0]
		default:
			headers[name] = values
		}
	}
	return append(attrs, slog.Any(key, headers))
}
