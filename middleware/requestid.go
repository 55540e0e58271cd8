package middleware

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/wirehttp/core/handler"
	"github.com/dmitrymomot/wirehttp/core/interceptor"
	"github.com/dmitrymomot/wirehttp/core/logger"
)

// requestIDContextKey is used as a key for storing request ID in request context.
type requestIDContextKey struct{}

const requestIDAttr = "middleware.request_id"

// RequestIDConfig configures the request ID middleware.
type RequestIDConfig struct {
	// Skip defines a function to skip middleware execution for specific requests
	Skip func(c *handler.Context) bool
	// Generator creates new request IDs (default: UUID v4)
	Generator func() string
	// HeaderName specifies the header name for the request ID (default: "X-Request-ID")
	HeaderName string
	// UseExisting determines whether to use an existing request ID from the incoming request
	UseExisting bool
}

// RequestID creates a request ID middleware with default configuration.
// It generates a new UUID for each request and includes it in both context and response headers.
func RequestID() interceptor.Interceptor {
	return RequestIDWithConfig(RequestIDConfig{})
}

// RequestIDWithConfig creates a request ID middleware with custom configuration.
// The ID is stored on the handler context and the request context, and sent
// back in the response header.
func RequestIDWithConfig(cfg RequestIDConfig) interceptor.Interceptor {
	if cfg.HeaderName == "" {
		cfg.HeaderName = "X-Request-ID"
	}
	if cfg.Generator == nil {
		cfg.Generator = uuid.NewString
	}

	return interceptor.Funcs{
		Pre: func(c *handler.Context) interceptor.Result {
			if cfg.Skip != nil && cfg.Skip(c) {
				return interceptor.Continue
			}

			var requestID string
			if cfg.UseExisting {
				if existing, ok := c.Header(cfg.HeaderName); ok && existing != "" {
					requestID = existing
				}
			}
			if requestID == "" {
				requestID = cfg.Generator()
			}

			c.Set(requestIDAttr, requestID)
			c.SetContext(WithRequestID(c.Context(), requestID))
			return interceptor.Continue
		},
		// Response headers are written last so they survive an error page reset.
		Post: func(c *handler.Context) {
			if id, ok := GetRequestID(c); ok {
				c.SetHeader(cfg.HeaderName, id)
			}
		},
	}
}

// GetRequestID returns the request ID assigned by RequestID.
func GetRequestID(c *handler.Context) (string, bool) {
	return handler.Attr[string](c, requestIDAttr)
}

// WithRequestID returns a copy of ctx carrying id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, id)
}

// RequestIDFromContext returns the request ID stored in ctx, if any.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDContextKey{}).(string)
	return id, ok
}

// RequestIDExtractor is a logger.ContextExtractor that adds the request ID to
// records logged with a request context.
func RequestIDExtractor(ctx context.Context) (slog.Attr, bool) {
	id, ok := RequestIDFromContext(ctx)
	if !ok {
		return slog.Attr{}, false
	}
	return logger.RequestID(id), true
}
