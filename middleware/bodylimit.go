package middleware

import (
	"mime"
	"net/http"

	"github.com/dmitrymomot/wirehttp/core/errpage"
	"github.com/dmitrymomot/wirehttp/core/handler"
	"github.com/dmitrymomot/wirehttp/core/interceptor"
)

// Common size constants for convenience
const (
	// KB represents 1 kilobyte
	KB int64 = 1024
	// MB represents 1 megabyte
	MB = 1024 * KB
	// GB represents 1 gigabyte
	GB = 1024 * MB
)

// BodyLimitConfig configures the request body limit middleware.
//
// The connection already refuses bodies above the server-wide limit; this
// middleware applies tighter limits, optionally per content type.
type BodyLimitConfig struct {
	// Skip defines a function to skip middleware execution for specific requests
	Skip func(c *handler.Context) bool

	// MaxSize is the maximum allowed size in bytes (default: 4MB)
	MaxSize int64

	// ContentTypeLimit allows setting different limits per content type
	// Example: {"application/json": 1MB, "multipart/form-data": 10MB}
	ContentTypeLimit map[string]int64

	// ErrorHandler writes the response for requests over the limit.
	// The default renders the 413 error page.
	ErrorHandler func(c *handler.Context, size, maxSize int64)
}

// BodyLimit creates a body limit middleware with default configuration (4MB limit).
func BodyLimit() interceptor.Interceptor {
	return BodyLimitWithConfig(BodyLimitConfig{})
}

// BodyLimitWithSize creates a body limit middleware with a specified size limit.
func BodyLimitWithSize(maxSize int64) interceptor.Interceptor {
	return BodyLimitWithConfig(BodyLimitConfig{MaxSize: maxSize})
}

// BodyLimitWithConfig rejects requests whose body exceeds the limit for
// their content type. The route handler is not invoked for rejected requests.
func BodyLimitWithConfig(cfg BodyLimitConfig) interceptor.Interceptor {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 4 * MB
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c *handler.Context, _, _ int64) {
			errpage.Write(c, http.StatusRequestEntityTooLarge, errpage.PayloadTooLarge())
			c.SetKeepAlive(false)
		}
	}

	return interceptor.Funcs{
		Pre: func(c *handler.Context) interceptor.Result {
			if cfg.Skip != nil && cfg.Skip(c) {
				return interceptor.Continue
			}

			maxSize := cfg.MaxSize
			if cfg.ContentTypeLimit != nil {
				contentType, _ := c.Header("Content-Type")
				if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
					if limit, ok := cfg.ContentTypeLimit[mediaType]; ok {
						maxSize = limit
					}
				}
			}

			size := c.Request().ContentLength
			if size < 0 || size <= maxSize {
				size = int64(len(c.Body()))
			}
			if size <= maxSize {
				return interceptor.Continue
			}

			cfg.ErrorHandler(c, size, maxSize)
			return interceptor.Stop
		},
	}
}
