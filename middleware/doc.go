// Package middleware provides interceptors for common cross-cutting concerns:
// request IDs, client IP extraction, request logging, CORS, security headers,
// body size limits and OpenTelemetry tracing.
//
// Every constructor returns an interceptor.Interceptor, registered on a
// router with Use or router.WithInterceptors. Pre-hooks run in registration
// order and post-hooks in reverse, so register RequestID before Logging and
// Tracing to have the ID available to both.
//
//	r := srv.Router()
//	r.Use(
//		middleware.RequestID(),
//		middleware.ClientIP(),
//		middleware.LoggingWithLogger(log),
//		middleware.Tracing(),
//		middleware.CORS(),
//		middleware.SecurityHeaders(),
//		middleware.BodyLimitWithSize(1*middleware.MB),
//	)
//
// Each middleware has a WithConfig variant. Config structs share a Skip
// function that bypasses the middleware for selected requests:
//
//	middleware.LoggingWithConfig(middleware.LoggingConfig{
//		Logger: log,
//		Skip:   func(c *handler.Context) bool { return c.Path() == "/metrics" },
//	})
//
// Response headers are set in post-hooks, after the handler and any
// exception handler have produced the final response, so they are present
// on error pages too.
//
// Values extracted from the request are stored on the handler context and
// read back with GetRequestID and GetClientIP. The request ID is also put on
// the request context, where RequestIDFromContext and the logger's context
// extractors can find it.
package middleware
