package health

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/wirehttp/core/errpage"
	"github.com/dmitrymomot/wirehttp/core/handler"
	"github.com/dmitrymomot/wirehttp/core/logger"
)

// Readiness verifies all service dependencies are functioning.
// Returns "READY" if all checks pass, 503 Service Unavailable if any fail.
//
// Example:
//
//	r.Get("/health/ready", health.Readiness(log, relay.Healthcheck(client)))
func Readiness(log *slog.Logger, fn ...func(context.Context) error) handler.HandlerFunc {
	if log == nil {
		log = logger.Nop()
	}
	return func(c *handler.Context) error {
		for _, f := range fn {
			if err := f(c.Context()); err != nil {
				log.ErrorContext(c.Context(), "Readiness check failed", logger.Error(err))
				errpage.Write(c, http.StatusServiceUnavailable, errpage.Status(http.StatusServiceUnavailable))
				return nil
			}
		}
		c.String(http.StatusOK, "READY")
		return nil
	}
}
