package health

import (
	"net/http"

	"github.com/dmitrymomot/wirehttp/core/handler"
)

// Liveness indicates if the service process is running.
// Always returns "ALIVE" with 200 OK. No dependency checks.
//
// Example:
//
//	r.Get("/health/live", health.Liveness)
func Liveness(c *handler.Context) error {
	c.String(http.StatusOK, "ALIVE")
	return nil
}

// NoContent returns HTTP 204 without body. Ideal for high-frequency checks.
//
// Example:
//
//	r.Get("/ping", health.NoContent)
func NoContent(c *handler.Context) error {
	c.SetStatus(http.StatusNoContent)
	c.ResponseHeader().Del("Content-Type")
	return nil
}
