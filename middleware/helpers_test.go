package middleware_test

import (
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/dmitrymomot/wirehttp/core/handler"
	"github.com/dmitrymomot/wirehttp/core/interceptor"
	"github.com/dmitrymomot/wirehttp/core/router"
)

func ok(c *handler.Context) error {
	c.String(http.StatusOK, "ok")
	return nil
}

// serve dispatches req through a router that has items registered and the
// given handler on GET and POST path.
func serve(req *http.Request, path string, h handler.HandlerFunc, items ...interceptor.Interceptor) *handler.Context {
	r := router.New(router.WithInterceptors(items...))
	r.Get(path, h)
	r.Post(path, h)
	c := handler.NewContext(req)
	r.Serve(c)
	return c
}

func get(target string) *http.Request {
	return httptest.NewRequest(http.MethodGet, target, nil)
}

func post(target string, body io.Reader) *http.Request {
	return httptest.NewRequest(http.MethodPost, target, body)
}
