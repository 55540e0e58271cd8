package middleware_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/wirehttp/core/handler"
	"github.com/dmitrymomot/wirehttp/middleware"
)

func TestBodyLimit(t *testing.T) {
	t.Parallel()

	echo := func(c *handler.Context) error {
		c.SetBody(c.Body())
		return nil
	}

	t.Run("within limit", func(t *testing.T) {
		t.Parallel()
		c := serve(post("/", strings.NewReader("hello")), "/", echo, middleware.BodyLimitWithSize(5))
		assert.Equal(t, http.StatusOK, c.Status())
		assert.Equal(t, "hello", string(c.ResponseBody()))
	})

	t.Run("over limit", func(t *testing.T) {
		t.Parallel()
		called := false
		c := serve(post("/", strings.NewReader("hello!")), "/", func(c *handler.Context) error {
			called = true
			return nil
		}, middleware.BodyLimitWithSize(5))
		assert.False(t, called)
		assert.Equal(t, http.StatusRequestEntityTooLarge, c.Status())
		assert.False(t, c.KeepAlive())
	})

	t.Run("unknown content length", func(t *testing.T) {
		t.Parallel()
		req := post("/", strings.NewReader("0123456789"))
		req.ContentLength = -1
		c := serve(req, "/", echo, middleware.BodyLimitWithSize(4))
		assert.Equal(t, http.StatusRequestEntityTooLarge, c.Status())
	})
}

func TestBodyLimitWithConfig(t *testing.T) {
	t.Parallel()

	var gotSize, gotMax int64
	mw := middleware.BodyLimitWithConfig(middleware.BodyLimitConfig{
		MaxSize:          2,
		ContentTypeLimit: map[string]int64{"application/json": 1 * middleware.KB},
		ErrorHandler: func(c *handler.Context, size, maxSize int64) {
			gotSize, gotMax = size, maxSize
			c.String(http.StatusRequestEntityTooLarge, "too big")
		},
	})

	req := post("/", strings.NewReader(`{"a":1}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	c := serve(req, "/", ok, mw)
	assert.Equal(t, http.StatusOK, c.Status())

	req = post("/", strings.NewReader("plain"))
	req.Header.Set("Content-Type", "text/plain")
	c = serve(req, "/", ok, mw)
	assert.Equal(t, http.StatusRequestEntityTooLarge, c.Status())
	assert.Equal(t, "too big", string(c.ResponseBody()))
	assert.Equal(t, int64(5), gotSize)
	assert.Equal(t, int64(2), gotMax)
}
