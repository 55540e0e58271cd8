// Package errpage renders the small HTML bodies the server uses for
// framework-generated error responses. Request paths and methods are HTML
// escaped before they are embedded.
package errpage

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/dmitrymomot/wirehttp/core/handler"
)

// NotFound renders the 404 body for path.
func NotFound(path string) templ.Component {
	return page(http.StatusNotFound,
		"The resource '"+templ.EscapeString(path)+"' was not found on this server.")
}

// MethodNotAllowed renders the 405 body for method on path.
func MethodNotAllowed(method, path string) templ.Component {
	return page(http.StatusMethodNotAllowed,
		"Method "+templ.EscapeString(method)+" not allowed for resource '"+templ.EscapeString(path)+"'.")
}

// Forbidden renders the 403 body for path.
func Forbidden(path string) templ.Component {
	return page(http.StatusForbidden,
		"Access to '"+templ.EscapeString(path)+"' is forbidden.")
}

// InternalError renders a generic 500 body that carries no error detail.
func InternalError() templ.Component {
	return page(http.StatusInternalServerError,
		"The server encountered an unexpected condition.")
}

// BadRequest renders a generic 400 body.
func BadRequest() templ.Component {
	return page(http.StatusBadRequest, "The request could not be understood by the server.")
}

// PayloadTooLarge renders the 413 body.
func PayloadTooLarge() templ.Component {
	return page(http.StatusRequestEntityTooLarge, "The request body exceeds the allowed size.")
}

// Status renders a generic body for any status code.
func Status(status int) templ.Component {
	return page(status, "The request could not be processed.")
}

func page(status int, escapedDetail string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString("<h1>")
		b.WriteString(strconv.Itoa(status))
		b.WriteByte(' ')
		b.WriteString(http.StatusText(status))
		b.WriteString("</h1><p>")
		b.WriteString(escapedDetail)
		b.WriteString("</p>")
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// Write replaces the response on c with status and the rendered component.
// Render failures degrade to a plain status text body.
func Write(c *handler.Context, status int, comp templ.Component) {
	c.Reset()
	if err := c.Render(status, comp); err != nil {
		c.String(status, http.StatusText(status))
	}
}
