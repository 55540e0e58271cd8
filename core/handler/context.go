package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/a-h/templ"
)

// ServerName is sent in the Server header of every response.
const ServerName = "wirehttp"

// DefaultMaxMemory bounds the in-memory part of multipart parsing.
const DefaultMaxMemory = 32 << 20

// ErrNoBody is returned by BindJSON when the request has no body.
var ErrNoBody = errors.New("handler: request has no body")

// Context is the per-request state shared by interceptors and the route
// handler. Request accessors are lazy and cached; response mutators only
// record state which the connection serializes after dispatch.
//
// A Context is owned by one connection for the duration of one request and
// must not be retained after the handler returns.
type Context struct {
	req *http.Request

	body     []byte
	bodyRead bool
	bodyErr  error
	params   map[string]string
	route    string
	query    url.Values

	status     int
	header     http.Header
	out        bytes.Buffer
	bodyReader io.Reader
	bodySize   int64
	stream     StreamFunc
	keepAlive  bool

	attrs map[string]any
}

// NewContext creates a context for req with a default 200 text/plain response.
func NewContext(req *http.Request) *Context {
	c := &Context{req: req}
	c.Reset()
	c.keepAlive = !req.Close
	return c
}

// Request returns the underlying request.
func (c *Context) Request() *http.Request { return c.req }

// Context returns the request's context.Context.
func (c *Context) Context() context.Context { return c.req.Context() }

// SetContext replaces the request's context.Context, e.g. to carry a trace span.
func (c *Context) SetContext(ctx context.Context) {
	c.req = c.req.WithContext(ctx)
}

// Method returns the request method.
func (c *Context) Method() string { return c.req.Method }

// Path returns the request path without the query string.
func (c *Context) Path() string {
	if c.req.URL == nil || c.req.URL.Path == "" {
		return "/"
	}
	return c.req.URL.Path
}

// RemoteAddr returns the peer address.
func (c *Context) RemoteAddr() string { return c.req.RemoteAddr }

// Header returns the first value of a request header.
func (c *Context) Header(name string) (string, bool) {
	values := c.req.Header.Values(name)
	if len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// Headers returns every value of a request header.
func (c *Context) Headers(name string) []string {
	return c.req.Header.Values(name)
}

// Body returns the full request body. The body is read once and cached.
func (c *Context) Body() []byte {
	if !c.bodyRead {
		c.bodyRead = true
		if c.req.Body != nil && c.req.Body != http.NoBody {
			c.body, c.bodyErr = io.ReadAll(c.req.Body)
			_ = c.req.Body.Close()
		}
		c.rewindBody()
	}
	return c.body
}

// BodyErr returns the error, if any, encountered while reading the body.
func (c *Context) BodyErr() error {
	c.Body()
	return c.bodyErr
}

func (c *Context) rewindBody() {
	c.req.Body = io.NopCloser(bytes.NewReader(c.body))
}

// Query returns a query string parameter.
func (c *Context) Query(key string) (string, bool) {
	if c.query == nil {
		c.query = c.req.URL.Query()
	}
	values, ok := c.query[key]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// Param returns a path parameter extracted by the router.
func (c *Context) Param(key string) (string, bool) {
	v, ok := c.params[key]
	return v, ok
}

// Params returns all path parameters.
func (c *Context) Params() map[string]string { return c.params }

// SetParams attaches path parameters. Called by the router.
func (c *Context) SetParams(params map[string]string) { c.params = params }

// Route returns the matched route template, empty before dispatch.
func (c *Context) Route() string { return c.route }

// SetRoute records the matched route template. Called by the router.
func (c *Context) SetRoute(route string) { c.route = route }

// Cookie returns the first cookie with the given name.
func (c *Context) Cookie(name string) (string, bool) {
	ck, err := c.req.Cookie(name)
	if err != nil {
		return "", false
	}
	return ck.Value, true
}

// Cookies returns every cookie value sent under name.
func (c *Context) Cookies(name string) []string {
	var out []string
	for _, ck := range c.req.Cookies() {
		if ck.Name == name {
			out = append(out, ck.Value)
		}
	}
	return out
}

// FormValue returns a urlencoded or multipart form field.
func (c *Context) FormValue(key string) (string, bool) {
	c.Body()
	if c.req.Form == nil {
		if isMultipart(c.req) {
			_ = c.req.ParseMultipartForm(DefaultMaxMemory)
		} else {
			_ = c.req.ParseForm()
		}
		c.rewindBody()
	}
	values, ok := c.req.Form[key]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// MultipartForm parses and returns a multipart/form-data body.
func (c *Context) MultipartForm() (*multipart.Form, error) {
	if c.req.MultipartForm != nil {
		return c.req.MultipartForm, nil
	}
	c.Body()
	err := c.req.ParseMultipartForm(DefaultMaxMemory)
	c.rewindBody()
	if err != nil {
		return nil, err
	}
	return c.req.MultipartForm, nil
}

// BindJSON decodes the JSON request body into v.
func (c *Context) BindJSON(v any) error {
	body := c.Body()
	if len(body) == 0 {
		return ErrNoBody
	}
	return json.Unmarshal(body, v)
}

func isMultipart(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return len(ct) >= 19 && ct[:19] == "multipart/form-data"
}

// Set stores a value in the attribute bag.
func (c *Context) Set(key string, value any) {
	if c.attrs == nil {
		c.attrs = make(map[string]any)
	}
	c.attrs[key] = value
}

// Get reads a value from the attribute bag.
func (c *Context) Get(key string) (any, bool) {
	v, ok := c.attrs[key]
	return v, ok
}

// Attr reads a typed value from the attribute bag.
func Attr[T any](c *Context, key string) (T, bool) {
	v, ok := c.attrs[key].(T)
	return v, ok
}

// Reset restores the response to its defaults. Request state is kept.
func (c *Context) Reset() {
	c.status = http.StatusOK
	c.header = make(http.Header)
	c.header.Set("Server", ServerName)
	c.header.Set("Content-Type", "text/plain; charset=utf-8")
	c.out.Reset()
	c.bodyReader = nil
	c.bodySize = 0
	c.stream = nil
}

// SetStatus sets the response status code.
func (c *Context) SetStatus(code int) { c.status = code }

// Status returns the response status code.
func (c *Context) Status() int { return c.status }

// SetHeader replaces a response header.
func (c *Context) SetHeader(name, value string) { c.header.Set(name, value) }

// AddHeader appends a response header value.
func (c *Context) AddHeader(name, value string) { c.header.Add(name, value) }

// ResponseHeader exposes the response headers.
func (c *Context) ResponseHeader() http.Header { return c.header }

// SetContentType sets the response Content-Type.
func (c *Context) SetContentType(ct string) { c.header.Set("Content-Type", ct) }

// SetBody replaces the response body.
func (c *Context) SetBody(b []byte) {
	c.out.Reset()
	c.out.Write(b)
	c.bodyReader = nil
}

// SetBodyString replaces the response body.
func (c *Context) SetBodyString(s string) {
	c.out.Reset()
	c.out.WriteString(s)
	c.bodyReader = nil
}

// SetBodyReader streams size bytes from r as the body. If r is an io.Closer it
// is closed after the response is written.
func (c *Context) SetBodyReader(r io.Reader, size int64) {
	c.out.Reset()
	c.bodyReader = r
	c.bodySize = size
}

// ResponseBody returns the buffered response body.
func (c *Context) ResponseBody() []byte { return c.out.Bytes() }

// BodyReader returns the reader set by SetBodyReader.
func (c *Context) BodyReader() (io.Reader, int64) { return c.bodyReader, c.bodySize }

// Chunked switches the response to streaming: fn is invoked after the headers
// are written and its chunks are sent as they are produced.
func (c *Context) Chunked(fn StreamFunc) { c.stream = fn }

// Stream returns the registered streaming callback, if any.
func (c *Context) Stream() StreamFunc { return c.stream }

// SetKeepAlive overrides whether the connection stays open after this response.
func (c *Context) SetKeepAlive(keep bool) { c.keepAlive = keep }

// KeepAlive reports whether the connection should stay open.
func (c *Context) KeepAlive() bool { return c.keepAlive }

// String writes a text/plain response.
func (c *Context) String(status int, s string) {
	c.SetStatus(status)
	c.SetContentType("text/plain; charset=utf-8")
	c.SetBodyString(s)
}

// HTML writes a text/html response.
func (c *Context) HTML(status int, html string) {
	c.SetStatus(status)
	c.SetContentType("text/html; charset=utf-8")
	c.SetBodyString(html)
}

// JSON encodes v as the response body.
func (c *Context) JSON(status int, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.SetStatus(status)
	c.SetContentType("application/json")
	c.SetBody(b)
	return nil
}

// Render renders a templ component as an HTML response.
func (c *Context) Render(status int, comp templ.Component) error {
	var buf bytes.Buffer
	if err := comp.Render(c.Context(), &buf); err != nil {
		return err
	}
	c.SetStatus(status)
	c.SetContentType("text/html; charset=utf-8")
	c.SetBody(buf.Bytes())
	return nil
}
