package handler

import (
	"errors"
	"fmt"
	"net/http"
)

// HandlerFunc handles one request by mutating the response on the context.
// A returned error is routed through the exception dispatcher.
type HandlerFunc func(c *Context) error

// ErrorHandler renders a response for an error nobody else claimed.
type ErrorHandler func(c *Context, err error)

// WriteFunc writes one chunk of a streamed response. It returns false once
// the peer is gone and the producer should stop.
type WriteFunc func(chunk []byte) bool

// StreamFunc produces a chunked response body by calling write repeatedly.
type StreamFunc func(c *Context, write WriteFunc)

// HTTPError carries a status code and a message that is safe to show to clients.
type HTTPError struct {
	Code    int
	Message string
	Err     error
}

// NewHTTPError creates an HTTPError. An empty message defaults to the status text.
func NewHTTPError(code int, message string) *HTTPError {
	if message == "" {
		message = http.StatusText(code)
	}
	return &HTTPError{Code: code, Message: message}
}

// Wrap attaches an internal cause that is logged but never sent to clients.
func (e *HTTPError) Wrap(err error) *HTTPError {
	return &HTTPError{Code: e.Code, Message: e.Message, Err: err}
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("http %d: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("http %d: %s", e.Code, e.Message)
}

func (e *HTTPError) Unwrap() error { return e.Err }

// StatusCode returns the HTTP status code.
func (e *HTTPError) StatusCode() int { return e.Code }

// Is matches another *HTTPError with the same code.
func (e *HTTPError) Is(target error) bool {
	var t *HTTPError
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

var (
	ErrBadRequest       = NewHTTPError(http.StatusBadRequest, "")
	ErrUnauthorized     = NewHTTPError(http.StatusUnauthorized, "")
	ErrForbidden        = NewHTTPError(http.StatusForbidden, "")
	ErrNotFound         = NewHTTPError(http.StatusNotFound, "")
	ErrConflict         = NewHTTPError(http.StatusConflict, "")
	ErrPayloadTooLarge  = NewHTTPError(http.StatusRequestEntityTooLarge, "")
	ErrUnprocessable    = NewHTTPError(http.StatusUnprocessableEntity, "")
	ErrTooManyRequests  = NewHTTPError(http.StatusTooManyRequests, "")
	ErrServiceUnavailable = NewHTTPError(http.StatusServiceUnavailable, "")
)
