package ws

import "errors"

var (
	ErrSessionClosed  = errors.New("ws: session closed")
	ErrQueueFull      = errors.New("ws: outbound queue full")
	ErrPathNotHandled = errors.New("ws: no handlers registered for path")
	ErrNotUpgrade     = errors.New("ws: not a websocket upgrade request")
)
