// Package conn serves HTTP/1.x on a single accepted connection.
//
// A Session reads one request at a time, hands WebSocket upgrades to a
// ws.Upgrader, lets a static resolver answer GET and HEAD requests, and
// otherwise dispatches to a router. It then serializes the response recorded
// on the handler.Context: a buffered body with Content-Length, a file body,
// or a streamed body using chunked transfer encoding. Keep-alive connections
// loop back to reading the next request; everything else is half-closed and
// closed.
//
// The session's state is readable from other goroutines so a server can close
// connections that sit idle between requests during shutdown.
package conn
