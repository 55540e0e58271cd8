// Package ws runs WebSocket sessions on top of gorilla/websocket.
//
// An Upgrader performs the handshake for paths registered on a Router and
// turns each connection into a Session. A session dispatches open, message,
// close and error events to the path's Handlers, keeps the peer alive with
// pings, and owns a single outbound lane: Send only enqueues, and one writer
// goroutine drains the queue in FIFO order so at most one write is in flight.
// Messages at or above the fragmentation threshold are written as several
// frames.
//
// Open sessions are tracked in a Registry, which is how code outside any
// session pushes messages:
//
//	router := ws.NewRouter(log)
//	router.Handle("/chat", ws.Handlers{
//		Message: func(c *ws.Context) {
//			c.SendText("echo: " + c.Text())
//		},
//	})
//	registry := ws.NewRegistry()
//	up := ws.NewUpgrader(router, registry, ws.WithLogger(log))
//
//	// later, from anywhere
//	delivered := registry.SendMany([]string{idA, idB}, []byte("ping"), true)
//
// Event contexts hold only a weak reference to their session; sending through
// a context whose session is gone or closed is a logged no-op.
package ws
