// Package server accepts TCP connections and serves HTTP/1.1 requests and
// WebSocket sessions on them, with graceful shutdown and a push API for
// sending to connected WebSocket clients by session id.
//
// # Key Features
//
//   - One goroutine per connection on the runtime network poller
//   - Keep-alive HTTP/1.1 with routing, interceptors and exception handlers
//   - WebSocket upgrade on registered paths, with targeted send and broadcast
//   - Static file resolution ahead of routing
//   - TLS from files, a *tls.Config, or Let's Encrypt
//   - SO_REUSEPORT and a connection cap on the listener
//   - Graceful shutdown with configurable timeout
//
// # Basic Usage
//
//	srv := server.New(":8080", server.WithLogger(log))
//
//	srv.Router().Get("/users/:id", func(c *handler.Context) error {
//		id, _ := c.Param("id")
//		return c.JSON(http.StatusOK, map[string]string{"id": id})
//	})
//
//	srv.WebSocket().Handle("/chat", ws.Handlers{
//		Message: func(c *ws.Context) { srv.Broadcast(c.Message(), c.IsText()) },
//	})
//
//	g, ctx := errgroup.WithContext(ctx)
//	g.Go(srv.Run(ctx))
//	if err := g.Wait(); err != nil {
//		log.Error("server failed", logger.Error(err))
//	}
//
// # Configuration
//
// Config is populated from SERVER_* and WS_* environment variables:
//
//	var cfg server.Config
//	config.MustLoad(&cfg)
//	srv, err := server.NewFromConfig(cfg, server.WithLogger(log))
//
// # Shutdown
//
// Stop closes the listener, closes idle keep-alive connections, closes every
// WebSocket session with status 1001 and waits for in-flight requests. After
// the shutdown timeout the remaining connections are closed and Stop returns
// ErrShutdownTimeout.
package server
