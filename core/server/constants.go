package server

import "time"

const (
	// DefaultReadTimeout bounds reading one request, headers and body.
	DefaultReadTimeout = 15 * time.Second

	// DefaultWriteTimeout bounds writing one response.
	DefaultWriteTimeout = 15 * time.Second

	// DefaultIdleTimeout is how long a keep-alive connection may wait for its next request.
	DefaultIdleTimeout = 60 * time.Second

	// DefaultShutdownTimeout is how long Stop waits for in-flight connections.
	DefaultShutdownTimeout = 30 * time.Second

	// DefaultMaxHeaderBytes is the default maximum size of request headers.
	DefaultMaxHeaderBytes = 1 << 20 // 1 MB

	// DefaultMaxBodyBytes is the default maximum size of a buffered request body.
	DefaultMaxBodyBytes = 10 << 20 // 10 MB
)

const (
	minAcceptBackoff   = 5 * time.Millisecond
	maxAcceptBackoff   = time.Second
	idlePollInterval   = 50 * time.Millisecond
	goingAwayReason    = "server shutting down"
	defaultAutoCertDir = "certs"
)
