package server

import "errors"

var (
	// Configuration errors
	ErrMissingAddress   = errors.New("server address is required")
	ErrNoAutoCertDomain = errors.New("autocert requires at least one domain")

	// TLS configuration errors
	ErrEmptyCertPath         = errors.New("certificate or key file path cannot be empty")
	ErrEmptyServerName       = errors.New("server name cannot be empty")
	ErrInvalidTLSVersion     = errors.New("invalid TLS version")
	ErrInvalidClientAuthType = errors.New("invalid client auth type")
	ErrFailedLoadCert        = errors.New("failed to load certificate")

	// Server lifecycle errors
	ErrServerAlreadyRunning = errors.New("server is already running")
	ErrShutdownTimeout      = errors.New("shutdown timed out, remaining connections were closed")
)
