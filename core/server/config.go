package server

import (
	"fmt"
	"time"

	"github.com/dmitrymomot/wirehttp/core/ws"
)

// Config holds server configuration with environment variable support.
type Config struct {
	// Server address
	Addr string `env:"SERVER_ADDR" envDefault:":8080"`

	// Timeouts
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Limits
	MaxHeaderBytes int   `env:"SERVER_MAX_HEADER_BYTES" envDefault:"1048576"` // 1MB
	MaxBodyBytes   int64 `env:"SERVER_MAX_BODY_BYTES" envDefault:"10485760"`  // 10MB
	MaxConnections int   `env:"SERVER_MAX_CONNECTIONS" envDefault:"0"`        // 0 = unlimited

	// ReusePort sets SO_REUSEPORT so several processes can share the address.
	ReusePort bool `env:"SERVER_REUSE_PORT" envDefault:"false"`

	// TLS from files (optional)
	TLSCertFile string `env:"SERVER_TLS_CERT_FILE" envDefault:""`
	TLSKeyFile  string `env:"SERVER_TLS_KEY_FILE" envDefault:""`

	// TLS from Let's Encrypt (optional, ignored when cert files are set)
	AutoCertDomains  []string `env:"SERVER_AUTOCERT_DOMAINS" envSeparator:","`
	AutoCertEmail    string   `env:"SERVER_AUTOCERT_EMAIL" envDefault:""`
	AutoCertCacheDir string   `env:"SERVER_AUTOCERT_CACHE_DIR" envDefault:"certs"`

	WebSocket ws.Config
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		ReadTimeout:     DefaultReadTimeout,
		WriteTimeout:    DefaultWriteTimeout,
		IdleTimeout:     DefaultIdleTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
		MaxHeaderBytes:  DefaultMaxHeaderBytes,
		MaxBodyBytes:    DefaultMaxBodyBytes,
		WebSocket:       ws.DefaultConfig(),
	}
}

// NewFromConfig creates a Server from configuration.
// Additional options can override config values.
func NewFromConfig(cfg Config, opts ...Option) (*Server, error) {
	if cfg.Addr == "" {
		return nil, ErrMissingAddress
	}

	configOpts := []Option{
		WithWebSocketConfig(cfg.WebSocket),
		WithMaxConnections(cfg.MaxConnections),
		WithReusePort(cfg.ReusePort),
	}
	if cfg.ReadTimeout > 0 {
		configOpts = append(configOpts, WithReadTimeout(cfg.ReadTimeout))
	}
	if cfg.WriteTimeout > 0 {
		configOpts = append(configOpts, WithWriteTimeout(cfg.WriteTimeout))
	}
	if cfg.IdleTimeout > 0 {
		configOpts = append(configOpts, WithIdleTimeout(cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout > 0 {
		configOpts = append(configOpts, WithShutdownTimeout(cfg.ShutdownTimeout))
	}
	if cfg.MaxHeaderBytes > 0 {
		configOpts = append(configOpts, WithMaxHeaderBytes(cfg.MaxHeaderBytes))
	}
	if cfg.MaxBodyBytes > 0 {
		configOpts = append(configOpts, WithMaxBodyBytes(cfg.MaxBodyBytes))
	}

	switch {
	case cfg.TLSCertFile != "" && cfg.TLSKeyFile != "":
		tlsConfig, err := NewTLSConfig(WithTLSCertificate(cfg.TLSCertFile, cfg.TLSKeyFile))
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS configuration from files %s, %s: %w",
				cfg.TLSCertFile, cfg.TLSKeyFile, err)
		}
		configOpts = append(configOpts, WithTLS(tlsConfig))
	case len(cfg.AutoCertDomains) > 0:
		configOpts = append(configOpts, WithAutoCert(AutoCertConfig{
			Domains:  cfg.AutoCertDomains,
			Email:    cfg.AutoCertEmail,
			CacheDir: cfg.AutoCertCacheDir,
		}))
	}

	configOpts = append(configOpts, opts...)

	srv := New(cfg.Addr, configOpts...)
	if srv.optErr != nil {
		return nil, srv.optErr
	}
	return srv, nil
}
