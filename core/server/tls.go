package server

import (
	"crypto/tls"
	"fmt"
	"os"

	"golang.org/x/crypto/acme/autocert"
)

// DefaultTLSConfig returns a secure default TLS configuration following
// Mozilla's Modern compatibility recommendations.
// Supports TLS 1.2+ with strong cipher suites.
func DefaultTLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		CipherSuites: []uint16{
			// TLS 1.2 only; TLS 1.3 suites are not configurable
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
		},
		CurvePreferences: []tls.CurveID{
			tls.X25519,
			tls.CurveP256,
		},
	}
}

// ModernTLSConfig requires TLS 1.3. Use it when you control all clients.
func ModernTLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS13,
		CurvePreferences: []tls.CurveID{
			tls.X25519,
			tls.CurveP256,
		},
	}
}

// StrictTLSConfig is ModernTLSConfig with session tickets and renegotiation disabled.
func StrictTLSConfig() *tls.Config {
	cfg := ModernTLSConfig()
	cfg.SessionTicketsDisabled = true
	cfg.Renegotiation = tls.RenegotiateNever
	return cfg
}

// TLSConfigOption customizes a TLS configuration built by NewTLSConfig.
type TLSConfigOption func(*tls.Config) error

// WithTLSCertificate loads a certificate and key pair from disk.
func WithTLSCertificate(certFile, keyFile string) TLSConfigOption {
	return func(cfg *tls.Config) error {
		if certFile == "" || keyFile == "" {
			return ErrEmptyCertPath
		}
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrFailedLoadCert, err)
		}
		cfg.Certificates = append(cfg.Certificates, cert)
		return nil
	}
}

// WithTLSMinVersion sets the minimum TLS version.
func WithTLSMinVersion(version uint16) TLSConfigOption {
	return func(cfg *tls.Config) error {
		switch version {
		case tls.VersionTLS10, tls.VersionTLS11, tls.VersionTLS12, tls.VersionTLS13:
			cfg.MinVersion = version
			return nil
		}
		return fmt.Errorf("%w: 0x%04x", ErrInvalidTLSVersion, version)
	}
}

// WithTLSClientAuth configures client certificate authentication.
func WithTLSClientAuth(authType tls.ClientAuthType) TLSConfigOption {
	return func(cfg *tls.Config) error {
		if authType < tls.NoClientCert || authType > tls.RequireAndVerifyClientCert {
			return fmt.Errorf("%w: %d", ErrInvalidClientAuthType, authType)
		}
		cfg.ClientAuth = authType
		return nil
	}
}

// WithTLSServerName sets the expected server name.
func WithTLSServerName(name string) TLSConfigOption {
	return func(cfg *tls.Config) error {
		if name == "" {
			return ErrEmptyServerName
		}
		cfg.ServerName = name
		return nil
	}
}

// NewTLSConfig starts from DefaultTLSConfig and applies opts in order.
// The first failing option aborts construction.
func NewTLSConfig(opts ...TLSConfigOption) (*tls.Config, error) {
	cfg := DefaultTLSConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// AutoCertConfig describes certificates obtained from Let's Encrypt.
type AutoCertConfig struct {
	// Domains the manager may request certificates for. Required.
	Domains []string
	// Email is the ACME account contact. Optional.
	Email string
	// CacheDir stores issued certificates. Defaults to "certs".
	CacheDir string
}

// NewAutoCertTLSConfig returns a TLS configuration that obtains and renews
// certificates through the ACME TLS-ALPN-01 challenge, so no plain HTTP
// listener is needed.
func NewAutoCertTLSConfig(cfg AutoCertConfig) (*tls.Config, *autocert.Manager, error) {
	if len(cfg.Domains) == 0 {
		return nil, nil, ErrNoAutoCertDomain
	}
	dir := cfg.CacheDir
	if dir == "" {
		dir = defaultAutoCertDir
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, nil, fmt.Errorf("failed to create certificate cache %s: %w", dir, err)
	}

	m := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		Cache:      autocert.DirCache(dir),
		HostPolicy: autocert.HostWhitelist(cfg.Domains...),
		Email:      cfg.Email,
	}

	tlsCfg := m.TLSConfig()
	tlsCfg.MinVersion = tls.VersionTLS12
	tlsCfg.CurvePreferences = DefaultTLSConfig().CurvePreferences
	return tlsCfg, m, nil
}
