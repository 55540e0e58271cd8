package middleware

import (
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/dmitrymomot/wirehttp/core/errpage"
	"github.com/dmitrymomot/wirehttp/core/handler"
	"github.com/dmitrymomot/wirehttp/core/interceptor"
)

const clientIPAttr = "middleware.client_ip"

// ipHeaders are consulted in order before falling back to the peer address.
var ipHeaders = []string{
	"CF-Connecting-IP",
	"DO-Connecting-IP",
	"X-Forwarded-For",
	"X-Real-IP",
}

// ClientIPConfig configures the client IP extraction middleware.
type ClientIPConfig struct {
	// Skip defines a function to skip middleware execution for specific requests
	Skip func(c *handler.Context) bool
	// TrustedProxies limits header inspection to peers in these ranges.
	// When empty, proxy headers are always honored.
	TrustedProxies []netip.Prefix
	// HeaderName specifies the response header name for the client IP (default: "X-Client-IP")
	HeaderName string
	// StoreInHeader determines whether to include the IP in response headers
	StoreInHeader bool
	// ValidateFunc rejects requests with 403 when it returns an error
	ValidateFunc func(c *handler.Context, ip string) error
}

// ClientIP extracts the client address and stores it on the context.
func ClientIP() interceptor.Interceptor {
	return ClientIPWithConfig(ClientIPConfig{})
}

// ClientIPWithConfig creates a client IP extraction middleware with custom configuration.
func ClientIPWithConfig(cfg ClientIPConfig) interceptor.Interceptor {
	if cfg.HeaderName == "" {
		cfg.HeaderName = "X-Client-IP"
	}

	return interceptor.Funcs{
		Pre: func(c *handler.Context) interceptor.Result {
			if cfg.Skip != nil && cfg.Skip(c) {
				return interceptor.Continue
			}

			ip := extractIP(c.Request(), cfg.TrustedProxies)
			c.Set(clientIPAttr, ip)

			if cfg.ValidateFunc != nil {
				if err := cfg.ValidateFunc(c, ip); err != nil {
					errpage.Write(c, http.StatusForbidden, errpage.Forbidden(c.Path()))
					return interceptor.Stop
				}
			}
			return interceptor.Continue
		},
		Post: func(c *handler.Context) {
			if !cfg.StoreInHeader {
				return
			}
			if ip, ok := GetClientIP(c); ok && ip != "" {
				c.SetHeader(cfg.HeaderName, ip)
			}
		},
	}
}

// GetClientIP returns the address stored by ClientIP.
func GetClientIP(c *handler.Context) (string, bool) {
	return handler.Attr[string](c, clientIPAttr)
}

// extractIP returns the client address of r. Proxy headers are honored only
// when the peer is trusted; an empty trusted list trusts every peer.
func extractIP(r *http.Request, trusted []netip.Prefix) string {
	remote := parseIP(r.RemoteAddr)
	if len(trusted) == 0 || isTrusted(remote, trusted) {
		for _, name := range ipHeaders {
			value := r.Header.Get(name)
			if value == "" {
				continue
			}
			// The left-most X-Forwarded-For entry is the originating client.
			if first, _, found := strings.Cut(value, ","); found {
				value = first
			}
			if ip := parseIP(value); ip.IsValid() && !ip.IsUnspecified() {
				return ip.String()
			}
		}
	}
	if !remote.IsValid() {
		return ""
	}
	return remote.String()
}

func isTrusted(ip netip.Addr, trusted []netip.Prefix) bool {
	if !ip.IsValid() {
		return false
	}
	for _, p := range trusted {
		if p.Contains(ip) {
			return true
		}
	}
	return false
}

// parseIP accepts a bare address, host:port or [v6]:port and drops any zone.
func parseIP(value string) netip.Addr {
	value = strings.Trim(strings.TrimSpace(value), "\"")
	if value == "" || strings.EqualFold(value, "unknown") {
		return netip.Addr{}
	}
	if host, _, err := net.SplitHostPort(value); err == nil {
		value = host
	}
	value = strings.Trim(value, "[]")
	ip, err := netip.ParseAddr(value)
	if err != nil {
		return netip.Addr{}
	}
	return ip.WithZone("").Unmap()
}
