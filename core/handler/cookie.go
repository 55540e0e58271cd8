package handler

import "net/http"

// CookieOptions controls the attributes of a Set-Cookie header.
// MaxAge < 0 issues a session cookie, 0 deletes the cookie.
type CookieOptions struct {
	MaxAge   int
	Path     string
	Domain   string
	Secure   bool
	HTTPOnly bool
	SameSite http.SameSite
}

// DefaultCookieOptions returns session-cookie defaults: path "/", HttpOnly, SameSite=Lax.
func DefaultCookieOptions() CookieOptions {
	return CookieOptions{
		MaxAge:   -1,
		Path:     "/",
		HTTPOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// SetCookie appends a Set-Cookie header. Without options the defaults apply.
func (c *Context) SetCookie(name, value string, opts ...CookieOptions) {
	o := DefaultCookieOptions()
	if len(opts) > 0 {
		o = opts[0]
	}

	ck := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     o.Path,
		Domain:   o.Domain,
		Secure:   o.Secure,
		HttpOnly: o.HTTPOnly,
		SameSite: o.SameSite,
	}
	switch {
	case o.MaxAge < 0:
		// session cookie, no Max-Age attribute
	case o.MaxAge == 0:
		ck.MaxAge = -1
	default:
		ck.MaxAge = o.MaxAge
	}

	if v := ck.String(); v != "" {
		c.header.Add("Set-Cookie", v)
	}
}

// DeleteCookie expires a cookie on the client.
func (c *Context) DeleteCookie(name string) {
	o := DefaultCookieOptions()
	o.MaxAge = 0
	c.SetCookie(name, "", o)
}
