package handler

import "net/http"

// FromHTTP adapts a net/http handler. Its response is buffered into the
// context, so handlers relying on http.Flusher or hijacking are not supported.
func FromHTTP(h http.Handler) HandlerFunc {
	return func(c *Context) error {
		// net/http handlers set their own Content-Type or rely on sniffing.
		c.header.Del("Content-Type")
		w := &responseWriter{c: c}
		h.ServeHTTP(w, c.Request())
		if !w.wroteHeader {
			w.WriteHeader(http.StatusOK)
		}
		if c.header.Get("Content-Type") == "" && c.out.Len() > 0 {
			c.header.Set("Content-Type", http.DetectContentType(c.out.Bytes()))
		}
		return nil
	}
}

type responseWriter struct {
	c           *Context
	wroteHeader bool
}

func (w *responseWriter) Header() http.Header { return w.c.header }

func (w *responseWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.c.status = code
}

func (w *responseWriter) Write(p []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.c.out.Write(p)
}
