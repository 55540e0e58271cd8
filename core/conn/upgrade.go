package conn

import (
	"bufio"
	"bytes"
	"net"
	"net/http"
	"time"

	"github.com/dmitrymomot/wirehttp/core/errpage"
	"github.com/dmitrymomot/wirehttp/core/logger"
)

// upgrade hands the connection to the WebSocket upgrader. The HTTP session
// ends here whether or not the handshake succeeds.
func (s *Session) upgrade(req *http.Request, start time.Time) {
	path := req.URL.Path
	if s.upgrader == nil || !s.upgrader.Router().Has(path) {
		s.writeError(http.StatusNotFound, errpage.NotFound(path))
		s.observer.RequestDone(req.Method, http.StatusNotFound, time.Since(start))
		return
	}

	_ = s.conn.SetDeadline(time.Time{})
	w := &hijackWriter{s: s, header: make(http.Header)}
	err := s.upgrader.Serve(w, req)
	if w.hijacked {
		s.observer.RequestDone(req.Method, http.StatusSwitchingProtocols, time.Since(start))
		return
	}

	// the handshake was refused before the connection was taken over
	s.logger.Debug("websocket upgrade refused", logger.Path(path), logger.Error(err))
	status := w.status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	s.writeClosing(status, w.header, w.body.Bytes())
	s.observer.RequestDone(req.Method, status, time.Since(start))
}

// hijackWriter is the http.ResponseWriter given to the upgrader. Error
// responses are buffered; Hijack surrenders the raw connection.
type hijackWriter struct {
	s        *Session
	header   http.Header
	status   int
	body     bytes.Buffer
	hijacked bool
}

func (w *hijackWriter) Header() http.Header { return w.header }

func (w *hijackWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
}

func (w *hijackWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.body.Write(p)
}

func (w *hijackWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	w.hijacked = true
	w.s.setState(StateUpgraded)
	return w.s.conn, bufio.NewReadWriter(w.s.br, w.s.bw), nil
}
