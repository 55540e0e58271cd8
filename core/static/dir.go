package static

import (
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dmitrymomot/wirehttp/core/errpage"
	"github.com/dmitrymomot/wirehttp/core/handler"
	"github.com/dmitrymomot/wirehttp/core/logger"
)

// DefaultIndex is the document served for directory requests.
const DefaultIndex = "index.html"

// Resolver may fully answer a request before routing.
type Resolver interface {
	Resolve(c *handler.Context) bool
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(c *handler.Context) bool

func (f ResolverFunc) Resolve(c *handler.Context) bool { return f(c) }

// Dir resolves requests against files under a root directory.
type Dir struct {
	root   string
	prefix string
	index  string
	logger *slog.Logger
}

// DirOption configures a Dir.
type DirOption func(*Dir)

// WithPrefix mounts the directory under a URL prefix. Requests outside the
// prefix are ignored; missing files inside it answer 404.
func WithPrefix(prefix string) DirOption {
	return func(d *Dir) {
		d.prefix = normalizePrefix(prefix)
	}
}

// WithIndex sets the directory index document name.
func WithIndex(name string) DirOption {
	return func(d *Dir) {
		if name != "" {
			d.index = name
		}
	}
}

// WithLogger sets the logger used for file open failures.
func WithLogger(l *slog.Logger) DirOption {
	return func(d *Dir) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDir creates a resolver for root, which must be an existing directory.
func NewDir(root string, opts ...DirOption) (*Dir, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := validateRoot(abs); err != nil {
		return nil, err
	}

	d := &Dir{
		root:   abs,
		index:  DefaultIndex,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Root returns the absolute root directory.
func (d *Dir) Root() string { return d.root }

// Resolve answers c from the filesystem when possible.
func (d *Dir) Resolve(c *handler.Context) bool {
	if c.Method() != http.MethodGet && c.Method() != http.MethodHead {
		return false
	}

	p := c.Path()
	if d.prefix != "" {
		if p != d.prefix && !strings.HasPrefix(p, d.prefix+"/") {
			return false
		}
		p = strings.TrimPrefix(p, d.prefix)
	}
	owned := d.prefix != ""

	full := filepath.Join(d.root, filepath.FromSlash(p))
	if strings.Contains(p, "\x00") || validatePathSecurity(d.root, full) != nil {
		errpage.Write(c, http.StatusForbidden, errpage.Forbidden(c.Path()))
		return true
	}

	info, err := os.Stat(full)
	if err == nil && info.IsDir() {
		full = filepath.Join(full, d.index)
		info, err = os.Stat(full)
	}
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
			if owned {
				errpage.Write(c, http.StatusNotFound, errpage.NotFound(c.Path()))
				return true
			}
			return false
		}
		d.fail(c, full, err)
		return true
	}
	if info.IsDir() {
		// an index "file" that is itself a directory is never served
		if owned {
			errpage.Write(c, http.StatusNotFound, errpage.NotFound(c.Path()))
			return true
		}
		return false
	}

	modTime := info.ModTime().UTC().Truncate(time.Second)
	if notModified(c, modTime) {
		c.Reset()
		c.SetStatus(http.StatusNotModified)
		c.ResponseHeader().Del("Content-Type")
		c.SetHeader("Last-Modified", modTime.Format(http.TimeFormat))
		return true
	}

	f, err := os.Open(full)
	if err != nil {
		d.fail(c, full, err)
		return true
	}

	ct := mime.TypeByExtension(filepath.Ext(full))
	if ct == "" {
		ct = "application/octet-stream"
	}

	c.Reset()
	c.SetStatus(http.StatusOK)
	c.SetContentType(ct)
	c.SetHeader("Last-Modified", modTime.Format(http.TimeFormat))
	c.SetBodyReader(f, info.Size())
	return true
}

func (d *Dir) fail(c *handler.Context, file string, err error) {
	d.logger.ErrorContext(c.Context(), "static file open failed",
		logger.Path(file),
		logger.Error(err),
	)
	errpage.Write(c, http.StatusInternalServerError, errpage.InternalError())
}

func notModified(c *handler.Context, modTime time.Time) bool {
	v, ok := c.Header("If-Modified-Since")
	if !ok {
		return false
	}
	t, err := http.ParseTime(v)
	if err != nil {
		return false
	}
	return !modTime.After(t)
}
