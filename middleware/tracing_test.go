package middleware_test

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/dmitrymomot/wirehttp/core/handler"
	"github.com/dmitrymomot/wirehttp/middleware"
)

// recordingProvider hands out tracers that keep every started span.
type recordingProvider struct {
	noop.TracerProvider

	mu    sync.Mutex
	spans []*recordedSpan
}

func (p *recordingProvider) Tracer(string, ...trace.TracerOption) trace.Tracer {
	return &recordingTracer{p: p}
}

func (p *recordingProvider) recorded() []*recordedSpan {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*recordedSpan(nil), p.spans...)
}

type recordingTracer struct {
	noop.Tracer
	p *recordingProvider
}

func (t *recordingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	cfg := trace.NewSpanStartConfig(opts...)
	parent := trace.SpanContextFromContext(ctx)

	traceID := parent.TraceID()
	if !traceID.IsValid() {
		traceID = trace.TraceID{0x0a}
	}
	s := &recordedSpan{
		name:   name,
		kind:   cfg.SpanKind(),
		parent: parent,
		attrs:  map[attribute.Key]attribute.Value{},
		sc: trace.NewSpanContext(trace.SpanContextConfig{
			TraceID:    traceID,
			SpanID:     trace.SpanID{0x0b},
			TraceFlags: trace.FlagsSampled,
		}),
	}
	s.SetAttributes(cfg.Attributes()...)

	t.p.mu.Lock()
	t.p.spans = append(t.p.spans, s)
	t.p.mu.Unlock()
	return trace.ContextWithSpan(ctx, s), s
}

type recordedSpan struct {
	noop.Span

	name   string
	kind   trace.SpanKind
	parent trace.SpanContext
	sc     trace.SpanContext
	attrs  map[attribute.Key]attribute.Value
	status codes.Code
	ended  bool
}

func (s *recordedSpan) SpanContext() trace.SpanContext { return s.sc }
func (s *recordedSpan) IsRecording() bool              { return !s.ended }
func (s *recordedSpan) SetName(name string)            { s.name = name }
func (s *recordedSpan) End(...trace.SpanEndOption)     { s.ended = true }

func (s *recordedSpan) SetStatus(code codes.Code, _ string) { s.status = code }

func (s *recordedSpan) SetAttributes(kv ...attribute.KeyValue) {
	for _, a := range kv {
		s.attrs[a.Key] = a.Value
	}
}

func TestTracing(t *testing.T) {
	t.Parallel()

	tp := &recordingProvider{}
	var inHandler trace.SpanContext
	serve(get("/users/42"), "/users/:id", func(c *handler.Context) error {
		inHandler = trace.SpanContextFromContext(c.Context())
		return ok(c)
	}, middleware.Tracing(middleware.WithTracerProvider(tp)))

	spans := tp.recorded()
	require.Len(t, spans, 1)
	s := spans[0]
	assert.Equal(t, "GET /users/:id", s.name)
	assert.Equal(t, trace.SpanKindServer, s.kind)
	assert.True(t, s.ended)
	assert.Equal(t, codes.Unset, s.status)
	assert.Equal(t, int64(200), s.attrs["http.response.status_code"].AsInt64())
	assert.Equal(t, "/users/:id", s.attrs["http.route"].AsString())
	assert.Equal(t, "/users/42", s.attrs["url.path"].AsString())
	assert.Equal(t, s.sc, inHandler)
}

func TestTracingContinuesRemoteParent(t *testing.T) {
	t.Parallel()

	tp := &recordingProvider{}
	req := get("/")
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")

	serve(req, "/", ok, middleware.Tracing(middleware.WithTracerProvider(tp)))

	spans := tp.recorded()
	require.Len(t, spans, 1)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", spans[0].parent.TraceID().String())
	assert.Equal(t, "00f067aa0ba902b7", spans[0].parent.SpanID().String())
	assert.True(t, spans[0].parent.IsRemote())
	assert.Equal(t, spans[0].parent.TraceID(), spans[0].sc.TraceID())
}

func TestTracingServerError(t *testing.T) {
	t.Parallel()

	tp := &recordingProvider{}
	serve(get("/"), "/", func(c *handler.Context) error {
		c.String(http.StatusBadGateway, "upstream")
		return nil
	}, middleware.Tracing(middleware.WithTracerProvider(tp)))

	spans := tp.recorded()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].status)
}

func TestTracingFilterAndAttributes(t *testing.T) {
	t.Parallel()

	tp := &recordingProvider{}
	mw := middleware.Tracing(
		middleware.WithTracerProvider(tp),
		middleware.WithTracerName("test"),
		middleware.WithTraceFilter(func(c *handler.Context) bool { return c.Path() != "/health" }),
		middleware.WithAttributeExtractor(func(*handler.Context) []attribute.KeyValue {
			return []attribute.KeyValue{attribute.String("tenant", "acme")}
		}),
	)

	serve(get("/health"), "/health", ok, mw)
	assert.Empty(t, tp.recorded())

	serve(get("/missing"), "/health", ok, mw)
	spans := tp.recorded()
	require.Len(t, spans, 1)
	assert.Equal(t, "HTTP GET", spans[0].name)
	assert.Equal(t, "acme", spans[0].attrs["tenant"].AsString())
	assert.Equal(t, int64(404), spans[0].attrs["http.response.status_code"].AsInt64())
}
