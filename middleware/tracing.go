package middleware

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmitrymomot/wirehttp/core/handler"
	"github.com/dmitrymomot/wirehttp/core/interceptor"
)

const (
	defaultTracerName = "github.com/dmitrymomot/wirehttp"
	tracingSpanAttr   = "middleware.span"
)

// TracingConfig configures the OpenTelemetry tracing middleware.
type TracingConfig struct {
	// TracerName is the instrumentation name (default: module path)
	TracerName string

	// TracerProvider supplies the tracer (default: the global provider)
	TracerProvider trace.TracerProvider

	// Propagator extracts the remote parent from request headers
	// (default: W3C Trace Context)
	Propagator propagation.TextMapPropagator

	// Filter returns false for requests that should not be traced
	Filter func(c *handler.Context) bool

	// AttributeExtractor adds custom attributes to each span
	AttributeExtractor func(c *handler.Context) []attribute.KeyValue
}

// TracingOption configures the tracing middleware.
type TracingOption func(*TracingConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) TracingOption {
	return func(cfg *TracingConfig) {
		cfg.TracerName = name
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) TracingOption {
	return func(cfg *TracingConfig) {
		cfg.TracerProvider = tp
	}
}

// WithPropagator sets the propagator used to read the parent span.
func WithPropagator(p propagation.TextMapPropagator) TracingOption {
	return func(cfg *TracingConfig) {
		cfg.Propagator = p
	}
}

// WithTraceFilter skips tracing for requests where filter returns false.
func WithTraceFilter(filter func(c *handler.Context) bool) TracingOption {
	return func(cfg *TracingConfig) {
		cfg.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(fn func(c *handler.Context) []attribute.KeyValue) TracingOption {
	return func(cfg *TracingConfig) {
		cfg.AttributeExtractor = fn
	}
}

// Tracing starts a server span for every request. The span continues a
// trace propagated in the request headers and is stored in the request
// context, so handlers reach it with trace.SpanFromContext(c.Context()).
//
// Responses with status 5xx mark the span as failed. The span is renamed
// to "METHOD /route/template" once the route is known.
//
// The tracer comes from the global provider unless one is given:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
//	r.Use(middleware.Tracing(middleware.WithTracerName("api")))
func Tracing(opts ...TracingOption) interceptor.Interceptor {
	cfg := TracingConfig{
		TracerName: defaultTracerName,
		Propagator: propagation.TraceContext{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	var tracer trace.Tracer
	if cfg.TracerProvider != nil {
		tracer = cfg.TracerProvider.Tracer(cfg.TracerName)
	} else {
		tracer = otel.Tracer(cfg.TracerName)
	}

	return interceptor.Funcs{
		Pre: func(c *handler.Context) interceptor.Result {
			if cfg.Filter != nil && !cfg.Filter(c) {
				return interceptor.Continue
			}

			req := c.Request()
			attrs := []attribute.KeyValue{
				attribute.String("http.request.method", req.Method),
				attribute.String("url.path", c.Path()),
				attribute.String("network.peer.address", c.RemoteAddr()),
			}
			if ua := req.UserAgent(); ua != "" {
				attrs = append(attrs, attribute.String("user_agent.original", ua))
			}
			if id, ok := GetRequestID(c); ok {
				attrs = append(attrs, attribute.String("http.request.id", id))
			}
			if cfg.AttributeExtractor != nil {
				attrs = append(attrs, cfg.AttributeExtractor(c)...)
			}

			parent := cfg.Propagator.Extract(c.Context(), propagation.HeaderCarrier(req.Header))
			ctx, span := tracer.Start(parent, "HTTP "+req.Method,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(attrs...),
			)
			c.SetContext(ctx)
			c.Set(tracingSpanAttr, span)
			return interceptor.Continue
		},
		Post: func(c *handler.Context) {
			span, ok := handler.Attr[trace.Span](c, tracingSpanAttr)
			if !ok {
				return
			}
			defer span.End()

			status := c.Status()
			span.SetAttributes(attribute.Int("http.response.status_code", status))
			if route := c.Route(); route != "" {
				span.SetName(c.Method() + " " + route)
				span.SetAttributes(attribute.String("http.route", route))
			}
			if status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(status))
			}
		},
	}
}
