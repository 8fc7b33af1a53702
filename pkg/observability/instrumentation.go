package observability

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/embedded"
)

// Instrumentation wraps a library's call sites so they emit child spans.
// Instrument is called once by Pipeline.Init.
type Instrumentation interface {
	Name() string
	Instrument(tp trace.TracerProvider, propagator propagation.TextMapPropagator) error
}

// InternalSuppressor is implemented by instrumentations that can suppress
// spans for calls the instrumented library makes to itself.
type InternalSuppressor interface {
	SuppressInternal() bool
}

// InstrumentationConfig holds settings shared by all instrumentations
type InstrumentationConfig struct {
	// SuppressInternalInstrumentation drops spans started while a span of the
	// same instrumentation is already active in the context.
	SuppressInternalInstrumentation bool
}

// SuppressInternal implements InternalSuppressor
func (c InstrumentationConfig) SuppressInternal() bool {
	return c.SuppressInternalInstrumentation
}

// AWSInstrumentation adds otelaws middlewares to an aws.Config. Clients must
// be created from the config after Pipeline.Init for the spans to appear.
type AWSInstrumentation struct {
	InstrumentationConfig
	Config *aws.Config
}

// NewAWSInstrumentation creates the AWS SDK instrumentation for cfg
func NewAWSInstrumentation(cfg *aws.Config, suppressInternal bool) *AWSInstrumentation {
	return &AWSInstrumentation{
		InstrumentationConfig: InstrumentationConfig{SuppressInternalInstrumentation: suppressInternal},
		Config:                cfg,
	}
}

// Name implements Instrumentation
func (a *AWSInstrumentation) Name() string { return "aws-sdk" }

// Instrument implements Instrumentation
func (a *AWSInstrumentation) Instrument(tp trace.TracerProvider, propagator propagation.TextMapPropagator) error {
	otelaws.AppendMiddlewares(&a.Config.APIOptions,
		otelaws.WithTracerProvider(tp),
		otelaws.WithTextMapPropagator(propagator),
	)
	return nil
}

type suppressionKey struct{ scope string }

func isSuppressed(ctx context.Context, scope string) bool {
	active, _ := ctx.Value(suppressionKey{scope: scope}).(bool)
	return active
}

// suppressingProvider hands out tracers that do not nest spans of one scope.
type suppressingProvider struct {
	embedded.TracerProvider

	scope    string
	delegate trace.TracerProvider
}

func newSuppressingProvider(scope string, delegate trace.TracerProvider) trace.TracerProvider {
	return &suppressingProvider{scope: scope, delegate: delegate}
}

func (p *suppressingProvider) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	return &suppressingTracer{scope: p.scope, delegate: p.delegate.Tracer(name, opts...)}
}

type suppressingTracer struct {
	embedded.Tracer

	scope    string
	delegate trace.Tracer
}

func (t *suppressingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if isSuppressed(ctx, t.scope) {
		// Non-recording span carrying the parent's span context: propagation
		// keeps working and End is a no-op.
		parent := trace.SpanContextFromContext(ctx)
		return ctx, trace.SpanFromContext(trace.ContextWithSpanContext(context.Background(), parent))
	}

	ctx, span := t.delegate.Start(ctx, name, opts...)
	return context.WithValue(ctx, suppressionKey{scope: t.scope}, true), span
}
