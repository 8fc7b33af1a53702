// Package persistence holds repository decorators shared by every store.
package persistence

import (
	"context"
	"time"

	"profile-backend/application/ports"
	"profile-backend/domain/core/entities"
	pkgerrors "profile-backend/pkg/errors"
	"profile-backend/pkg/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const tracerName = "profile-backend/repository"

// TracedRepository emits a client span per repository call. It is an
// observability.Instrumentation: spans appear once the pipeline installed it.
type TracedRepository struct {
	observability.InstrumentationConfig

	inner     ports.ProfileRepository
	tracer    trace.Tracer
	collector *observability.Collector
	system    string
}

// NewTracedRepository wraps inner. system names the backing store (dynamodb, memory).
func NewTracedRepository(inner ports.ProfileRepository, system string, collector *observability.Collector, suppressInternal bool) *TracedRepository {
	return &TracedRepository{
		InstrumentationConfig: observability.InstrumentationConfig{SuppressInternalInstrumentation: suppressInternal},
		inner:                 inner,
		tracer:                noop.NewTracerProvider().Tracer(tracerName),
		collector:             collector,
		system:                system,
	}
}

// Name implements observability.Instrumentation
func (r *TracedRepository) Name() string { return "repository" }

// Instrument implements observability.Instrumentation
func (r *TracedRepository) Instrument(tp trace.TracerProvider, _ propagation.TextMapPropagator) error {
	r.tracer = tp.Tracer(tracerName)
	return nil
}

// Create implements ports.ProfileRepository
func (r *TracedRepository) Create(ctx context.Context, profile *entities.Profile) error {
	ctx, span := r.start(ctx, "Create", attribute.String("profile.id", profile.ID))
	defer span.End()

	start := time.Now()
	err := r.inner.Create(ctx, profile)
	r.finish(span, "Create", start, err)
	return err
}

// GetByID implements ports.ProfileRepository
func (r *TracedRepository) GetByID(ctx context.Context, id string) (*entities.Profile, error) {
	ctx, span := r.start(ctx, "GetByID", attribute.String("profile.id", id))
	defer span.End()

	start := time.Now()
	profile, err := r.inner.GetByID(ctx, id)
	r.finish(span, "GetByID", start, err)
	return profile, err
}

func (r *TracedRepository) start(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs,
		attribute.String("db.system.name", r.system),
		attribute.String("db.operation.name", operation),
	)
	return r.tracer.Start(ctx, "repository."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

func (r *TracedRepository) finish(span trace.Span, operation string, start time.Time, err error) {
	// Missing profiles are an expected outcome, not a failure of the store.
	if err != nil && pkgerrors.IsNotFound(err) {
		err = nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if r.collector != nil {
		r.collector.RecordDBOperation(operation, time.Since(start), err)
	}
}

var (
	_ ports.ProfileRepository       = (*TracedRepository)(nil)
	_ observability.Instrumentation = (*TracedRepository)(nil)
)
