package observability

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// TracerName is the instrumentation scope of the server spans
const TracerName = "profile-backend/http"

// Span attribute keys set by the tracing middleware
const (
	AttrMethod     = attribute.Key("method")
	AttrURL        = attribute.Key("url")
	AttrSignal     = attribute.Key("signal")
	AttrInitTime   = attribute.Key("initTime")
	AttrFinishTime = attribute.Key("finishTime")
	AttrInstanceID = attribute.Key("instance.id")
	AttrAborted    = attribute.Key("http.aborted")
)

// TracingOptions configures the tracing middleware
type TracingOptions struct {
	TracerProvider trace.TracerProvider
	Propagator     propagation.TextMapPropagator
	// InstanceID is read once per request
	InstanceID func() string
	Logger     *zap.Logger
	// Now is used for initTime and finishTime; defaults to time.Now
	Now func() time.Time
}

// Middleware returns the tracing middleware bound to this pipeline. Call it
// after Init, otherwise spans go to a no-op provider.
func (p *Pipeline) Middleware() func(http.Handler) http.Handler {
	return Tracing(TracingOptions{
		TracerProvider: p.TracerProvider(),
		Propagator:     p.Propagator(),
		InstanceID:     p.InstanceID,
		Logger:         p.logger,
	})
}

// Tracing starts one server span per request, named after the request path,
// and ends it exactly once when the handler returns, panics or the client
// goes away.
func Tracing(opts TracingOptions) func(http.Handler) http.Handler {
	tracer := opts.TracerProvider.Tracer(TracerName)
	propagator := opts.Propagator
	if propagator == nil {
		propagator = propagation.TraceContext{}
	}
	instanceID := opts.InstanceID
	if instanceID == nil {
		instanceID = func() string { return FallbackInstanceID }
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

			initTime := now()
			ctx, span := tracer.Start(ctx, r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithTimestamp(initTime),
				trace.WithAttributes(
					AttrMethod.String(r.Method),
					AttrURL.String(r.URL.RequestURI()),
					AttrSignal.String("trace"),
					AttrInitTime.Int64(initTime.UnixMilli()),
					AttrInstanceID.String(instanceID()),
					attribute.String("http.host", r.Host),
					attribute.String("http.user_agent", r.UserAgent()),
				),
			)

			propagator.Inject(ctx, propagation.HeaderCarrier(w.Header()))
			if sc := span.SpanContext(); sc.HasTraceID() {
				w.Header().Set("X-Trace-ID", sc.TraceID().String())
			}

			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			r = r.WithContext(ctx)

			var once sync.Once
			finish := func(recovered any) {
				once.Do(func() {
					finishTime := now()
					status := ww.Status()
					if status == 0 {
						status = http.StatusOK
					}
					span.SetAttributes(
						AttrFinishTime.Int64(finishTime.UnixMilli()),
						attribute.Int("http.status_code", status),
						attribute.Int("http.response_size", ww.BytesWritten()),
					)
					if rctx := chi.RouteContext(r.Context()); rctx != nil {
						if pattern := rctx.RoutePattern(); pattern != "" {
							span.SetAttributes(attribute.String("http.route", pattern))
						}
					}

					switch {
					case recovered != nil:
						span.RecordError(fmt.Errorf("panic: %v", recovered))
						span.SetStatus(codes.Error, "handler panicked")
					case status >= http.StatusInternalServerError:
						span.SetStatus(codes.Error, http.StatusText(status))
					}
					if err := r.Context().Err(); err != nil {
						span.SetAttributes(AttrAborted.Bool(true))
						span.AddEvent("request aborted", trace.WithAttributes(attribute.String("reason", err.Error())))
					}

					span.End(trace.WithTimestamp(finishTime))
				})
			}

			defer func() {
				if rec := recover(); rec != nil {
					finish(rec)
					panic(rec)
				}
				finish(nil)
			}()

			logger.Debug(fmt.Sprintf("Responding to %s", r.URL.Path),
				zap.String("method", r.Method),
				zap.String("trace_id", span.SpanContext().TraceID().String()),
			)
			next.ServeHTTP(ww, r)
		})
	}
}
