package observability

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/contrib/propagators/aws/xray"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

// Supported trace exporters
const (
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
	ExporterNone   = "none"
)

// ErrAlreadyInitialized is returned by a second call to Init
var ErrAlreadyInitialized = errors.New("telemetry pipeline already initialized")

// TracingConfig holds tracing configuration
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	// Exporter is one of stdout, otlp or none
	Exporter string
	// Endpoint is the OTLP gRPC endpoint (host:port)
	Endpoint string
	Insecure bool
	Headers  map[string]string

	SampleRate         float64
	BatchTimeout       time.Duration
	ExportTimeout      time.Duration
	MaxQueueSize       int
	MaxExportBatchSize int

	MetadataURL  string
	ProbeTimeout time.Duration

	// RegisterGlobal also installs the provider and propagator as OTel globals
	RegisterGlobal bool
}

// DefaultTracingConfig returns the configuration used when nothing is set
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName:        "profile-backend",
		Environment:        "development",
		Exporter:           ExporterStdout,
		Endpoint:           "localhost:4317",
		Insecure:           true,
		SampleRate:         1.0,
		BatchTimeout:       5 * time.Second,
		ExportTimeout:      30 * time.Second,
		MaxQueueSize:       sdktrace.DefaultMaxQueueSize,
		MaxExportBatchSize: sdktrace.DefaultMaxExportBatchSize,
		MetadataURL:        DefaultMetadataURL,
		ProbeTimeout:       DefaultProbeTimeout,
	}
}

// Pipeline owns the tracer provider, its exporter and the instrumentations.
// It is created explicitly and passed to the server and shutdown coordinator.
type Pipeline struct {
	config     TracingConfig
	logger     *zap.Logger
	identifier InstanceIdentifier

	exporter         sdktrace.SpanExporter
	extraProcessors  []sdktrace.SpanProcessor
	instrumentations []Instrumentation

	mu         sync.Mutex
	provider   *sdktrace.TracerProvider
	resource   *resource.Resource
	propagator propagation.TextMapPropagator
	instanceID atomic.Pointer[string]
	shutdown   bool
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithInstanceIdentifier overrides the metadata probe used for service.instance.id
func WithInstanceIdentifier(identifier InstanceIdentifier) Option {
	return func(p *Pipeline) {
		p.identifier = identifier
	}
}

// WithExporter uses exporter instead of the one named in the configuration
func WithExporter(exporter sdktrace.SpanExporter) Option {
	return func(p *Pipeline) {
		p.exporter = exporter
	}
}

// WithSpanProcessor registers an additional processor next to the batcher
func WithSpanProcessor(processor sdktrace.SpanProcessor) Option {
	return func(p *Pipeline) {
		p.extraProcessors = append(p.extraProcessors, processor)
	}
}

// WithInstrumentations adds library instrumentations installed during Init
func WithInstrumentations(instrumentations ...Instrumentation) Option {
	return func(p *Pipeline) {
		p.instrumentations = append(p.instrumentations, instrumentations...)
	}
}

// NewPipeline creates an uninitialized pipeline
func NewPipeline(cfg TracingConfig, logger *zap.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pipeline{
		config:     cfg,
		logger:     logger,
		identifier: NewMetadataProbe(cfg.MetadataURL, cfg.ProbeTimeout),
		propagator: xray.Propagator{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Init resolves the resource, builds the exporter and tracer provider and
// installs every instrumentation. It must finish before the server starts.
func (p *Pipeline) Init(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.provider != nil || p.shutdown {
		return ErrAlreadyInitialized
	}

	resolver := NewResourceResolver(ResourceConfig{
		ServiceName:    p.config.ServiceName,
		ServiceVersion: p.config.ServiceVersion,
		Environment:    p.config.Environment,
	}, p.identifier, p.config.ProbeTimeout, p.logger)
	res, instanceID := resolver.Resolve(ctx)

	exporter := p.exporter
	if exporter == nil {
		var err error
		exporter, err = createExporter(ctx, p.config)
		if err != nil {
			return fmt.Errorf("failed to create exporter: %w", err)
		}
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithIDGenerator(xray.NewIDGenerator()),
		sdktrace.WithSampler(createSampler(p.config)),
	}
	if exporter != nil {
		opts = append(opts, sdktrace.WithBatcher(exporter, batchOptions(p.config)...))
	}
	for _, sp := range p.extraProcessors {
		opts = append(opts, sdktrace.WithSpanProcessor(sp))
	}
	provider := sdktrace.NewTracerProvider(opts...)

	for _, inst := range p.instrumentations {
		if err := p.install(provider, inst); err != nil {
			_ = provider.Shutdown(ctx)
			return err
		}
	}

	if p.config.RegisterGlobal {
		otel.SetTracerProvider(provider)
		otel.SetTextMapPropagator(p.propagator)
		logger := p.logger
		otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
			logger.Warn("OpenTelemetry error", zap.Error(err))
		}))
	}

	p.provider = provider
	p.resource = res
	p.instanceID.Store(&instanceID)

	p.logger.Info("Telemetry pipeline initialized",
		zap.String("service", p.config.ServiceName),
		zap.String("instance_id", instanceID),
		zap.String("exporter", exporterName(p)),
		zap.Int("instrumentations", len(p.instrumentations)),
	)
	return nil
}

// Register installs an instrumentation on an initialized pipeline. It is for
// components that can only be built after Init, such as repositories whose
// AWS clients need the SDK instrumentation in place.
func (p *Pipeline) Register(inst Instrumentation) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.provider == nil {
		return errors.New("telemetry pipeline not initialized")
	}
	if err := p.install(p.provider, inst); err != nil {
		return err
	}
	p.instrumentations = append(p.instrumentations, inst)
	return nil
}

func (p *Pipeline) install(provider *sdktrace.TracerProvider, inst Instrumentation) error {
	var tp trace.TracerProvider = provider
	if s, ok := inst.(InternalSuppressor); ok && s.SuppressInternal() {
		tp = newSuppressingProvider(inst.Name(), provider)
	}
	if err := inst.Instrument(tp, p.propagator); err != nil {
		return fmt.Errorf("failed to install %s instrumentation: %w", inst.Name(), err)
	}
	p.logger.Debug("Instrumentation installed", zap.String("instrumentation", inst.Name()))
	return nil
}

// InstanceID returns the resolved service.instance.id, or the fallback before Init
func (p *Pipeline) InstanceID() string {
	if id := p.instanceID.Load(); id != nil {
		return *id
	}
	return FallbackInstanceID
}

// TracerProvider returns the SDK provider, or a no-op provider before Init
func (p *Pipeline) TracerProvider() trace.TracerProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.provider == nil {
		return noop.NewTracerProvider()
	}
	return p.provider
}

// Tracer returns a named tracer from TracerProvider
func (p *Pipeline) Tracer(name string) trace.Tracer {
	return p.TracerProvider().Tracer(name)
}

// Propagator returns the X-Ray header propagator
func (p *Pipeline) Propagator() propagation.TextMapPropagator {
	return p.propagator
}

// Resource returns the resolved resource, nil before Init
func (p *Pipeline) Resource() *resource.Resource {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resource
}

// ForceFlush exports every finished span still buffered by the batcher
func (p *Pipeline) ForceFlush(ctx context.Context) error {
	p.mu.Lock()
	provider := p.provider
	p.mu.Unlock()

	if provider == nil {
		return nil
	}
	return provider.ForceFlush(ctx)
}

// Shutdown flushes and stops the exporter. Safe to call more than once.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	provider := p.provider
	p.provider = nil
	p.shutdown = true
	p.mu.Unlock()

	if provider == nil {
		return nil
	}
	if err := provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown tracer provider: %w", err)
	}
	p.logger.Info("Tracing terminated")
	return nil
}

// createExporter creates the exporter named in the configuration; none yields nil
func createExporter(ctx context.Context, cfg TracingConfig) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case ExporterStdout, "":
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	case ExporterOTLP:
		return createOTLPExporter(ctx, cfg)
	case ExporterNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported trace exporter: %s", cfg.Exporter)
	}
}

// createOTLPExporter creates an OTLP exporter. The gRPC connection is lazy, so
// an unreachable collector does not block startup.
func createOTLPExporter(ctx context.Context, cfg TracingConfig) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
	}
	if cfg.ExportTimeout > 0 {
		opts = append(opts, otlptracegrpc.WithTimeout(cfg.ExportTimeout))
	}

	return otlptrace.New(ctx, otlptracegrpc.NewClient(opts...))
}

func createSampler(cfg TracingConfig) sdktrace.Sampler {
	rate := cfg.SampleRate
	if rate <= 0 || rate > 1 {
		rate = 1
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
}

func batchOptions(cfg TracingConfig) []sdktrace.BatchSpanProcessorOption {
	var opts []sdktrace.BatchSpanProcessorOption
	if cfg.BatchTimeout > 0 {
		opts = append(opts, sdktrace.WithBatchTimeout(cfg.BatchTimeout))
	}
	if cfg.ExportTimeout > 0 {
		opts = append(opts, sdktrace.WithExportTimeout(cfg.ExportTimeout))
	}
	if cfg.MaxQueueSize > 0 {
		opts = append(opts, sdktrace.WithMaxQueueSize(cfg.MaxQueueSize))
	}
	if cfg.MaxExportBatchSize > 0 {
		opts = append(opts, sdktrace.WithMaxExportBatchSize(cfg.MaxExportBatchSize))
	}
	return opts
}

func exporterName(p *Pipeline) string {
	if p.exporter != nil {
		return "custom"
	}
	if p.config.Exporter == "" {
		return ExporterStdout
	}
	return p.config.Exporter
}
