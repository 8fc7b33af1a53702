package di

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"profile-backend/application/ports"
	"profile-backend/infrastructure/config"
	"profile-backend/infrastructure/messaging/eventbridge"
	"profile-backend/infrastructure/persistence"
	"profile-backend/infrastructure/persistence/dynamodb"
	"profile-backend/infrastructure/persistence/memory"
	"profile-backend/interfaces/http/rest/handlers"
	"profile-backend/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"
)

// ProvideLogLevel creates the runtime-adjustable log level
func ProvideLogLevel(cfg *config.Config) zap.AtomicLevel {
	return observability.NewLevel(cfg.LoggingOptions())
}

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config, level zap.AtomicLevel) (*zap.Logger, error) {
	return observability.NewLogger(cfg.LoggingOptions(), level)
}

// ProvideHTTPClient creates the HTTP client shared by the AWS SDK clients.
// The store closes its idle connections on Disconnect.
func ProvideHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   16,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   5 * time.Second,
			ExpectContinueTimeout: time.Second,
		},
	}
}

// ProvideAWSConfig creates AWS configuration. The SDK retries are disabled:
// every store operation is a single attempt.
func ProvideAWSConfig(ctx context.Context, cfg *config.Config, httpClient *http.Client) (*aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWS.Region),
		awsconfig.WithHTTPClient(httpClient),
		awsconfig.WithRetryMaxAttempts(1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	return &awsCfg, nil
}

// ProvidePipeline creates and initializes the telemetry pipeline. AWS clients
// depend on it so they are built from the instrumented config.
func ProvidePipeline(ctx context.Context, cfg *config.Config, awsCfg *aws.Config, logger *zap.Logger) (*observability.Pipeline, error) {
	pipeline := observability.NewPipeline(cfg.TelemetryConfig(), logger,
		observability.WithInstrumentations(
			observability.NewAWSInstrumentation(awsCfg, cfg.Tracing.SuppressInternalInstrumentation),
		),
	)
	if err := pipeline.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	return pipeline, nil
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg *aws.Config, cfg *config.Config, _ *observability.Pipeline) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(*awsCfg, func(o *awsdynamodb.Options) {
		if cfg.Database.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Database.Endpoint)
		}
	})
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg *aws.Config, _ *observability.Pipeline) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(*awsCfg)
}

// ProvideProfileStore creates the document store selected by DB_DRIVER
func ProvideProfileStore(cfg *config.Config, client *awsdynamodb.Client, httpClient *http.Client, logger *zap.Logger) ports.ProfileStore {
	if cfg.Database.Driver == config.DriverMemory {
		logger.Warn("Using the in-memory profile store; data is lost on exit")
		return memory.NewProfileRepository()
	}
	return dynamodb.NewStore(client, cfg.Database.TableName, logger,
		dynamodb.WithIdleConnectionCloser(httpClient.CloseIdleConnections),
	)
}

// ProvideDatabase exposes the store's connection lifecycle
func ProvideDatabase(store ports.ProfileStore) ports.Database {
	return store
}

// ProvideCollector creates the Prometheus collector, or nil when metrics are off
func ProvideCollector(cfg *config.Config) *observability.Collector {
	if !cfg.Metrics.Enabled {
		return nil
	}
	return observability.NewCollector(cfg.Metrics.Namespace)
}

// ProvideProfileRepository wraps the store with tracing and, when enabled,
// a circuit breaker.
func ProvideProfileRepository(
	cfg *config.Config,
	store ports.ProfileStore,
	pipeline *observability.Pipeline,
	collector *observability.Collector,
	logger *zap.Logger,
) (ports.ProfileRepository, error) {
	traced := persistence.NewTracedRepository(store, cfg.Database.Driver, collector, cfg.Tracing.SuppressInternalInstrumentation)
	if err := pipeline.Register(traced); err != nil {
		return nil, err
	}

	if !cfg.Database.Breaker.Enabled {
		return traced, nil
	}

	breaker := persistence.DefaultBreakerConfig()
	b := cfg.Database.Breaker
	if b.MaxRequests > 0 {
		breaker.MaxRequests = b.MaxRequests
	}
	if b.Interval > 0 {
		breaker.Interval = b.Interval
	}
	if b.Timeout > 0 {
		breaker.Timeout = b.Timeout
	}
	if b.FailureThreshold > 0 {
		breaker.FailureThreshold = b.FailureThreshold
	}
	if b.MinRequests > 0 {
		breaker.MinRequests = b.MinRequests
	}
	return persistence.NewBreakerRepository(traced, breaker, logger), nil
}

// ProvideEventPublisher publishes to EventBridge when a bus is configured
func ProvideEventPublisher(cfg *config.Config, client *awseventbridge.Client, logger *zap.Logger) ports.EventPublisher {
	if cfg.Events.EventBusName == "" {
		return ports.NoopPublisher{}
	}
	return eventbridge.NewPublisher(client, cfg.Events.EventBusName, logger)
}

// ProvideProfileHandler creates the profile handler
func ProvideProfileHandler(
	repo ports.ProfileRepository,
	publisher ports.EventPublisher,
	collector *observability.Collector,
	logger *zap.Logger,
) *handlers.ProfileHandler {
	return handlers.NewProfileHandler(repo, publisher, collector, logger)
}

// ProvideHealthHandler creates the health handler
func ProvideHealthHandler(db ports.Database) *handlers.HealthHandler {
	return handlers.NewHealthHandler(db)
}

// ProvideBlockHandler creates the blocking endpoints, in whole seconds
func ProvideBlockHandler(logger *zap.Logger) *handlers.BlockHandler {
	return handlers.NewBlockHandler(time.Second, logger)
}
