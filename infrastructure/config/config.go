// Package config loads the service configuration.
//
// Precedence, lowest first: Default(), the YAML file named by CONFIG_FILE,
// environment variables. Every field has a prefixed variable (SERVER_PORT,
// OTEL_EXPORTER, DB_TABLE_NAME) and also accepts the short name (PORT,
// EXPORTER, TABLE_NAME).
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	pkgerrors "profile-backend/pkg/errors"
	"profile-backend/pkg/observability"
	"profile-backend/pkg/utils"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Environment names
const (
	Development = "development"
	Staging     = "staging"
	Production  = "production"
	Test        = "test"
)

// Database drivers
const (
	DriverDynamoDB = "dynamodb"
	DriverMemory   = "memory"
)

// ConfigFileEnv names the optional YAML configuration file
const ConfigFileEnv = "CONFIG_FILE"

// Config holds all application configuration
type Config struct {
	Environment    string `yaml:"environment" envconfig:"ENVIRONMENT" validate:"required,oneof=development staging production test"`
	ServiceName    string `yaml:"service_name" envconfig:"SERVICE_NAME" validate:"required"`
	ServiceVersion string `yaml:"service_version" envconfig:"SERVICE_VERSION"`

	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOG"`
	Tracing  TracingConfig  `yaml:"tracing" envconfig:"OTEL"`
	Database DatabaseConfig `yaml:"database" envconfig:"DB"`
	AWS      AWSConfig      `yaml:"aws" envconfig:"AWS"`
	Events   EventsConfig   `yaml:"events" envconfig:"EVENTS"`
	Metrics  MetricsConfig  `yaml:"metrics" envconfig:"METRICS"`
	CORS     CORSConfig     `yaml:"cors" envconfig:"CORS"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host         string `yaml:"host" envconfig:"HOST"`
	Port         int    `yaml:"port" envconfig:"PORT" validate:"gte=0,lte=65535"`
	MaxBodyBytes int64  `yaml:"max_body_bytes" envconfig:"MAX_BODY_BYTES" validate:"gt=0"`
	// MaxInFlight caps concurrently served requests; 0 disables the gate
	MaxInFlight     int           `yaml:"max_in_flight" envconfig:"MAX_IN_FLIGHT" validate:"gte=0"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gte=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gte=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" validate:"gte=0"`
	// ShutdownTimeout bounds the drain of in-flight requests; 0 waits for all of them
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" validate:"gte=0"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
}

// TracingConfig holds telemetry settings
type TracingConfig struct {
	Exporter                        string            `yaml:"exporter" envconfig:"EXPORTER" validate:"oneof=stdout otlp none"`
	Endpoint                        string            `yaml:"endpoint" envconfig:"EXPORTER_OTLP_ENDPOINT"`
	Insecure                        bool              `yaml:"insecure" envconfig:"EXPORTER_OTLP_INSECURE"`
	Headers                         map[string]string `yaml:"headers" envconfig:"EXPORTER_OTLP_HEADERS"`
	SampleRate                      float64           `yaml:"sample_rate" envconfig:"SAMPLE_RATE" validate:"gte=0,lte=1"`
	BatchTimeout                    time.Duration     `yaml:"batch_timeout" envconfig:"BATCH_TIMEOUT" validate:"gte=0"`
	ExportTimeout                   time.Duration     `yaml:"export_timeout" envconfig:"EXPORT_TIMEOUT" validate:"gte=0"`
	MaxQueueSize                    int               `yaml:"max_queue_size" envconfig:"MAX_QUEUE_SIZE" validate:"gte=0"`
	MaxExportBatchSize              int               `yaml:"max_export_batch_size" envconfig:"MAX_EXPORT_BATCH_SIZE" validate:"gte=0"`
	SuppressInternalInstrumentation bool              `yaml:"suppress_internal_instrumentation" envconfig:"SUPPRESS_INTERNAL_INSTRUMENTATION"`
	MetadataURL                     string            `yaml:"metadata_url" envconfig:"METADATA_URL" validate:"required,url"`
	ProbeTimeout                    time.Duration     `yaml:"probe_timeout" envconfig:"METADATA_TIMEOUT" validate:"gt=0"`
}

// DatabaseConfig holds document store settings
type DatabaseConfig struct {
	Driver    string `yaml:"driver" envconfig:"DRIVER" validate:"oneof=dynamodb memory"`
	TableName string `yaml:"table_name" envconfig:"TABLE_NAME" validate:"required_if=Driver dynamodb"`
	// Endpoint overrides the DynamoDB endpoint, e.g. DynamoDB Local
	Endpoint       string        `yaml:"endpoint" envconfig:"ENDPOINT"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" envconfig:"CONNECT_TIMEOUT" validate:"gt=0"`
	Breaker        BreakerConfig `yaml:"breaker" envconfig:"BREAKER"`
}

// BreakerConfig holds circuit breaker settings for the repository
type BreakerConfig struct {
	Enabled          bool          `yaml:"enabled" envconfig:"ENABLED"`
	MaxRequests      uint32        `yaml:"max_requests" envconfig:"MAX_REQUESTS"`
	Interval         time.Duration `yaml:"interval" envconfig:"INTERVAL"`
	Timeout          time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
	FailureThreshold float64       `yaml:"failure_threshold" envconfig:"FAILURE_THRESHOLD" validate:"gte=0,lte=1"`
	MinRequests      uint32        `yaml:"min_requests" envconfig:"MIN_REQUESTS"`
}

// AWSConfig holds AWS SDK settings
type AWSConfig struct {
	Region string `yaml:"region" envconfig:"REGION" validate:"required"`
}

// EventsConfig holds domain event settings. An empty bus name disables publishing.
type EventsConfig struct {
	EventBusName string `yaml:"event_bus_name" envconfig:"EVENT_BUS_NAME"`
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" envconfig:"ENABLED"`
	Namespace string `yaml:"namespace" envconfig:"NAMESPACE" validate:"required_if=Enabled true"`
}

// CORSConfig holds cross-origin settings
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	MaxAge         int      `yaml:"max_age" envconfig:"MAX_AGE" validate:"gte=0"`
}

// Default returns the configuration used when nothing overrides it
func Default() *Config {
	tracing := observability.DefaultTracingConfig()
	return &Config{
		Environment: Development,
		ServiceName: "simple-express-mongo-app",
		Server: ServerConfig{
			Port:         3000,
			MaxBodyBytes: 100 * 1024,
			IdleTimeout:  60 * time.Second,
		},
		Logging: LoggingConfig{Level: "info"},
		Tracing: TracingConfig{
			Exporter:                        tracing.Exporter,
			Endpoint:                        tracing.Endpoint,
			Insecure:                        tracing.Insecure,
			SampleRate:                      tracing.SampleRate,
			BatchTimeout:                    tracing.BatchTimeout,
			ExportTimeout:                   tracing.ExportTimeout,
			MaxQueueSize:                    tracing.MaxQueueSize,
			MaxExportBatchSize:              tracing.MaxExportBatchSize,
			SuppressInternalInstrumentation: true,
			MetadataURL:                     tracing.MetadataURL,
			ProbeTimeout:                    tracing.ProbeTimeout,
		},
		Database: DatabaseConfig{
			Driver:         DriverDynamoDB,
			TableName:      "profiles",
			ConnectTimeout: 5 * time.Second,
			Breaker: BreakerConfig{
				Enabled:          true,
				MaxRequests:      5,
				Interval:         30 * time.Second,
				Timeout:          60 * time.Second,
				FailureThreshold: 0.8,
				MinRequests:      5,
			},
		},
		AWS:     AWSConfig{Region: "us-east-1"},
		Metrics: MetricsConfig{Enabled: true, Namespace: "profile_backend"},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
			MaxAge:         300,
		},
	}
}

// Load reads the configuration from CONFIG_FILE (when set) and the environment
func Load() (*Config, error) {
	return LoadFile(os.Getenv(ConfigFileEnv))
}

// LoadFile is Load with an explicit YAML path; an empty path skips the file
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if err := utils.ValidateStruct(c); err != nil {
		return pkgerrors.NewValidationError("invalid configuration").WithCause(err)
	}
	if c.Tracing.Exporter == observability.ExporterOTLP && c.Tracing.Endpoint == "" {
		return pkgerrors.NewValidationError("invalid configuration").
			WithCause(errors.New("OTEL_EXPORTER_OTLP_ENDPOINT is required for the otlp exporter"))
	}
	return nil
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// TelemetryConfig converts the tracing section for the telemetry pipeline
func (c *Config) TelemetryConfig() observability.TracingConfig {
	return observability.TracingConfig{
		ServiceName:        c.ServiceName,
		ServiceVersion:     c.ServiceVersion,
		Environment:        c.Environment,
		Exporter:           c.Tracing.Exporter,
		Endpoint:           c.Tracing.Endpoint,
		Insecure:           c.Tracing.Insecure,
		Headers:            c.Tracing.Headers,
		SampleRate:         c.Tracing.SampleRate,
		BatchTimeout:       c.Tracing.BatchTimeout,
		ExportTimeout:      c.Tracing.ExportTimeout,
		MaxQueueSize:       c.Tracing.MaxQueueSize,
		MaxExportBatchSize: c.Tracing.MaxExportBatchSize,
		MetadataURL:        c.Tracing.MetadataURL,
		ProbeTimeout:       c.Tracing.ProbeTimeout,
		RegisterGlobal:     true,
	}
}

// LoggingOptions converts the logging section for the logger
func (c *Config) LoggingOptions() observability.LoggingConfig {
	return observability.LoggingConfig{
		Environment: c.Environment,
		Level:       c.Logging.Level,
	}
}
