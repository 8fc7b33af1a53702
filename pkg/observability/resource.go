package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
	"go.uber.org/zap"
)

const (
	// FallbackInstanceID identifies the process when instance metadata is unreachable
	FallbackInstanceID = "localhost"

	// DefaultMetadataURL is the EC2 instance metadata endpoint for the instance id
	DefaultMetadataURL = "http://169.254.169.254/latest/meta-data/instance-id"

	// DefaultProbeTimeout bounds the metadata probe
	DefaultProbeTimeout = 2 * time.Second
)

// InstanceIdentifier returns the id of the machine the process runs on
type InstanceIdentifier interface {
	InstanceID(ctx context.Context) (string, error)
}

// InstanceIdentifierFunc adapts a function to InstanceIdentifier
type InstanceIdentifierFunc func(ctx context.Context) (string, error)

// InstanceID implements InstanceIdentifier
func (f InstanceIdentifierFunc) InstanceID(ctx context.Context) (string, error) {
	return f(ctx)
}

// MetadataProbe reads the instance id from an instance metadata endpoint.
// It makes exactly one request; there is no retry.
type MetadataProbe struct {
	client *resty.Client
	url    string
}

// NewMetadataProbe creates a probe against url with the given request timeout
func NewMetadataProbe(url string, timeout time.Duration) *MetadataProbe {
	if url == "" {
		url = DefaultMetadataURL
	}
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}

	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Accept", "text/plain")

	return &MetadataProbe{client: client, url: url}
}

// InstanceID implements InstanceIdentifier
func (p *MetadataProbe) InstanceID(ctx context.Context) (string, error) {
	resp, err := p.client.R().SetContext(ctx).Get(p.url)
	if err != nil {
		return "", fmt.Errorf("instance metadata request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("instance metadata returned status %d", resp.StatusCode())
	}

	id := strings.TrimSpace(resp.String())
	if id == "" {
		return "", errors.New("instance metadata returned an empty instance id")
	}
	return id, nil
}

// ResourceConfig describes the static identity of the service
type ResourceConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Attributes     map[string]string
}

// ResourceResolver builds the OTel resource attached to every span
type ResourceResolver struct {
	config     ResourceConfig
	identifier InstanceIdentifier
	timeout    time.Duration
	logger     *zap.Logger
}

// NewResourceResolver creates a resolver. A nil identifier always yields the fallback id.
func NewResourceResolver(cfg ResourceConfig, identifier InstanceIdentifier, timeout time.Duration, logger *zap.Logger) *ResourceResolver {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResourceResolver{
		config:     cfg,
		identifier: identifier,
		timeout:    timeout,
		logger:     logger,
	}
}

// Resolve returns the merged resource and the instance id it carries.
// It never fails and never takes longer than the resolver timeout.
func (r *ResourceResolver) Resolve(ctx context.Context) (*resource.Resource, string) {
	instanceID := r.resolveInstanceID(ctx)

	attrs := []attribute.KeyValue{
		semconv.ServiceName(r.config.ServiceName),
		semconv.ServiceInstanceID(instanceID),
	}
	if r.config.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(r.config.ServiceVersion))
	}
	if r.config.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironmentName(r.config.Environment))
	}
	if hostname, err := os.Hostname(); err == nil {
		attrs = append(attrs, semconv.HostName(hostname))
	}
	for k, v := range r.config.Attributes {
		attrs = append(attrs, attribute.String(k, v))
	}

	service := resource.NewSchemaless(attrs...)
	merged, err := resource.Merge(resource.Default(), service)
	if err != nil {
		r.logger.Warn("Failed to merge default resource, using service attributes only", zap.Error(err))
		return service, instanceID
	}
	return merged, instanceID
}

func (r *ResourceResolver) resolveInstanceID(ctx context.Context) string {
	if r.identifier == nil {
		return FallbackInstanceID
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type result struct {
		id  string
		err error
	}
	ch := make(chan result, 1)
	go func() {
		id, err := r.identifier.InstanceID(ctx)
		ch <- result{id: id, err: err}
	}()

	select {
	case res := <-ch:
		if res.err != nil || res.id == "" {
			r.logger.Warn("Error retrieving instance ID, using fallback",
				zap.String("fallback", FallbackInstanceID),
				zap.Error(res.err),
			)
			return FallbackInstanceID
		}
		return res.id
	case <-ctx.Done():
		r.logger.Warn("Timed out retrieving instance ID, using fallback",
			zap.String("fallback", FallbackInstanceID),
			zap.Duration("timeout", r.timeout),
		)
		return FallbackInstanceID
	}
}
