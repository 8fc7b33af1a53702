package main

import (
	"context"
	"log"
	"time"

	"profile-backend/infrastructure/config"
	"profile-backend/infrastructure/di"
	"profile-backend/interfaces/http/rest"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	chiadapter "github.com/awslabs/aws-lambda-go-api-proxy/chi"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

var (
	// chiLambda wraps the Chi router for AWS Lambda integration
	chiLambda *chiadapter.ChiLambdaV2

	container *di.Container

	coldStart     = true
	coldStartTime time.Time
)

// init runs during cold start
func init() {
	coldStartTime = time.Now()
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	container, err = di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.Database.ConnectTimeout)
	if err := container.Database.Connect(connectCtx); err != nil {
		container.Logger.Error("Failed to connect to database", zap.Error(err))
	}
	cancel()

	router := rest.NewRouter(
		rest.RouterConfig{
			MaxBodyBytes:   cfg.Server.MaxBodyBytes,
			MaxInFlight:    cfg.Server.MaxInFlight,
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			CORSMaxAge:     cfg.CORS.MaxAge,
		},
		container.Pipeline,
		container.ProfileHandler,
		container.HealthHandler,
		container.BlockHandler,
		container.Collector,
		container.Logger,
	)

	// Create Lambda adapter - need to type assert to *chi.Mux
	chiRouter, ok := router.Setup().(*chi.Mux)
	if !ok {
		log.Fatal("Failed to cast handler to chi.Mux")
	}
	chiLambda = chiadapter.NewV2(chiRouter)

	container.Logger.Info("Lambda cold start completed",
		zap.Duration("duration", time.Since(coldStartTime)),
		zap.String("instance_id", container.Pipeline.InstanceID()),
	)
}

// Handler is the Lambda function handler. Spans are flushed before returning
// because the execution environment may be frozen right after.
func Handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	resp, err := chiLambda.ProxyWithContextV2(ctx, req)

	if resp.Headers == nil {
		resp.Headers = make(map[string]string)
	}
	if coldStart {
		resp.Headers["X-Cold-Start"] = "true"
		coldStart = false
	} else {
		resp.Headers["X-Cold-Start"] = "false"
	}

	if flushErr := container.Pipeline.ForceFlush(ctx); flushErr != nil {
		container.Logger.Warn("Failed to flush spans", zap.Error(flushErr))
	}

	if err != nil {
		container.Logger.Error("Lambda proxy error",
			zap.String("path", req.RequestContext.HTTP.Path),
			zap.String("request_id", req.RequestContext.RequestID),
			zap.Error(err),
		)
	}
	return resp, err
}

func main() {
	lambda.Start(Handler)
}
