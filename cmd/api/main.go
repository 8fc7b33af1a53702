package main

import (
	"context"
	"log"
	"os"

	"profile-backend/infrastructure/config"
	"profile-backend/infrastructure/di"
	"profile-backend/interfaces/http/rest"
	"profile-backend/pkg/lifecycle"
	"profile-backend/pkg/observability"

	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize dependency container; this also starts the telemetry pipeline
	container, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	logger := container.Logger

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
		logger,
	)

	server := rest.NewServer(rest.ServerConfig{
		Addr:            cfg.Addr(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, router.Setup(), logger)

	if err := server.Start(); err != nil {
		logger.Fatal("Server failed to start", zap.String("address", cfg.Addr()), zap.Error(err))
	}
	logger.Info("Starting server",
		zap.String("address", server.Addr()),
		zap.String("environment", cfg.Environment),
		zap.String("instance_id", container.Pipeline.InstanceID()),
	)

	// A failed connect leaves /ready at 503; the server keeps running
	connectCtx, cancel := context.WithTimeout(ctx, cfg.Database.ConnectTimeout)
	if err := container.Database.Connect(connectCtx); err != nil {
		logger.Error("Failed to connect to database", zap.Error(err))
	}
	cancel()

	steps := []lifecycle.Step{
		{Name: "database", Run: container.Database.Disconnect},
		{Name: "http-server", Run: server.Stop},
		{Name: "telemetry", Run: container.Pipeline.Shutdown},
	}

	if path := os.Getenv(config.ConfigFileEnv); path != "" {
		watcher, err := config.NewWatcher(path, cfg, config.DefaultDebounce, logger)
		if err != nil {
			logger.Warn("Configuration hot reloading disabled", zap.Error(err))
		} else {
			watcher.OnChange(func(next *config.Config) {
				container.LogLevel.SetLevel(observability.ParseLevel(next.Logging.Level))
			})
			steps = append(steps, lifecycle.Step{Name: "config-watcher", Run: func(context.Context) error {
				watcher.Stop()
				return nil
			}})
		}
	}

	lifecycle.NewCoordinator(logger, steps).Run(ctx)
}
