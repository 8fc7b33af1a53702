// Package observability provides tracing, metrics and logging for the
// profile service.
//
// Tracing is owned by a Pipeline: it resolves the service resource (including
// the EC2 instance id, falling back to "localhost"), exports spans in batches
// with X-Ray compatible ids, and installs the library instrumentations. The
// Tracing middleware turns every HTTP request into one server span.
//
// Usage:
//
//	pipeline := observability.NewPipeline(cfg, logger)
//	if err := pipeline.Init(ctx); err != nil {
//		logger.Fatal("telemetry", zap.Error(err))
//	}
//	defer pipeline.Shutdown(ctx)
//
//	router.Use(pipeline.Middleware())
package observability
