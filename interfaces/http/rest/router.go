// Package rest wires the HTTP router and server of the profile service.
package rest

import (
	"fmt"
	"net/http"

	"profile-backend/interfaces/http/rest/handlers"
	"profile-backend/interfaces/http/rest/middleware"
	"profile-backend/pkg/common"
	"profile-backend/pkg/observability"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// RouterConfig holds router settings
type RouterConfig struct {
	MaxBodyBytes   int64
	MaxInFlight    int
	AllowedOrigins []string
	CORSMaxAge     int
}

// Router creates and configures the HTTP router
type Router struct {
	config    RouterConfig
	pipeline  *observability.Pipeline
	profiles  *handlers.ProfileHandler
	health    *handlers.HealthHandler
	block     *handlers.BlockHandler
	collector *observability.Collector
	logger    *zap.Logger
}

// NewRouter creates a new router instance. collector may be nil to disable metrics.
func NewRouter(
	config RouterConfig,
	pipeline *observability.Pipeline,
	profiles *handlers.ProfileHandler,
	health *handlers.HealthHandler,
	block *handlers.BlockHandler,
	collector *observability.Collector,
	logger *zap.Logger,
) *Router {
	return &Router{
		config:    config,
		pipeline:  pipeline,
		profiles:  profiles,
		health:    health,
		block:     block,
		collector: collector,
		logger:    logger,
	}
}

// Setup configures all routes and middleware. The pipeline must be initialized.
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Order matters: the span covers everything after body parsing.
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: rt.allowedOrigins(),
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID", "X-Amzn-Trace-Id"},
		ExposedHeaders: []string{"X-Request-ID", "X-Trace-ID", "X-Amzn-Trace-Id"},
		MaxAge:         rt.config.CORSMaxAge,
	}))
	router.Use(middleware.ParseJSON(rt.config.MaxBodyBytes))
	router.Use(rt.pipeline.Middleware())
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(rt.logger))
	if rt.collector != nil {
		router.Use(observability.Metrics(rt.collector))
	}
	router.Use(middleware.InFlight(rt.config.MaxInFlight))
	router.Use(middleware.Recoverer(rt.logger))

	router.Get("/health", rt.health.Health)
	router.Get("/ready", rt.health.Ready)
	if rt.collector != nil {
		router.Method(http.MethodGet, "/metrics", rt.collector.Handler())
	}

	router.Get("/profile/{id}", rt.profiles.GetProfile)
	router.Post("/profile", rt.profiles.CreateProfile)

	for _, n := range handlers.BlockDurations {
		router.Get(fmt.Sprintf("/block-%d-seconds", n), rt.block.Block(n))
	}

	router.NotFound(invalidRoute)
	router.MethodNotAllowed(invalidRoute)

	return router
}

func (rt *Router) allowedOrigins() []string {
	if len(rt.config.AllowedOrigins) == 0 {
		return []string{"*"}
	}
	return rt.config.AllowedOrigins
}

func invalidRoute(w http.ResponseWriter, r *http.Request) {
	common.RespondErrors(w, http.StatusNotFound, "Invalid route")
}
