package di

import (
	"profile-backend/application/ports"
	"profile-backend/infrastructure/config"
	"profile-backend/interfaces/http/rest/handlers"
	"profile-backend/pkg/observability"

	"go.uber.org/zap"
)

// Container holds all application dependencies. Building it initializes the
// telemetry pipeline but does not connect to the database.
type Container struct {
	Config     *config.Config
	LogLevel   zap.AtomicLevel
	Logger     *zap.Logger
	Pipeline   *observability.Pipeline
	Database   ports.Database
	Repository ports.ProfileRepository
	Publisher  ports.EventPublisher
	Collector  *observability.Collector

	ProfileHandler *handlers.ProfileHandler
	HealthHandler  *handlers.HealthHandler
	BlockHandler   *handlers.BlockHandler
}
