package persistence

import (
	"context"
	"errors"
	"time"

	"profile-backend/application/ports"
	"profile-backend/domain/core/entities"
	pkgerrors "profile-backend/pkg/errors"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerConfig holds configuration for the repository circuit breaker
type BreakerConfig struct {
	Name        string
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	// FailureThreshold is the failure ratio that trips the breaker once
	// MinRequests have been seen in the current interval.
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns the default breaker configuration
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "profile-repository",
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// BreakerRepository fails fast with a 503 while the store keeps failing
type BreakerRepository struct {
	inner ports.ProfileRepository
	cb    *gobreaker.CircuitBreaker
}

// NewBreakerRepository wraps inner with a circuit breaker
func NewBreakerRepository(inner ports.ProfileRepository, cfg BreakerConfig, logger *zap.Logger) *BreakerRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: isStoreHealthy,
	})
	return &BreakerRepository{inner: inner, cb: cb}
}

// State reports the current breaker state
func (b *BreakerRepository) State() gobreaker.State {
	return b.cb.State()
}

// Create implements ports.ProfileRepository
func (b *BreakerRepository) Create(ctx context.Context, profile *entities.Profile) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.inner.Create(ctx, profile)
	})
	return translateBreakerError(err)
}

// GetByID implements ports.ProfileRepository
func (b *BreakerRepository) GetByID(ctx context.Context, id string) (*entities.Profile, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.GetByID(ctx, id)
	})
	if err != nil {
		return nil, translateBreakerError(err)
	}
	return result.(*entities.Profile), nil
}

// isStoreHealthy treats answers about the data (missing, duplicate, invalid)
// and caller cancellations as successes of the store itself.
func isStoreHealthy(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	return pkgerrors.IsNotFound(err) || pkgerrors.IsConflict(err) || pkgerrors.IsValidation(err)
}

func translateBreakerError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return pkgerrors.NewUnavailableError("database").WithCause(err)
	}
	return err
}

var _ ports.ProfileRepository = (*BreakerRepository)(nil)
