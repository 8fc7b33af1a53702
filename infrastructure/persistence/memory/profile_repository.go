// Package memory provides an in-process profile store for local runs and tests.
package memory

import (
	"context"
	"sync"
	"sync/atomic"

	"profile-backend/application/ports"
	"profile-backend/domain/core/entities"
)

// ProfileRepository keeps profiles in a map guarded by a RWMutex.
// It also implements ports.Database so it can stand in for DynamoDB.
type ProfileRepository struct {
	mu        sync.RWMutex
	profiles  map[string]entities.Profile
	connected atomic.Bool
}

// NewProfileRepository creates an empty, disconnected store
func NewProfileRepository() *ProfileRepository {
	return &ProfileRepository{profiles: make(map[string]entities.Profile)}
}

// Connect implements ports.Database
func (r *ProfileRepository) Connect(ctx context.Context) error {
	r.connected.Store(true)
	return nil
}

// Disconnect implements ports.Database
func (r *ProfileRepository) Disconnect(ctx context.Context) error {
	r.connected.Store(false)
	return nil
}

// Connected implements ports.Database
func (r *ProfileRepository) Connected() bool {
	return r.connected.Load()
}

// Create stores a copy of the profile
func (r *ProfileRepository) Create(ctx context.Context, profile *entities.Profile) error {
	if !r.Connected() {
		return ports.ErrDatabaseClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.profiles[profile.ID]; exists {
		return ports.ErrConflict
	}
	r.profiles[profile.ID] = *entities.ReconstructProfile(
		profile.ID, profile.Name, profile.Email, profile.Bio, profile.CreatedAt, profile.UpdatedAt,
	)
	return nil
}

// GetByID returns a copy of the stored profile
func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*entities.Profile, error) {
	if !r.Connected() {
		return nil, ports.ErrDatabaseClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return &p, nil
}

var (
	_ ports.ProfileRepository = (*ProfileRepository)(nil)
	_ ports.Database          = (*ProfileRepository)(nil)
)
