// Package ports declares the collaborators the HTTP layer depends on.
package ports

import (
	"context"

	"profile-backend/domain/core/entities"
	"profile-backend/domain/events"
	pkgerrors "profile-backend/pkg/errors"
)

var (
	// ErrNotFound is returned when a profile does not exist
	ErrNotFound = pkgerrors.NewNotFoundError("profile")
	// ErrConflict is returned when a profile id is already taken
	ErrConflict = pkgerrors.NewConflictError("profile already exists")
	// ErrDatabaseClosed is returned after Disconnect
	ErrDatabaseClosed = pkgerrors.NewUnavailableError("database")
)

// Database is the connection lifecycle of the document store.
// Connect and Disconnect are idempotent.
type Database interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Connected() bool
}

// ProfileRepository persists profiles
type ProfileRepository interface {
	Create(ctx context.Context, profile *entities.Profile) error
	GetByID(ctx context.Context, id string) (*entities.Profile, error)
}

// ProfileStore is a document store that both holds a connection and
// persists profiles
type ProfileStore interface {
	Database
	ProfileRepository
}

// EventPublisher publishes domain events to the outside world
type EventPublisher interface {
	Publish(ctx context.Context, event events.DomainEvent) error
}

// NoopPublisher drops every event. Used when no event bus is configured.
type NoopPublisher struct{}

// Publish implements EventPublisher
func (NoopPublisher) Publish(context.Context, events.DomainEvent) error { return nil }
