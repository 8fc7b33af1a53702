package entities

import (
	"strings"
	"time"

	"profile-backend/domain/events"
	pkgerrors "profile-backend/pkg/errors"
	"profile-backend/pkg/utils"

	"github.com/google/uuid"
)

// Profile is the only resource the service exposes.
type Profile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name" validate:"required,min=1,max=100"`
	Email     string    `json:"email" validate:"required,email,max=254"`
	Bio       string    `json:"bio,omitempty" validate:"max=500"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	events []events.DomainEvent
}

// NewProfile creates a profile with a fresh id and records a ProfileCreated event
func NewProfile(name, email, bio string, now time.Time) (*Profile, error) {
	p := &Profile{
		ID:        uuid.New().String(),
		Name:      strings.TrimSpace(name),
		Email:     strings.ToLower(strings.TrimSpace(email)),
		Bio:       strings.TrimSpace(bio),
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}

	if err := utils.ValidateStruct(p); err != nil {
		return nil, pkgerrors.NewValidationError("invalid profile").
			WithCause(err).
			WithPublic(utils.ValidationMessages(err)...)
	}

	p.events = append(p.events, events.NewProfileCreated(p.ID, p.Email, p.CreatedAt))
	return p, nil
}

// ReconstructProfile rebuilds a stored profile without validation or events
func ReconstructProfile(id, name, email, bio string, createdAt, updatedAt time.Time) *Profile {
	return &Profile{
		ID:        id,
		Name:      name,
		Email:     email,
		Bio:       bio,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
}

// Events returns and clears the pending domain events
func (p *Profile) Events() []events.DomainEvent {
	pending := p.events
	p.events = nil
	return pending
}
