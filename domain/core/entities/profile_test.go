package entities

import (
	"testing"
	"time"

	"profile-backend/domain/events"
	pkgerrors "profile-backend/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProfile(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Should create a normalized profile", func(t *testing.T) {
		p, err := NewProfile("  Ada Lovelace ", " Ada@Example.COM ", "math", now)
		require.NoError(t, err)

		_, parseErr := uuid.Parse(p.ID)
		assert.NoError(t, parseErr)
		assert.Equal(t, "Ada Lovelace", p.Name)
		assert.Equal(t, "ada@example.com", p.Email)
		assert.Equal(t, now, p.CreatedAt)
		assert.Equal(t, now, p.UpdatedAt)
	})

	t.Run("Should record a ProfileCreated event once", func(t *testing.T) {
		p, err := NewProfile("Ada", "ada@example.com", "", now)
		require.NoError(t, err)

		pending := p.Events()
		require.Len(t, pending, 1)
		created, ok := pending[0].(events.ProfileCreated)
		require.True(t, ok)
		assert.Equal(t, p.ID, created.GetAggregateID())
		assert.Equal(t, "profile.created", created.GetEventType())

		assert.Empty(t, p.Events())
	})

	t.Run("Should reject invalid input", func(t *testing.T) {
		tests := []struct {
			name  string
			pName string
			email string
		}{
			{"missing name", "", "ada@example.com"},
			{"missing email", "Ada", ""},
			{"bad email", "Ada", "not-an-email"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := NewProfile(tt.pName, tt.email, "", now)
				assert.True(t, pkgerrors.IsValidation(err))
			})
		}
	})
}

func TestReconstructProfile(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := ReconstructProfile("id-1", "Ada", "ada@example.com", "", created, created)

	assert.Equal(t, "id-1", p.ID)
	assert.Empty(t, p.Events())
}
