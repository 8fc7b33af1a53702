package memory

import (
	"context"
	"testing"
	"time"

	"profile-backend/application/ports"
	"profile-backend/domain/core/entities"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProfile(t *testing.T) *entities.Profile {
	t.Helper()
	p, err := entities.NewProfile("Ada", "ada@example.com", "", time.Now())
	require.NoError(t, err)
	return p
}

func TestProfileRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Should reject operations before Connect", func(t *testing.T) {
		repo := NewProfileRepository()

		assert.ErrorIs(t, repo.Create(ctx, newProfile(t)), ports.ErrDatabaseClosed)
		_, err := repo.GetByID(ctx, "x")
		assert.ErrorIs(t, err, ports.ErrDatabaseClosed)
	})

	t.Run("Should store and return profiles", func(t *testing.T) {
		repo := NewProfileRepository()
		require.NoError(t, repo.Connect(ctx))

		p := newProfile(t)
		require.NoError(t, repo.Create(ctx, p))

		got, err := repo.GetByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, p.Email, got.Email)
		assert.Equal(t, p.CreatedAt, got.CreatedAt)
	})

	t.Run("Should report missing and duplicate profiles", func(t *testing.T) {
		repo := NewProfileRepository()
		require.NoError(t, repo.Connect(ctx))

		_, err := repo.GetByID(ctx, "abc123")
		assert.ErrorIs(t, err, ports.ErrNotFound)

		p := newProfile(t)
		require.NoError(t, repo.Create(ctx, p))
		assert.ErrorIs(t, repo.Create(ctx, p), ports.ErrConflict)
	})

	t.Run("Should be idempotent across Connect and Disconnect", func(t *testing.T) {
		repo := NewProfileRepository()
		require.NoError(t, repo.Connect(ctx))
		require.NoError(t, repo.Connect(ctx))
		assert.True(t, repo.Connected())

		require.NoError(t, repo.Disconnect(ctx))
		require.NoError(t, repo.Disconnect(ctx))
		assert.False(t, repo.Connected())
	})
}
