package persistence

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"profile-backend/application/ports"
	"profile-backend/domain/core/entities"
	"profile-backend/infrastructure/persistence/memory"
	pkgerrors "profile-backend/pkg/errors"
	"profile-backend/pkg/observability"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func connectedMemory(t *testing.T) *memory.ProfileRepository {
	t.Helper()
	repo := memory.NewProfileRepository()
	require.NoError(t, repo.Connect(context.Background()))
	return repo
}

func newProfile(t *testing.T) *entities.Profile {
	t.Helper()
	p, err := entities.NewProfile("Grace", "grace@example.com", "", time.Now())
	require.NoError(t, err)
	return p
}

func TestTracedRepository(t *testing.T) {
	ctx := context.Background()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	collector := observability.NewCollector("test")

	repo := NewTracedRepository(connectedMemory(t), "memory", collector, false)

	// Not instrumented yet: no spans
	_, _ = repo.GetByID(ctx, "missing")
	assert.Empty(t, recorder.Ended())

	require.NoError(t, repo.Instrument(tp, propagation.TraceContext{}))

	p := newProfile(t)
	require.NoError(t, repo.Create(ctx, p))
	_, err := repo.GetByID(ctx, "abc123")
	assert.ErrorIs(t, err, ports.ErrNotFound)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "repository.Create", spans[0].Name())
	assert.Equal(t, "repository.GetByID", spans[1].Name())
	assert.Equal(t, codes.Unset, spans[1].Status().Code)

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.DBOperations.WithLabelValues("GetByID", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.DBOperations.WithLabelValues("Create", "success")))
}

func TestTracedRepository_RecordsFailures(t *testing.T) {
	ctx := context.Background()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	closed := memory.NewProfileRepository()
	repo := NewTracedRepository(closed, "memory", nil, true)
	require.NoError(t, repo.Instrument(tp, nil))

	_, err := repo.GetByID(ctx, "abc")
	assert.ErrorIs(t, err, ports.ErrDatabaseClosed)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.True(t, repo.SuppressInternal())
}

type failingRepository struct {
	err   error
	calls int
}

func (f *failingRepository) Create(context.Context, *entities.Profile) error {
	f.calls++
	return f.err
}

func (f *failingRepository) GetByID(context.Context, string) (*entities.Profile, error) {
	f.calls++
	return nil, f.err
}

func TestBreakerRepository_OpensAfterFailures(t *testing.T) {
	ctx := context.Background()
	inner := &failingRepository{err: pkgerrors.NewDatabaseError("GetItem", errors.New("timeout"))}
	cfg := DefaultBreakerConfig()
	cfg.MinRequests = 3
	repo := NewBreakerRepository(inner, cfg, nil)

	for i := 0; i < 3; i++ {
		_, err := repo.GetByID(ctx, "x")
		assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeDatabase))
	}
	assert.Equal(t, gobreaker.StateOpen, repo.State())

	_, err := repo.GetByID(ctx, "x")
	assert.True(t, pkgerrors.IsUnavailable(err))
	assert.Equal(t, http.StatusServiceUnavailable, pkgerrors.HTTPStatus(err))
	assert.Equal(t, 3, inner.calls)
}

func TestBreakerRepository_NotFoundKeepsCircuitClosed(t *testing.T) {
	ctx := context.Background()
	inner := &failingRepository{err: ports.ErrNotFound}
	cfg := DefaultBreakerConfig()
	cfg.MinRequests = 1
	repo := NewBreakerRepository(inner, cfg, nil)

	for i := 0; i < 10; i++ {
		_, err := repo.GetByID(ctx, "x")
		assert.ErrorIs(t, err, ports.ErrNotFound)
	}
	assert.Equal(t, gobreaker.StateClosed, repo.State())
}

func TestBreakerRepository_PassesThrough(t *testing.T) {
	ctx := context.Background()
	repo := NewBreakerRepository(connectedMemory(t), DefaultBreakerConfig(), nil)

	p := newProfile(t)
	require.NoError(t, repo.Create(ctx, p))

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Email, got.Email)
}
