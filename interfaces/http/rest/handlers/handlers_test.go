package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"profile-backend/application/ports"
	"profile-backend/domain/core/entities"
	"profile-backend/domain/events"
	"profile-backend/infrastructure/persistence/memory"
	pkgerrors "profile-backend/pkg/errors"
	"profile-backend/pkg/observability"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingPublisher struct {
	events []events.DomainEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.DomainEvent) error {
	p.events = append(p.events, e)
	return p.err
}

type stubRepository struct {
	err error
}

func (s stubRepository) Create(context.Context, *entities.Profile) error { return s.err }
func (s stubRepository) GetByID(context.Context, string) (*entities.Profile, error) {
	return nil, s.err
}

func profileRouter(h *ProfileHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/profile/{id}", h.GetProfile)
	r.Post("/profile", h.CreateProfile)
	return r
}

func postProfile(contentType, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/profile", strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req
}

func connectedRepo(t *testing.T) *memory.ProfileRepository {
	t.Helper()
	repo := memory.NewProfileRepository()
	require.NoError(t, repo.Connect(context.Background()))
	return repo
}

func TestProfileHandler_CreateAndGet(t *testing.T) {
	publisher := &recordingPublisher{}
	collector := observability.NewCollector("test")
	h := NewProfileHandler(connectedRepo(t), publisher, collector, zap.NewNop())
	h.now = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }
	router := profileRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/profile",
		strings.NewReader(`{"name":"Ada Lovelace","email":"Ada@Example.com","bio":"math"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	var created ProfileResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "ada@example.com", created.Email)
	assert.Equal(t, "2024-05-01T10:00:00Z", created.CreatedAt)
	assert.Equal(t, "/profile/"+created.ID, w.Header().Get("Location"))

	require.Len(t, publisher.events, 1)
	assert.Equal(t, "profile.created", publisher.events[0].GetEventType())
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.ProfilesCreated))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/profile/"+created.ID, nil))
	require.Equal(t, http.StatusOK, w.Code)
	var got ProfileResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, created, got)
}

func TestProfileHandler_GetUnknown(t *testing.T) {
	router := profileRouter(NewProfileHandler(connectedRepo(t), nil, nil, zap.NewNop()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/profile/abc123", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, `{"errors":["Profile not found"]}`, w.Body.String())
}

func TestProfileHandler_CreateInvalid(t *testing.T) {
	router := profileRouter(NewProfileHandler(connectedRepo(t), nil, nil, zap.NewNop()))

	tests := []struct {
		name string
		body string
		want string
	}{
		{"not json", `name=ada`, "Invalid request body"},
		{"missing email", `{"name":"Ada"}`, "email"},
		{"bad email", `{"name":"Ada","email":"not-an-email"}`, "email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, postProfile("application/json", tt.body))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			var body struct {
				Errors []string `json:"errors"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			require.NotEmpty(t, body.Errors)
			assert.Contains(t, strings.Join(body.Errors, " "), tt.want)
		})
	}
}

func TestProfileHandler_CreateRequiresJSON(t *testing.T) {
	publisher := &recordingPublisher{}
	router := profileRouter(NewProfileHandler(connectedRepo(t), publisher, nil, zap.NewNop()))
	valid := `{"name":"Ada","email":"ada@example.com"}`

	for _, contentType := range []string{"", "text/plain", "application/x-www-form-urlencoded"} {
		t.Run("content type "+contentType, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, postProfile(contentType, valid))

			assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
			assert.Equal(t, `{"errors":["Content-Type must be application/json"]}`, w.Body.String())
		})
	}

	assert.Empty(t, publisher.events)
}

func TestProfileHandler_CreateBodyLimit(t *testing.T) {
	router := profileRouter(NewProfileHandler(connectedRepo(t), nil, nil, zap.NewNop()))
	body := `{"name":"Ada","email":"ada@example.com","bio":"` + strings.Repeat("x", 200*1024) + `"}`

	w := httptest.NewRecorder()
	router.ServeHTTP(w, postProfile("application/json", body))

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, `{"errors":["Request body too large"]}`, w.Body.String())
}

func TestProfileHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"database closed", ports.ErrDatabaseClosed, http.StatusServiceUnavailable, `{"errors":["Service unavailable"]}`},
		{"conflict", ports.ErrConflict, http.StatusConflict, `{"errors":["Profile already exists"]}`},
		{"database failure", pkgerrors.NewDatabaseError("PutItem", errors.New("reset")), http.StatusInternalServerError, `{"errors":["Internal server error"]}`},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, `{"errors":["Internal server error"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := profileRouter(NewProfileHandler(stubRepository{err: tt.err}, nil, nil, zap.NewNop()))

			w := httptest.NewRecorder()
			router.ServeHTTP(w, postProfile("application/json", `{"name":"Ada","email":"ada@example.com"}`))

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.body, w.Body.String())
		})
	}
}

func TestProfileHandler_PublishFailureKeepsProfile(t *testing.T) {
	publisher := &recordingPublisher{err: errors.New("bus down")}
	router := profileRouter(NewProfileHandler(connectedRepo(t), publisher, nil, zap.NewNop()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, postProfile("application/json", `{"name":"Ada","email":"ada@example.com"}`))

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Len(t, publisher.events, 1)
}

func TestBlockHandler(t *testing.T) {
	var slept time.Duration
	h := NewBlockHandler(time.Millisecond, zap.NewNop())
	h.sleep = func(d time.Duration) { slept = d }

	w := httptest.NewRecorder()
	h.Block(5).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/block-5-seconds", nil))

	assert.Equal(t, 5*time.Millisecond, slept)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "Blocked for 5 seconds", w.Body.String())
}

func TestHealthHandler(t *testing.T) {
	repo := memory.NewProfileRepository()
	h := NewHealthHandler(repo)

	w := httptest.NewRecorder()
	h.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, `{"status":"healthy"}`, w.Body.String())

	w = httptest.NewRecorder()
	h.Ready(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	require.NoError(t, repo.Connect(context.Background()))
	w = httptest.NewRecorder()
	h.Ready(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `{"status":"ready"}`, w.Body.String())
}
