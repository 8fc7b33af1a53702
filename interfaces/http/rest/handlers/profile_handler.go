// Package handlers implements the HTTP handlers of the profile service.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"profile-backend/application/ports"
	"profile-backend/domain/core/entities"
	"profile-backend/domain/events"
	"profile-backend/interfaces/http/rest/middleware"
	"profile-backend/pkg/common"
	pkgerrors "profile-backend/pkg/errors"
	"profile-backend/pkg/observability"
	"profile-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ProfileHandler handles profile-related HTTP requests
type ProfileHandler struct {
	repo      ports.ProfileRepository
	publisher ports.EventPublisher
	collector *observability.Collector
	logger    *zap.Logger
	now       func() time.Time
}

// NewProfileHandler creates a new profile handler. publisher and collector may be nil.
func NewProfileHandler(repo ports.ProfileRepository, publisher ports.EventPublisher, collector *observability.Collector, logger *zap.Logger) *ProfileHandler {
	if publisher == nil {
		publisher = ports.NoopPublisher{}
	}
	return &ProfileHandler{
		repo:      repo,
		publisher: publisher,
		collector: collector,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateProfileRequest represents the request body for creating a profile
type CreateProfileRequest struct {
	Name  string `json:"name" validate:"required,max=100"`
	Email string `json:"email" validate:"required,email,max=254"`
	Bio   string `json:"bio,omitempty" validate:"max=500"`
}

// ProfileResponse is the JSON representation of a profile
type ProfileResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Bio       string `json:"bio,omitempty"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// GetProfile handles GET /profile/{id}
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		common.RespondErrors(w, http.StatusBadRequest, "Profile ID is required")
		return
	}
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("profile.id", id))

	profile, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, toResponse(profile))
}

// CreateProfile handles POST /profile
func (h *ProfileHandler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	if !middleware.IsJSON(r.Header.Get("Content-Type")) {
		common.RespondErrors(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}

	body, err := readJSONBody(w, r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			common.RespondErrors(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		common.RespondErrors(w, http.StatusBadRequest, "Unable to read request body")
		return
	}

	var req CreateProfileRequest
	if err := json.Unmarshal(body, &req); err != nil {
		common.RespondErrors(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		common.RespondErrors(w, http.StatusBadRequest, utils.ValidationMessages(err)...)
		return
	}

	profile, err := entities.NewProfile(req.Name, req.Email, req.Bio, h.now())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	pending := profile.Events()

	if err := h.repo.Create(r.Context(), profile); err != nil {
		h.respondError(w, r, err)
		return
	}
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("profile.id", profile.ID))
	if h.collector != nil {
		h.collector.ProfilesCreated.Inc()
	}

	h.publish(r.Context(), pending)

	w.Header().Set("Location", "/profile/"+profile.ID)
	common.RespondJSON(w, http.StatusCreated, toResponse(profile))
}

// readJSONBody returns the body already parsed by middleware.ParseJSON, or
// reads it with the same limit when the handler is mounted without it.
func readJSONBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if body := middleware.JSONBody(r.Context()); body != nil {
		return body, nil
	}
	return io.ReadAll(http.MaxBytesReader(w, r.Body, middleware.DefaultMaxBodyBytes))
}

// publish sends the events of a stored profile. The profile is already
// persisted, so failures are logged and do not change the response.
func (h *ProfileHandler) publish(ctx context.Context, pending []events.DomainEvent) {
	for _, event := range pending {
		if err := h.publisher.Publish(ctx, event); err != nil {
			h.logger.Warn("Failed to publish domain event",
				zap.String("eventType", event.GetEventType()),
				zap.String("aggregateID", event.GetAggregateID()),
				zap.Error(err),
			)
		}
	}
}

func (h *ProfileHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) {
		// The client is gone; nobody reads the response.
		h.logger.Debug("Request canceled", zap.String("path", r.URL.Path))
		return
	}

	status, messages := pkgerrors.Response(err)
	switch {
	case pkgerrors.IsUnavailable(err):
		h.logger.Warn("Dependency unavailable", zap.String("path", r.URL.Path), zap.Error(err))
	case status >= http.StatusInternalServerError:
		h.logger.Error("Request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	common.RespondErrors(w, status, messages...)
}

func toResponse(p *entities.Profile) ProfileResponse {
	return ProfileResponse{
		ID:        p.ID,
		Name:      p.Name,
		Email:     p.Email,
		Bio:       p.Bio,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
		UpdatedAt: p.UpdatedAt.Format(time.RFC3339),
	}
}
