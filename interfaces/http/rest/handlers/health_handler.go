package handlers

import (
	"net/http"

	"profile-backend/application/ports"
	"profile-backend/pkg/common"
)

// HealthHandler serves liveness and readiness probes
type HealthHandler struct {
	db ports.Database
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db ports.Database) *HealthHandler {
	return &HealthHandler{db: db}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Ready handles GET /ready. The service is ready once the database is connected.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.db == nil || !h.db.Connected() {
		common.RespondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
