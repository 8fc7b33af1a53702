package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordsRoutePattern(t *testing.T) {
	collector := NewCollector("test")

	r := chi.NewRouter()
	r.Use(Metrics(collector))
	r.Get("/profile/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/profile/"+id, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.HTTPRequests.WithLabelValues("GET", "/profile/{id}", "404")))
	assert.Equal(t, 0.0, testutil.ToFloat64(collector.InFlight))
}

func TestCollector_Handler(t *testing.T) {
	collector := NewCollector("test")
	collector.ProfilesCreated.Inc()
	collector.RecordDBOperation("GetByID", 5*time.Millisecond, nil)
	collector.RecordDBOperation("GetByID", 5*time.Millisecond, errors.New("boom"))

	rec := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "test_profiles_created_total 1"))
	assert.Contains(t, body, `test_db_operations_total{operation="GetByID",status="error"} 1`)
	assert.Contains(t, body, `test_db_operations_total{operation="GetByID",status="success"} 1`)
}
