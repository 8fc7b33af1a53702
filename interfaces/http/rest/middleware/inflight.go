package middleware

import (
	"net/http"

	"profile-backend/pkg/common"

	"golang.org/x/sync/semaphore"
)

// InFlight lets at most limit requests run their handler at the same time;
// the others wait in arrival order. A limit of 0 or less disables the gate.
func InFlight(limit int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limit <= 0 {
			return next
		}
		sem := semaphore.NewWeighted(int64(limit))

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := sem.Acquire(r.Context(), 1); err != nil {
				common.RespondErrors(w, http.StatusServiceUnavailable, "Request aborted while waiting")
				return
			}
			defer sem.Release(1)

			next.ServeHTTP(w, r)
		})
	}
}
