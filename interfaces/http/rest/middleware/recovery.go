package middleware

import (
	"net/http"
	"runtime/debug"

	"profile-backend/pkg/common"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Recoverer turns handler panics into a 500 JSON response. chi's Recoverer
// writes a bare 500; clients of this service expect the {"errors":[...]} body.
func Recoverer(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww, ok := w.(chimiddleware.WrapResponseWriter)
			if !ok {
				ww = chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			}

			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logger.Error("Handler panicked",
					zap.Any("panic", rec),
					zap.String("requestID", GetRequestID(r.Context())),
					zap.String("path", r.URL.Path),
					zap.ByteString("stack", debug.Stack()),
				)

				// Nothing can be sent once the handler started its response.
				if ww.Status() == 0 {
					common.RespondErrors(ww, http.StatusInternalServerError, "Internal server error")
				}
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
