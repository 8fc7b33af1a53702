package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"profile-backend/pkg/common"
)

// DefaultMaxBodyBytes is the body limit when none is configured
const DefaultMaxBodyBytes = 100 * 1024

type jsonBodyKey struct{}

// ParseJSON reads and checks JSON request bodies before any other handler
// runs. Malformed bodies get a 400, oversized ones a 413. The raw body stays
// readable from r.Body and is also available through JSONBody. Other bodies
// are left unread but capped at maxBytes.
func ParseJSON(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body == nil || r.Body == http.NoBody {
				next.ServeHTTP(w, r)
				return
			}
			if !IsJSON(r.Header.Get("Content-Type")) {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBytes))
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					common.RespondErrors(w, http.StatusRequestEntityTooLarge, "Request body too large")
					return
				}
				common.RespondErrors(w, http.StatusBadRequest, "Unable to read request body")
				return
			}

			if len(bytes.TrimSpace(body)) > 0 && !json.Valid(body) {
				common.RespondErrors(w, http.StatusBadRequest, "Invalid JSON body")
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			ctx := context.WithValue(r.Context(), jsonBodyKey{}, json.RawMessage(body))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// JSONBody returns the body parsed by ParseJSON, nil when there was none
func JSONBody(ctx context.Context) json.RawMessage {
	body, _ := ctx.Value(jsonBodyKey{}).(json.RawMessage)
	return body
}

// IsJSON reports whether contentType is application/json or a +json type
func IsJSON(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
