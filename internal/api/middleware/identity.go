package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/bioscopeai/bioscope-core/internal/api/response"
)

// userIDHeader carries the authenticated caller identity established by the
// edge gateway. This service trusts it; full authentication lives upstream.
const userIDHeader = "X-User-ID"

// Identity extracts the caller identity from the request header and stores
// it in the request context. Requests without a valid identity are rejected.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(userIDHeader)
		if raw == "" {
			response.Error(w, http.StatusUnauthorized, "MISSING_IDENTITY",
				"X-User-ID header is required", nil)
			return
		}

		userID, err := uuid.Parse(raw)
		if err != nil {
			response.Error(w, http.StatusUnauthorized, "INVALID_IDENTITY",
				"X-User-ID must be a valid UUID", nil)
			return
		}

		next.ServeHTTP(w, r.WithContext(SetUserID(r.Context(), userID)))
	})
}
