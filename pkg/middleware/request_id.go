package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/urbanlab/popforecast/pkg/requestid"
)

// RequestID takes the request ID from the x-request-id header, or from
// chi's own middleware if it already generated one, or generates a fresh
// UUID, and injects it into the request context for the whole stack.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("x-request-id")

		if requestID == "" {
			requestID = middleware.GetReqID(r.Context())
		}

		if requestID == "" {
			requestID = requestid.Generate()
		}

		ctx := requestid.ToContext(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
