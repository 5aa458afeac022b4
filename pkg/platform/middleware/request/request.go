// Package request provides request-ID middleware. Every request gets a
// stable ID, either propagated from the X-Request-ID header or freshly
// generated, so log lines across the middleware chain and services can be
// correlated.
package request

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"manasik/pkg/requestcontext"
)

const headerRequestID = "X-Request-ID"

// ID assigns a request ID to every request and echoes it on the response.
func ID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(headerRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		w.Header().Set(headerRequestID, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	return requestcontext.RequestID(ctx)
}
