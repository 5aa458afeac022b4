package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	request "manasik/pkg/platform/middleware/request"
	"manasik/pkg/secrets"
)

// Credential describes how the admin token is verified. Exactly one of
// Token (plaintext, constant-time compare, development) or TokenHash
// (bcrypt, production) should be set.
type Credential struct {
	Token     string
	TokenHash string
}

func (c Credential) verify(presented string) bool {
	if c.TokenHash != "" {
		return secrets.Verify(presented, c.TokenHash) == nil
	}
	// Constant-time comparison to prevent timing attacks.
	return subtle.ConstantTimeCompare([]byte(presented), []byte(c.Token)) == 1
}

// RequireAdminToken gates administrative routes behind the X-Admin-Token
// header.
func RequireAdminToken(cred Credential, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get("X-Admin-Token")
			if token == "" || !cred.verify(token) {
				ctx := r.Context()
				logger.WarnContext(ctx, "admin token mismatch",
					"request_id", request.GetRequestID(ctx),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"admin token required"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
