package middleware

import (
	"net/http"
	"strings"

	"portfolio-gallery/internal/services"

	"github.com/rs/zerolog/log"
)

// AdminKeyHeader carries the raw shared secret
const AdminKeyHeader = "X-Admin-Key"

// AdminAuth rejects requests without a valid admin credential before they
// reach any handler. The credential is either the shared secret in
// X-Admin-Key or a session token in "Authorization: Bearer <token>".
func AdminAuth(authService *services.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			adminKey := r.Header.Get(AdminKeyHeader)

			var token string
			if adminKey == "" {
				var ok bool
				token, ok = bearerToken(r.Header.Get("Authorization"))
				if !ok {
					respondError(w, "Invalid authorization header format", http.StatusUnauthorized)
					return
				}
			}

			if err := authService.Authorize(adminKey, token); err != nil {
				if !authService.Configured() {
					log.Warn().Str("path", r.URL.Path).Msg("Admin key not configured, rejecting mutating request")
				}
				respondError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken extracts the token of an Authorization header. An absent
// header is fine, a malformed one is not.
func bearerToken(header string) (string, bool) {
	if header == "" {
		return "", true
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write([]byte(`{"error":"` + message + `"}`))
}
