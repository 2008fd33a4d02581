package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/quenty/webchannel-server-go/internal/util"
)

// AdminAuthMiddleware protects the administrative surface with a static
// bearer token. An unset token fails closed: every request is rejected.
type AdminAuthMiddleware struct {
	token string
}

func NewAdminAuthMiddleware(token string) *AdminAuthMiddleware {
	return &AdminAuthMiddleware{token: token}
}

func (m *AdminAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.token == "" {
			log.Warn().Msg("admin auth: ADMIN_TOKEN not configured, rejecting request")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error": "Admin surface not configured",
			})
			return
		}

		supplied := extractBearer(r)
		if supplied == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Missing authentication token",
			})
			return
		}

		if !util.ConstantTimeEqual(supplied, m.token) {
			log.Warn().Msg("admin auth: invalid token attempt")
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Invalid token",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func extractBearer(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}
