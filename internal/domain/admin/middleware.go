package admin

import (
	"context"
	"net/http"

	"github.com/tgmarket/market-api/internal/pkg/response"
)

type contextKey string

const adminUsernameKey contextKey = "admin_username"

const SessionCookieName = "admin_session"

// AuthMiddleware guards the moderation API behind the session cookie
func (s *Service) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookieName)
		if err != nil || cookie.Value == "" {
			response.Unauthorized(w, "admin session required")
			return
		}

		username, err := s.ValidateSession(r.Context(), cookie.Value)
		if err != nil {
			response.Unauthorized(w, "admin session expired")
			return
		}

		ctx := context.WithValue(r.Context(), adminUsernameKey, username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetAdminUsername returns the logged-in admin, or "" outside the middleware
func GetAdminUsername(ctx context.Context) string {
	if v, ok := ctx.Value(adminUsernameKey).(string); ok {
		return v
	}
	return ""
}
