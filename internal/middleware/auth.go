package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/tgmarket/market-api/internal/pkg/jwt"
	"github.com/tgmarket/market-api/internal/pkg/response"
)

type contextKey string

const (
	TelegramIDKey contextKey = "telegram_id"
	UsernameKey   contextKey = "username"
)

// Auth returns middleware that validates the mini-app session JWT
func Auth(jwtService *jwt.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				response.Unauthorized(w, "Missing authorization header")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				response.Unauthorized(w, "Invalid authorization header format")
				return
			}

			claims, err := jwtService.ValidateToken(parts[1])
			if err != nil {
				if errors.Is(err, jwt.ErrExpiredToken) {
					response.Unauthorized(w, "Token expired")
				} else {
					response.Unauthorized(w, "Invalid token")
				}
				return
			}

			ctx := context.WithValue(r.Context(), TelegramIDKey, claims.TelegramID)
			ctx = context.WithValue(ctx, UsernameKey, claims.Username)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetTelegramID extracts the authenticated telegram id from context
func GetTelegramID(ctx context.Context) int64 {
	if id, ok := ctx.Value(TelegramIDKey).(int64); ok {
		return id
	}
	return 0
}

// GetUsername extracts the authenticated username from context
func GetUsername(ctx context.Context) string {
	if username, ok := ctx.Value(UsernameKey).(string); ok {
		return username
	}
	return ""
}
