package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/iudanet/dailyuse/internal/models"
	"github.com/iudanet/dailyuse/internal/server/handlers"
)

// TokenVerifier проверяет токен сессии
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*models.CurrentSession, error)
}

// Auth requires "Authorization: Bearer <token>" with a token of an active session
func Auth(logger *slog.Logger, verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("Missing Authorization header")
				http.Error(w, "Unauthorized: missing token", http.StatusUnauthorized)
				return
			}

			// Ожидаем формат: "Bearer <token>"
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				// Заголовок не логируем: в нем может быть токен
				logger.Warn("Invalid Authorization header format")
				http.Error(w, "Unauthorized: invalid token format", http.StatusUnauthorized)
				return
			}

			session, err := verifier.VerifyToken(r.Context(), parts[1])
			if err != nil {
				logger.Warn("Invalid session token", "error", err)
				http.Error(w, "Unauthorized: invalid token", http.StatusUnauthorized)
				return
			}

			logger.Debug("Session authenticated", "username", session.Username)

			next.ServeHTTP(w, r.WithContext(handlers.WithSession(r.Context(), session)))
		})
	}
}
