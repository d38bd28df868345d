package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/iudanet/linaform/internal/server/handlers"
)

// TokenVerifier проверяет access token и возвращает ID пользователя
type TokenVerifier interface {
	VerifyAccess(token string) (string, error)
}

// AuthMiddleware создает middleware для проверки JWT access token
// Хранилище не используется: достаточно подписи и срока действия токена
func AuthMiddleware(logger *slog.Logger, verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token := bearerToken(r)
			if token == "" {
				logger.DebugContext(ctx, "missing access token", slog.String("path", r.URL.Path))
				handlers.SendError(logger, w, "Access token required", http.StatusUnauthorized)
				return
			}

			userID, err := verifier.VerifyAccess(token)
			if err != nil {
				logger.WarnContext(ctx, "invalid access token", slog.Any("error", err))
				handlers.SendError(logger, w, "Invalid token", http.StatusNotAcceptable)
				return
			}

			next.ServeHTTP(w, r.WithContext(handlers.WithUserID(ctx, userID)))
		})
	}
}

// bearerToken извлекает токен из заголовка "Authorization: Bearer <token>"
func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
