package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/iudanet/linaform/internal/server/handlers"
	"github.com/iudanet/linaform/internal/server/ratelimit"
	"github.com/iudanet/linaform/pkg/api"
)

const msgTooManyAttempts = "Too many login attempts. Please try again later."

// RateLimitMiddleware ограничивает частоту запросов с одного IP адреса
// При недоступности limiter запрос пропускается, ошибка логируется
func RateLimitMiddleware(logger *slog.Logger, limiter ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := getClientIP(r)

			decision, err := limiter.Allow(ctx, key)
			if err != nil {
				logger.ErrorContext(ctx, "rate limiter unavailable", slog.String("ip", key), slog.Any("error", err))
				next.ServeHTTP(w, r)
				return
			}

			retryAfter := seconds(decision.RetryAfter)
			w.Header().Set("RateLimit-Limit", strconv.Itoa(decision.Limit))
			w.Header().Set("RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			w.Header().Set("RateLimit-Reset", strconv.FormatInt(retryAfter, 10))

			if !decision.Allowed {
				logger.WarnContext(ctx, "rate limit exceeded",
					slog.String("ip", key),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)

				w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))
				handlers.SendJSON(logger, w, api.ErrorResponse{
					Error:      msgTooManyAttempts,
					RetryAfter: retryAfter,
				}, http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// seconds округляет длительность вверх до целых секунд
func seconds(d time.Duration) int64 {
	return int64(math.Ceil(d.Seconds()))
}

// getClientIP возвращает адрес клиента из RemoteAddr
// Заголовки прокси здесь не читаются: за доверенным прокси RemoteAddr
// заранее переписывает chi middleware.RealIP
func getClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
