// Package server собирает HTTP API сервиса авторизации
package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/iudanet/linaform/internal/server/handlers"
	"github.com/iudanet/linaform/internal/server/middleware"
	"github.com/iudanet/linaform/internal/server/ratelimit"
)

// HealthPath путь health check, не попадает в журнал запросов
const HealthPath = "/api/health"

// Deps зависимости HTTP слоя
type Deps struct {
	Logger       *slog.Logger
	Sessions     handlers.SessionService
	Tokens       middleware.TokenVerifier
	Store        handlers.Pinger
	LoginLimiter ratelimit.Limiter
	// CORSOrigin origin клиента, которому разрешены запросы с credentials
	CORSOrigin string
	Version    string
	// TrustProxy сервер стоит за прокси, адрес клиента берется из заголовков
	TrustProxy bool
}

// NewRouter создает chi router с маршрутами /api
func NewRouter(deps Deps) http.Handler {
	authHandler := handlers.NewAuthHandler(deps.Logger, deps.Sessions)
	healthHandler := handlers.NewHealthHandler(deps.Logger, deps.Store, deps.Version)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	if deps.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.LoggingMiddleware(deps.Logger, HealthPath))
	r.Use(middleware.RecoveryMiddleware(deps.Logger))
	if deps.CORSOrigin != "" {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{deps.CORSOrigin},
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Retry-After", "RateLimit-Limit", "RateLimit-Remaining", "RateLimit-Reset"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			_, _ = w.Write([]byte("server is working"))
		})
		r.Get("/health", healthHandler.Health)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.With(middleware.RateLimitMiddleware(deps.Logger, deps.LoginLimiter)).
				Post("/login", authHandler.Login)
			r.Post("/logout", authHandler.Logout)
			r.Post("/refresh", authHandler.Refresh)

			r.With(middleware.AuthMiddleware(deps.Logger, deps.Tokens)).
				Get("/me", authHandler.Me)
		})
	})

	return r
}
