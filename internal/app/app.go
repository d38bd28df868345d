// Package app собирает компоненты сервиса по конфигурации,
// общий код для cmd/server и cmd/authctl.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iudanet/linaform/internal/config"
	"github.com/iudanet/linaform/internal/crypto"
	"github.com/iudanet/linaform/internal/server/jwt"
	"github.com/iudanet/linaform/internal/server/ratelimit"
	"github.com/iudanet/linaform/internal/server/session"
	"github.com/iudanet/linaform/internal/server/storage"
	"github.com/iudanet/linaform/internal/server/storage/boltdb"
	"github.com/iudanet/linaform/internal/server/storage/postgres"
	"github.com/iudanet/linaform/internal/server/storage/sqlite"
)

// OpenStorage открывает хранилище, выбранное в cfg.DBDriver
func OpenStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	var (
		store storage.Storage
		err   error
	)

	switch cfg.DBDriver {
	case config.DriverSQLite:
		store, err = sqlite.New(ctx, cfg.DBDSN)
	case config.DriverPostgres:
		store, err = postgres.New(ctx, cfg.DBDSN)
	case config.DriverBolt:
		store, err = boltdb.New(ctx, cfg.DBDSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.DBDriver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", cfg.DBDriver, err)
	}

	return store, nil
}

// NewLoginLimiter создает rate limiter входа. stop освобождает ресурсы limiter.
func NewLoginLimiter(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ratelimit.Limiter, func(), error) {
	switch cfg.RateLimitBackend {
	case config.BackendMemory:
		l := ratelimit.NewMemory(cfg.LoginRateLimit, cfg.LoginRateWindow)
		return l, l.Stop, nil
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		// Недоступный Redis при старте не фатален: limiter пропускает запросы
		if err := client.Ping(ctx).Err(); err != nil {
			logger.WarnContext(ctx, "redis is not reachable, login rate limiting fails open",
				slog.String("addr", cfg.RedisAddr), slog.Any("error", err))
		}
		l := ratelimit.NewRedis(client, ratelimit.DefaultRedisPrefix, cfg.LoginRateLimit, cfg.LoginRateWindow)
		return l, func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown rate limit backend %q", cfg.RateLimitBackend)
	}
}

// NewSessionManager создает менеджер сессий и сервис токенов
func NewSessionManager(cfg *config.Config, store session.Store, logger *slog.Logger) (*session.Manager, *jwt.Service, error) {
	hasher, err := crypto.NewHasher(cfg.BcryptCost)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create password hasher: %w", err)
	}

	tokens, err := jwt.NewService(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create token service: %w", err)
	}

	return session.NewManager(store, hasher, tokens, logger), tokens, nil
}

// Sweeper периодически удаляет истекшие refresh token до отмены ctx
type Sweeper interface {
	RunSweeper(ctx context.Context, interval time.Duration)
}

// StartSweeper запускает очистку в отдельной горутине
// stop отменяет очистку и ждет завершения горутины, его нужно вызвать до закрытия хранилища
func StartSweeper(ctx context.Context, sweeper Sweeper, interval time.Duration) (stop func()) {
	if interval <= 0 {
		return func() {}
	}

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.RunSweeper(ctx, interval)
	}()

	return func() {
		cancel()
		wg.Wait()
	}
}
