// Package config собирает настройки сервера: значения по умолчанию,
// затем файл .env, затем переменные окружения, затем флаги командной строки.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"github.com/iudanet/linaform/internal/server/jwt"
	"github.com/iudanet/linaform/internal/server/ratelimit"
)

// Поддерживаемые хранилища
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverBolt     = "bolt"
)

// Поддерживаемые бэкенды rate limiter
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config настройки сервера
type Config struct {
	HTTPAddr         string
	DBDriver         string
	DBDSN            string
	JWTSecret        string
	RateLimitBackend string
	RedisAddr        string
	CORSOrigin       string
	LogLevel         string
	LogFormat        string
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration
	LoginRateWindow  time.Duration
	SweepInterval    time.Duration
	// Args позиционные аргументы после флагов
	Args           []string
	BcryptCost     int
	LoginRateLimit int
	// TrustProxy адрес клиента берется из X-Forwarded-For / X-Real-IP
	TrustProxy bool
}

// Defaults возвращает настройки для локального запуска
// JWTSecret не имеет значения по умолчанию и обязателен
func Defaults() *Config {
	return &Config{
		HTTPAddr:         ":3001",
		DBDriver:         DriverSQLite,
		DBDSN:            "linaform.db",
		RateLimitBackend: BackendMemory,
		RedisAddr:        "localhost:6379",
		CORSOrigin:       "https://mohiramansurovna.github.io",
		LogLevel:         "info",
		LogFormat:        "text",
		AccessTokenTTL:   jwt.DefaultAccessTokenTTL,
		RefreshTokenTTL:  jwt.DefaultRefreshTokenTTL,
		LoginRateWindow:  ratelimit.DefaultWindow,
		SweepInterval:    time.Hour,
		BcryptCost:       bcrypt.DefaultCost,
		LoginRateLimit:   ratelimit.DefaultLimit,
	}
}

// Load собирает конфигурацию. envFile может отсутствовать,
// переменные окружения процесса имеют приоритет над значениями из файла.
func Load(args []string, envFile string) (*Config, error) {
	cfg := Defaults()

	fileEnv := map[string]string{}
	if envFile != "" {
		values, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			fileEnv = values
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read %s: %w", envFile, err)
		}
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fileEnv[key]
		return v, ok
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	if err := cfg.parseFlags(args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"HTTP_ADDR":          &c.HTTPAddr,
		"DB_DRIVER":          &c.DBDriver,
		"DB_DSN":             &c.DBDSN,
		"JWT_SECRET":         &c.JWTSecret,
		"RATE_LIMIT_BACKEND": &c.RateLimitBackend,
		"REDIS_ADDR":         &c.RedisAddr,
		"CORS_ORIGIN":        &c.CORSOrigin,
		"LOG_LEVEL":          &c.LogLevel,
		"LOG_FORMAT":         &c.LogFormat,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"ACCESS_TOKEN_TTL":  &c.AccessTokenTTL,
		"REFRESH_TOKEN_TTL": &c.RefreshTokenTTL,
		"LOGIN_RATE_WINDOW": &c.LoginRateWindow,
		"SWEEP_INTERVAL":    &c.SweepInterval,
	}
	for key, dst := range durations {
		v, ok := lookup(key)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = d
	}

	ints := map[string]*int{
		"BCRYPT_COST":      &c.BcryptCost,
		"LOGIN_RATE_LIMIT": &c.LoginRateLimit,
	}
	for key, dst := range ints {
		v, ok := lookup(key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = n
	}

	if v, ok := lookup("TRUST_PROXY"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid TRUST_PROXY: %w", err)
		}
		c.TrustProxy = b
	}

	return nil
}

func (c *Config) parseFlags(args []string) error {
	fs := flag.NewFlagSet("linaform", flag.ContinueOnError)

	fs.StringVar(&c.HTTPAddr, "addr", c.HTTPAddr, "HTTP listen address")
	fs.StringVar(&c.DBDriver, "db-driver", c.DBDriver, "storage driver: sqlite, postgres or bolt")
	fs.StringVar(&c.DBDSN, "db-dsn", c.DBDSN, "database DSN or file path")
	fs.StringVar(&c.JWTSecret, "jwt-secret", c.JWTSecret, "HMAC secret for access tokens")
	fs.StringVar(&c.RateLimitBackend, "rate-limit-backend", c.RateLimitBackend, "login rate limiter backend: memory or redis")
	fs.StringVar(&c.RedisAddr, "redis-addr", c.RedisAddr, "Redis address for the redis rate limiter")
	fs.StringVar(&c.CORSOrigin, "cors-origin", c.CORSOrigin, "allowed client origin, empty disables CORS")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level: debug, info, warn, error")
	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "log format: text or json")
	fs.DurationVar(&c.AccessTokenTTL, "access-ttl", c.AccessTokenTTL, "access token lifetime")
	fs.DurationVar(&c.RefreshTokenTTL, "refresh-ttl", c.RefreshTokenTTL, "refresh token lifetime")
	fs.DurationVar(&c.LoginRateWindow, "login-rate-window", c.LoginRateWindow, "login rate limit window")
	fs.DurationVar(&c.SweepInterval, "sweep-interval", c.SweepInterval, "expired refresh token cleanup interval, 0 disables")
	fs.IntVar(&c.BcryptCost, "bcrypt-cost", c.BcryptCost, "bcrypt cost")
	fs.IntVar(&c.LoginRateLimit, "login-rate-limit", c.LoginRateLimit, "login attempts per window")
	fs.BoolVar(&c.TrustProxy, "trust-proxy", c.TrustProxy, "take client address from proxy headers")

	if err := fs.Parse(args); err != nil {
		return err
	}
	c.Args = fs.Args()
	return nil
}

// Validate проверяет согласованность настроек
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	switch c.DBDriver {
	case DriverSQLite, DriverPostgres, DriverBolt:
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}
	if c.DBDSN == "" {
		return errors.New("DB_DSN is required")
	}

	switch c.RateLimitBackend {
	case BackendMemory:
	case BackendRedis:
		if c.RedisAddr == "" {
			return errors.New("REDIS_ADDR is required for redis rate limiter")
		}
	default:
		return fmt.Errorf("unknown RATE_LIMIT_BACKEND %q", c.RateLimitBackend)
	}

	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return errors.New("token lifetimes must be positive")
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.LoginRateLimit <= 0 || c.LoginRateWindow <= 0 {
		return errors.New("login rate limit and window must be positive")
	}
	if c.SweepInterval < 0 {
		return errors.New("SWEEP_INTERVAL must not be negative")
	}

	return nil
}
