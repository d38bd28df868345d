package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"HTTP_ADDR", "DB_DRIVER", "DB_DSN", "JWT_SECRET", "RATE_LIMIT_BACKEND", "REDIS_ADDR",
	"CORS_ORIGIN", "LOG_LEVEL", "LOG_FORMAT", "ACCESS_TOKEN_TTL", "REFRESH_TOKEN_TTL",
	"LOGIN_RATE_WINDOW", "SWEEP_INTERVAL", "BCRYPT_COST", "LOGIN_RATE_LIMIT",
	"TRUST_PROXY",
}

// clearEnv убирает переменные конфигурации на время теста
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func writeEnvFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load(nil, "")
	require.NoError(t, err)

	assert.Equal(t, ":3001", cfg.HTTPAddr)
	assert.Equal(t, DriverSQLite, cfg.DBDriver)
	assert.Equal(t, BackendMemory, cfg.RateLimitBackend)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, 15*time.Minute, cfg.LoginRateWindow)
	assert.Equal(t, 5, cfg.LoginRateLimit)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.False(t, cfg.TrustProxy)
}

func TestLoad_MissingSecret(t *testing.T) {
	clearEnv(t)

	_, err := Load(nil, "")
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestLoad_Precedence(t *testing.T) {
	clearEnv(t)
	envFile := writeEnvFile(t, "JWT_SECRET=from-file\nHTTP_ADDR=:1111\nDB_DRIVER=bolt\nLOGIN_RATE_LIMIT=7\n")

	t.Setenv("HTTP_ADDR", ":2222")
	t.Setenv("ACCESS_TOKEN_TTL", "5m")

	cfg, err := Load([]string{"-db-driver", "postgres", "-db-dsn", "postgres://localhost/linaform"}, envFile)
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.JWTSecret)
	assert.Equal(t, ":2222", cfg.HTTPAddr, "environment overrides .env")
	assert.Equal(t, DriverPostgres, cfg.DBDriver, "flags override .env")
	assert.Equal(t, "postgres://localhost/linaform", cfg.DBDSN)
	assert.Equal(t, 5*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 7, cfg.LoginRateLimit)
}

func TestLoad_MissingEnvFileIsIgnored(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")

	_, err := Load(nil, filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"duration", "REFRESH_TOKEN_TTL", "week"},
		{"int", "BCRYPT_COST", "ten"},
		{"bool", "TRUST_PROXY", "maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("JWT_SECRET", "s3cret")
			t.Setenv(tt.key, tt.val)

			_, err := Load(nil, "")
			assert.ErrorContains(t, err, tt.key)
		})
	}
}

func TestLoad_TrustProxy(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("TRUST_PROXY", "true")

	cfg, err := Load(nil, "")
	require.NoError(t, err)
	assert.True(t, cfg.TrustProxy)

	cfg, err = Load([]string{"-trust-proxy=false"}, "")
	require.NoError(t, err)
	assert.False(t, cfg.TrustProxy, "flag overrides environment")
}

func TestLoad_UnknownFlag(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")

	_, err := Load([]string{"-no-such-flag"}, "")
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := Defaults()
		cfg.JWTSecret = "s3cret"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"unknown driver", func(c *Config) { c.DBDriver = "mysql" }, true},
		{"empty dsn", func(c *Config) { c.DBDSN = "" }, true},
		{"unknown backend", func(c *Config) { c.RateLimitBackend = "memcached" }, true},
		{"redis without address", func(c *Config) { c.RateLimitBackend = BackendRedis; c.RedisAddr = "" }, true},
		{"redis", func(c *Config) { c.RateLimitBackend = BackendRedis }, false},
		{"bcrypt cost too low", func(c *Config) { c.BcryptCost = 1 }, true},
		{"zero access ttl", func(c *Config) { c.AccessTokenTTL = 0 }, true},
		{"zero rate limit", func(c *Config) { c.LoginRateLimit = 0 }, true},
		{"sweeper disabled", func(c *Config) { c.SweepInterval = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoad_PositionalArgs(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load([]string{"-db-driver", "bolt", "adduser", "-email", "a@x.com"}, "")
	require.NoError(t, err)

	assert.Equal(t, DriverBolt, cfg.DBDriver)
	assert.Equal(t, []string{"adduser", "-email", "a@x.com"}, cfg.Args)
}
