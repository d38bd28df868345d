package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iudanet/linaform/internal/crypto"
	"github.com/iudanet/linaform/internal/server"
	"github.com/iudanet/linaform/internal/server/jwt"
	"github.com/iudanet/linaform/internal/server/ratelimit"
	"github.com/iudanet/linaform/internal/server/session"
	"github.com/iudanet/linaform/internal/server/storage/boltdb"
	"github.com/iudanet/linaform/pkg/api"
)

// startServer поднимает настоящий HTTP сервер поверх BoltDB
func startServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := boltdb.New(ctx, filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	hasher, err := crypto.NewHasher(bcrypt.MinCost)
	require.NoError(t, err)
	tokens, err := jwt.NewService("client-test-secret", 0, 0)
	require.NoError(t, err)

	limiter := ratelimit.NewMemory(ratelimit.DefaultLimit, ratelimit.DefaultWindow)
	t.Cleanup(limiter.Stop)

	srv := httptest.NewServer(server.NewRouter(server.Deps{
		Logger:       logger,
		Sessions:     session.NewManager(store, hasher, tokens, logger),
		Tokens:       tokens,
		Store:        store,
		LoginLimiter: limiter,
		Version:      "test",
	}))
	t.Cleanup(srv.Close)

	return srv
}

func TestClient_SessionLifecycle(t *testing.T) {
	ctx := context.Background()
	c := NewClient(startServer(t).URL)

	health, err := c.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ok", health.Status)

	_, err = c.Me(ctx)
	assert.ErrorIs(t, err, ErrNoSession)

	reg, err := c.Register(ctx, api.RegisterRequest{Email: "a@x.com", Username: "alice", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "User registered successfully", reg.Message)

	login, err := c.Login(ctx, api.LoginRequest{Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "alice", login.User.Username)
	firstRefresh := c.refreshToken
	require.NotEmpty(t, firstRefresh)

	me, err := c.Me(ctx)
	require.NoError(t, err)
	assert.True(t, me.Authenticated)

	refreshed, err := c.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, refreshed.AccessToken, c.AccessToken())
	assert.NotEqual(t, firstRefresh, c.refreshToken)

	require.NoError(t, c.Logout(ctx))
	assert.Empty(t, c.AccessToken())

	_, err = c.Refresh(ctx)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestClient_ReusedRefreshTokenIsForbidden(t *testing.T) {
	ctx := context.Background()
	c := NewClient(startServer(t).URL)

	_, err := c.Register(ctx, api.RegisterRequest{Email: "a@x.com", Username: "alice", Password: "secret1"})
	require.NoError(t, err)
	_, err = c.Login(ctx, api.LoginRequest{Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)

	stale := c.refreshToken
	_, err = c.Refresh(ctx)
	require.NoError(t, err)

	c.refreshToken = stale
	_, err = c.Refresh(ctx)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "Invalid refresh token", apiErr.Message)
}

func TestClient_LoginErrors(t *testing.T) {
	ctx := context.Background()
	c := NewClient(startServer(t).URL)

	_, err := c.Login(ctx, api.LoginRequest{Email: "nobody@x.com", Password: "secret1"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)

	_, err = c.Register(ctx, api.RegisterRequest{Email: "bad", Username: "alice", Password: "secret1"})
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "invalid email address", apiErr.Message)
}

func TestClient_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "600")
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{
			Error:      "Too many login attempts. Please try again later.",
			RetryAfter: 600,
		})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Login(context.Background(), api.LoginRequest{Email: "a@x.com", Password: "secret1"})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, int64(600), apiErr.RetryAfter)
}

func TestClient_NonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Health(context.Background())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "bad gateway")
}

func TestClient_ContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewClient(srv.URL).Health(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestWithHTTPClient(t *testing.T) {
	hc := &http.Client{Timeout: time.Second}
	c := NewClient("http://localhost", WithHTTPClient(hc))
	assert.Same(t, hc, c.httpClient)
}
