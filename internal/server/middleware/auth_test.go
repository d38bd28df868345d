package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/linaform/internal/server/handlers"
	"github.com/iudanet/linaform/internal/server/jwt"
	"github.com/iudanet/linaform/pkg/api"
)

// setupTestLogger creates a logger for testing
func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestJWT(t *testing.T, secret string, now func() time.Time) *jwt.Service {
	t.Helper()
	svc, err := jwt.NewService(secret, 0, 0, jwt.WithClock(now))
	require.NoError(t, err)
	return svc
}

func errorMessage(t *testing.T, body *bytes.Buffer) string {
	t.Helper()
	var resp api.ErrorResponse
	require.NoError(t, json.NewDecoder(body).Decode(&resp))
	return resp.Error
}

func TestAuthMiddleware_Success(t *testing.T) {
	svc := newTestJWT(t, "test-secret-key", time.Now)
	token, err := svc.IssueAccess("user123")
	require.NoError(t, err)

	handler := AuthMiddleware(setupTestLogger(), svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := handlers.GetUserID(r.Context())
		require.True(t, ok, "user_id should be in context")
		assert.Equal(t, "user123", userID)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	svc := newTestJWT(t, "test-secret-key", time.Now)
	handler := AuthMiddleware(setupTestLogger(), svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("Handler should not be called")
	}))

	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"no Bearer prefix", "token123"},
		{"wrong scheme", "Basic token123"},
		{"empty token", "Bearer "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, "Access token required", errorMessage(t, w.Body))
		})
	}
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	svc := newTestJWT(t, "test-secret-key", clock)

	issuedEarlier := newTestJWT(t, "test-secret-key", func() time.Time { return now.Add(-16 * time.Minute) })
	expired, err := issuedEarlier.IssueAccess("user123")
	require.NoError(t, err)

	otherSecret := newTestJWT(t, "other-secret", clock)
	forged, err := otherSecret.IssueAccess("user123")
	require.NoError(t, err)

	handler := AuthMiddleware(setupTestLogger(), svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("Handler should not be called")
	}))

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-jwt"},
		{"expired", expired},
		{"wrong secret", forged},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			req.Header.Set("Authorization", "Bearer "+tt.token)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, http.StatusNotAcceptable, w.Code)
			assert.Equal(t, "Invalid token", errorMessage(t, w.Body))
		})
	}
}

func TestAuthMiddleware_TokenValidFor14Minutes(t *testing.T) {
	issued := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	now := issued
	svc := newTestJWT(t, "test-secret-key", func() time.Time { return now })

	token, err := svc.IssueAccess("user123")
	require.NoError(t, err)

	handler := AuthMiddleware(setupTestLogger(), svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func() int {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	now = issued.Add(14 * time.Minute)
	assert.Equal(t, http.StatusOK, do())

	now = issued.Add(16 * time.Minute)
	assert.Equal(t, http.StatusNotAcceptable, do())
}
