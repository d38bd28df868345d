package jwt

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key"

// fakeClock управляемые часы для проверки границ срока действия
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestService(t *testing.T, clock *fakeClock) *Service {
	t.Helper()
	s, err := NewService(testSecret, DefaultAccessTokenTTL, DefaultRefreshTokenTTL, WithClock(clock.Now))
	require.NoError(t, err)
	return s
}

func TestNewService_MissingSecret(t *testing.T) {
	s, err := NewService("", time.Minute, time.Hour)
	assert.ErrorIs(t, err, ErrMissingSecret)
	assert.Nil(t, s)
}

func TestNewService_DefaultTTLs(t *testing.T) {
	s, err := NewService(testSecret, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultAccessTokenTTL, s.AccessTokenTTL())
	assert.Equal(t, DefaultRefreshTokenTTL, s.refreshTokenTTL)
}

func TestService_AccessRoundTrip(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	s := newTestService(t, clock)

	for _, userID := range []string{"user-1", "6f1c2d9e-8a43-4b55-9d0e-1f2a3b4c5d6e"} {
		token, err := s.IssueAccess(userID)
		require.NoError(t, err)

		got, err := s.VerifyAccess(token)
		require.NoError(t, err)
		assert.Equal(t, userID, got)
	}
}

func TestService_AccessExpiryBoundary(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	s := newTestService(t, clock)

	token, err := s.IssueAccess("user-1")
	require.NoError(t, err)

	// Через 14 минут токен еще действителен
	clock.Advance(14 * time.Minute)
	userID, err := s.VerifyAccess(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)

	// Через 16 минут токен отклоняется
	clock.Advance(2 * time.Minute)
	_, err = s.VerifyAccess(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestService_VerifyAccess_Rejects(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	s := newTestService(t, clock)

	valid, err := s.IssueAccess("user-1")
	require.NoError(t, err)

	other, err := NewService("another-secret", DefaultAccessTokenTTL, DefaultRefreshTokenTTL, WithClock(clock.Now))
	require.NoError(t, err)
	foreign, err := other.IssueAccess("user-1")
	require.NoError(t, err)

	parts := strings.Split(valid, ".")
	require.Len(t, parts, 3)
	tamperedPayload, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "admin",
		Issuer:    issuer,
		ExpiresAt: jwt.NewNumericDate(clock.now.Add(time.Hour)),
	}).SigningString()
	require.NoError(t, err)
	tampered := tamperedPayload + "." + parts[2]

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "user-1",
		Issuer:    issuer,
		ExpiresAt: jwt.NewNumericDate(clock.now.Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    issuer,
		ExpiresAt: jwt.NewNumericDate(clock.now.Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "user-1",
		Issuer:  issuer,
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "garbage", token: "not.a.jwt"},
		{name: "two segments", token: parts[0] + "." + parts[1]},
		{name: "signed with another secret", token: foreign},
		{name: "payload swapped", token: tampered},
		{name: "alg none", token: noneToken},
		{name: "missing subject", token: noSubject},
		{name: "missing expiry", token: noExpiry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			userID, err := s.VerifyAccess(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
			assert.Empty(t, userID)
		})
	}
}

func TestService_IssueRefresh(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	s := newTestService(t, clock)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, expiresAt, err := s.IssueRefresh()
		require.NoError(t, err)

		// 32 байта в base64url без паддинга
		assert.Len(t, token, 43)
		assert.False(t, seen[token], "refresh token must be unique")
		seen[token] = true

		assert.Equal(t, clock.now.Add(7*24*time.Hour), expiresAt)
	}
}

func TestService_RefreshTokenIsNotAccessToken(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	s := newTestService(t, clock)

	refresh, _, err := s.IssueRefresh()
	require.NoError(t, err)

	_, err = s.VerifyAccess(refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
