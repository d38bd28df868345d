// Package jwt выпускает и проверяет токены доступа и генерирует refresh токены
package jwt

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultAccessTokenTTL время жизни access token
	DefaultAccessTokenTTL = 15 * time.Minute
	// DefaultRefreshTokenTTL время жизни refresh token
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour

	issuer            = "linaform"
	refreshTokenBytes = 32
)

var (
	// ErrMissingSecret ключ подписи не задан
	ErrMissingSecret = errors.New("jwt signing secret is required")

	// ErrInvalidToken токен поддельный, поврежден или истек
	ErrInvalidToken = errors.New("invalid token")
)

// Service выпускает access и refresh токены
// Ключ подписи задается при создании и дальше не меняется
type Service struct {
	now             func() time.Time
	secret          []byte
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
}

// Option настраивает Service
type Option func(*Service)

// WithClock подменяет источник времени (используется в тестах)
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService создает сервис токенов
// Пустой secret считается фатальной ошибкой конфигурации
func NewService(secret string, accessTokenTTL, refreshTokenTTL time.Duration, opts ...Option) (*Service, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if accessTokenTTL <= 0 {
		accessTokenTTL = DefaultAccessTokenTTL
	}
	if refreshTokenTTL <= 0 {
		refreshTokenTTL = DefaultRefreshTokenTTL
	}

	s := &Service{
		secret:          []byte(secret),
		accessTokenTTL:  accessTokenTTL,
		refreshTokenTTL: refreshTokenTTL,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// AccessTokenTTL возвращает время жизни access token
func (s *Service) AccessTokenTTL() time.Duration {
	return s.accessTokenTTL
}

// IssueAccess создает подписанный access token с userID в subject
func (s *Service) IssueAccess(userID string) (string, error) {
	now := s.now()

	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTokenTTL)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// VerifyAccess проверяет подпись и срок действия и возвращает userID
// Любая ошибка разбора сводится к ErrInvalidToken
func (s *Service) VerifyAccess(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Проверяем что используется правильный алгоритм подписи
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}

	return claims.Subject, nil
}

// IssueRefresh генерирует непрозрачный refresh token и время его истечения
// Токен не несет claims и имеет смысл только вместе с записью в хранилище
func (s *Service) IssueRefresh() (string, time.Time, error) {
	// Генерируем случайные 32 байта
	tokenBytes := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate random token: %w", err)
	}

	token := base64.RawURLEncoding.EncodeToString(tokenBytes)
	expiresAt := s.now().Add(s.refreshTokenTTL)

	return token, expiresAt, nil
}
