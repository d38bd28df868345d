// Package session управляет жизненным циклом сессий: регистрация, вход,
// выход, ротация refresh token и очистка истекших токенов.
//
// Состояние сессии не хранится отдельно: пользователь считается
// аутентифицированным, пока у него есть хотя бы один действующий refresh token.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/linaform/internal/crypto"
	"github.com/iudanet/linaform/internal/models"
	"github.com/iudanet/linaform/internal/server/jwt"
	"github.com/iudanet/linaform/internal/server/storage"
	"github.com/iudanet/linaform/internal/validation"
)

// Store объединяет хранилища пользователей и refresh token
type Store interface {
	storage.UserStorage
	storage.TokenStorage
}

// State производное состояние сессии пользователя
type State int

const (
	// Anonymous у пользователя нет действующих refresh token
	Anonymous State = iota
	// Authenticated есть хотя бы один действующий refresh token
	Authenticated
)

func (s State) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	default:
		return "anonymous"
	}
}

// LoginResult результат успешного входа
type LoginResult struct {
	RefreshExpiresAt time.Time
	User             models.PublicUser
	AccessToken      string
	RefreshToken     string
}

// RefreshResult результат успешной ротации refresh token
type RefreshResult struct {
	RefreshExpiresAt time.Time
	UserID           string
	AccessToken      string
	RefreshToken     string
}

// Profile сведения о текущем пользователе для защищенных операций
type Profile struct {
	User           models.PublicUser
	State          State
	ActiveSessions int
}

// Manager реализует операции над сессиями поверх хранилища
type Manager struct {
	store  Store
	hasher *crypto.Hasher
	tokens *jwt.Service
	logger *slog.Logger
	now    func() time.Time
}

// Option настраивает Manager
type Option func(*Manager)

// WithClock подменяет источник текущего времени
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager создает менеджер сессий
func NewManager(store Store, hasher *crypto.Hasher, tokens *jwt.Service, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		hasher: hasher,
		tokens: tokens,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NormalizeEmail приводит email к каноническому виду для сравнения и хранения
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func internalError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrInternal, op, err)
}

// Register создает нового пользователя. Сессия при этом не открывается.
func (m *Manager) Register(ctx context.Context, email, username, password string) (models.PublicUser, error) {
	email = NormalizeEmail(email)

	if err := validation.ValidateRegistration(email, username, password); err != nil {
		return models.PublicUser{}, &ValidationError{Message: err.Error()}
	}

	// Быстрая проверка, окончательное решение за уникальным индексом хранилища
	_, err := m.store.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		m.logger.WarnContext(ctx, "email already registered", slog.String("email", email))
		return models.PublicUser{}, ErrEmailInUse
	case !errors.Is(err, storage.ErrUserNotFound):
		m.logger.ErrorContext(ctx, "failed to look up user", slog.Any("error", err))
		return models.PublicUser{}, internalError("look up user", err)
	}

	hash, err := m.hasher.Hash(password)
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to hash password", slog.Any("error", err))
		return models.PublicUser{}, internalError("hash password", err)
	}

	user := &models.User{
		ID:           uuid.New().String(),
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    m.now(),
	}

	if err := m.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrUserAlreadyExists) {
			m.logger.WarnContext(ctx, "email already registered", slog.String("email", email))
			return models.PublicUser{}, ErrEmailInUse
		}
		m.logger.ErrorContext(ctx, "failed to create user", slog.Any("error", err))
		return models.PublicUser{}, internalError("create user", err)
	}

	m.logger.InfoContext(ctx, "user registered",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username))

	return user.Public(), nil
}

// Login проверяет учетные данные и открывает новую сессию
func (m *Manager) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = NormalizeEmail(email)

	if err := validation.ValidateLogin(email, password); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}

	user, err := m.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			m.logger.WarnContext(ctx, "login failed: user not found", slog.String("email", email))
			return nil, ErrUserNotFound
		}
		m.logger.ErrorContext(ctx, "failed to get user", slog.Any("error", err))
		return nil, internalError("get user", err)
	}

	if !m.hasher.Verify(password, user.PasswordHash) {
		m.logger.WarnContext(ctx, "login failed: invalid password", slog.String("user_id", user.ID))
		return nil, ErrInvalidPassword
	}

	accessToken, err := m.tokens.IssueAccess(user.ID)
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to issue access token", slog.Any("error", err))
		return nil, internalError("issue access token", err)
	}

	refreshToken, expiresAt, err := m.tokens.IssueRefresh()
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to issue refresh token", slog.Any("error", err))
		return nil, internalError("issue refresh token", err)
	}

	token := &models.RefreshToken{
		Token:     refreshToken,
		UserID:    user.ID,
		ExpiresAt: expiresAt,
		CreatedAt: m.now(),
	}
	if err := m.store.SaveRefreshToken(ctx, token); err != nil {
		m.logger.ErrorContext(ctx, "failed to save refresh token", slog.Any("error", err))
		return nil, internalError("save refresh token", err)
	}

	m.logger.InfoContext(ctx, "user logged in", slog.String("user_id", user.ID))

	return &LoginResult{
		User:             user.Public(),
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: expiresAt,
	}, nil
}

// Logout удаляет refresh token. Повторный выход с тем же токеном не ошибка.
func (m *Manager) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return ErrNoRefreshToken
	}

	err := m.store.DeleteRefreshToken(ctx, refreshToken)
	switch {
	case err == nil:
		m.logger.InfoContext(ctx, "user logged out")
	case errors.Is(err, storage.ErrTokenNotFound):
		m.logger.DebugContext(ctx, "logout with unknown refresh token")
	default:
		m.logger.ErrorContext(ctx, "failed to delete refresh token", slog.Any("error", err))
		return internalError("delete refresh token", err)
	}

	return nil
}

// Refresh обменивает действующий refresh token на новую пару токенов.
// Старый токен удаляется в той же транзакции, что и сохраняется новый,
// поэтому из двух одновременных запросов успешен только один.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	if refreshToken == "" {
		return nil, ErrNoRefreshToken
	}

	stored, err := m.store.GetRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			m.logger.WarnContext(ctx, "refresh token not found")
			return nil, ErrRefreshTokenInvalid
		}
		m.logger.ErrorContext(ctx, "failed to get refresh token", slog.Any("error", err))
		return nil, internalError("get refresh token", err)
	}

	if stored.Expired(m.now()) {
		m.logger.WarnContext(ctx, "refresh token expired", slog.String("user_id", stored.UserID))
		return nil, ErrRefreshTokenInvalid
	}

	nextToken, expiresAt, err := m.tokens.IssueRefresh()
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to issue refresh token", slog.Any("error", err))
		return nil, internalError("issue refresh token", err)
	}

	next := &models.RefreshToken{
		Token:     nextToken,
		UserID:    stored.UserID,
		ExpiresAt: expiresAt,
		CreatedAt: m.now(),
	}
	if err := m.store.RotateRefreshToken(ctx, refreshToken, next); err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			m.logger.WarnContext(ctx, "refresh token already rotated", slog.String("user_id", stored.UserID))
			return nil, ErrRefreshTokenInvalid
		}
		m.logger.ErrorContext(ctx, "failed to rotate refresh token", slog.Any("error", err))
		return nil, internalError("rotate refresh token", err)
	}

	accessToken, err := m.tokens.IssueAccess(stored.UserID)
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to issue access token", slog.Any("error", err))
		return nil, internalError("issue access token", err)
	}

	m.logger.InfoContext(ctx, "tokens refreshed", slog.String("user_id", stored.UserID))

	return &RefreshResult{
		UserID:           stored.UserID,
		AccessToken:      accessToken,
		RefreshToken:     nextToken,
		RefreshExpiresAt: expiresAt,
	}, nil
}

// activeSessions считает неистекшие refresh token пользователя
func (m *Manager) activeSessions(ctx context.Context, userID string) (int, error) {
	tokens, err := m.store.GetUserTokens(ctx, userID)
	if err != nil {
		return 0, err
	}

	now := m.now()
	active := 0
	for _, token := range tokens {
		if !token.Expired(now) {
			active++
		}
	}
	return active, nil
}

// State вычисляет состояние сессии пользователя
func (m *Manager) State(ctx context.Context, userID string) (State, error) {
	active, err := m.activeSessions(ctx, userID)
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to get user tokens", slog.Any("error", err))
		return Anonymous, internalError("get user tokens", err)
	}
	if active > 0 {
		return Authenticated, nil
	}
	return Anonymous, nil
}

// Profile возвращает публичные данные пользователя и состояние его сессий
func (m *Manager) Profile(ctx context.Context, userID string) (*Profile, error) {
	user, err := m.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		m.logger.ErrorContext(ctx, "failed to get user", slog.Any("error", err))
		return nil, internalError("get user", err)
	}

	active, err := m.activeSessions(ctx, userID)
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to get user tokens", slog.Any("error", err))
		return nil, internalError("get user tokens", err)
	}

	state := Anonymous
	if active > 0 {
		state = Authenticated
	}

	return &Profile{
		User:           user.Public(),
		State:          state,
		ActiveSessions: active,
	}, nil
}

// Sweep удаляет истекшие refresh token и возвращает их количество
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	deleted, err := m.store.DeleteExpiredTokens(ctx, m.now())
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to delete expired tokens", slog.Any("error", err))
		return 0, internalError("delete expired tokens", err)
	}

	if deleted > 0 {
		m.logger.InfoContext(ctx, "expired refresh tokens removed", slog.Int("count", deleted))
	}
	return deleted, nil
}

// RunSweeper периодически вызывает Sweep до отмены контекста
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Ошибка уже залогирована в Sweep, следующий тик повторит попытку
			_, _ = m.Sweep(ctx)
		}
	}
}
