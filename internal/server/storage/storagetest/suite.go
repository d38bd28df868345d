// Package storagetest содержит общий набор тестов, который обязана проходить
// каждая реализация storage.Storage.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/linaform/internal/models"
	"github.com/iudanet/linaform/internal/server/storage"
)

// Factory создает пустое хранилище для одного теста
// Закрытие хранилища factory регистрирует через t.Cleanup
type Factory func(t *testing.T) storage.Storage

// Run запускает все проверки контракта хранилища
func Run(t *testing.T, newStorage Factory) {
	t.Run("CreateAndGetUser", func(t *testing.T) { testCreateAndGetUser(t, newStorage(t)) })
	t.Run("DuplicateEmail", func(t *testing.T) { testDuplicateEmail(t, newStorage(t)) })
	t.Run("ConcurrentDuplicateEmail", func(t *testing.T) { testConcurrentDuplicateEmail(t, newStorage(t)) })
	t.Run("UserNotFound", func(t *testing.T) { testUserNotFound(t, newStorage(t)) })
	t.Run("SaveAndGetToken", func(t *testing.T) { testSaveAndGetToken(t, newStorage(t)) })
	t.Run("DuplicateToken", func(t *testing.T) { testDuplicateToken(t, newStorage(t)) })
	t.Run("GetUserTokens", func(t *testing.T) { testGetUserTokens(t, newStorage(t)) })
	t.Run("RotateRefreshToken", func(t *testing.T) { testRotateRefreshToken(t, newStorage(t)) })
	t.Run("RotateMissingToken", func(t *testing.T) { testRotateMissingToken(t, newStorage(t)) })
	t.Run("ConcurrentRotate", func(t *testing.T) { testConcurrentRotate(t, newStorage(t)) })
	t.Run("DeleteRefreshToken", func(t *testing.T) { testDeleteRefreshToken(t, newStorage(t)) })
	t.Run("DeleteExpiredTokens", func(t *testing.T) { testDeleteExpiredTokens(t, newStorage(t)) })
	t.Run("Ping", func(t *testing.T) { require.NoError(t, newStorage(t).Ping(context.Background())) })
}

// NewUser создает пользователя с уникальным email
func NewUser(t *testing.T, ctx context.Context, s storage.UserStorage) *models.User {
	t.Helper()
	id := uuid.New().String()
	user := &models.User{
		ID:           id,
		Email:        fmt.Sprintf("user-%s@example.com", id[:8]),
		Username:     "user_" + id[:8],
		PasswordHash: "$2a$04$hash",
		CreatedAt:    time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, s.CreateUser(ctx, user))
	return user
}

func newToken(userID string, expiresAt time.Time) *models.RefreshToken {
	return &models.RefreshToken{
		Token:     uuid.New().String(),
		UserID:    userID,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}
}

func testCreateAndGetUser(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	user := NewUser(t, ctx, s)

	byEmail, err := s.GetUserByEmail(ctx, user.Email)
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)
	assert.Equal(t, user.Email, byEmail.Email)
	assert.Equal(t, user.Username, byEmail.Username)
	assert.Equal(t, user.PasswordHash, byEmail.PasswordHash)
	assert.WithinDuration(t, user.CreatedAt, byEmail.CreatedAt, time.Millisecond)

	byID, err := s.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, byID.Email)
}

func testDuplicateEmail(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	user := NewUser(t, ctx, s)

	dup := &models.User{
		ID:           uuid.New().String(),
		Email:        user.Email,
		Username:     "someone_else",
		PasswordHash: "hash",
		CreatedAt:    time.Now(),
	}
	err := s.CreateUser(ctx, dup)
	assert.ErrorIs(t, err, storage.ErrUserAlreadyExists)

	_, err = s.GetUserByID(ctx, dup.ID)
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
}

func testConcurrentDuplicateEmail(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	const workers = 8
	email := "race@example.com"

	var wg sync.WaitGroup
	errs := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- s.CreateUser(ctx, &models.User{
				ID:           uuid.New().String(),
				Email:        email,
				Username:     fmt.Sprintf("racer%d", i),
				PasswordHash: "hash",
				CreatedAt:    time.Now(),
			})
		}(i)
	}
	wg.Wait()
	close(errs)

	created := 0
	for err := range errs {
		if err == nil {
			created++
			continue
		}
		assert.ErrorIs(t, err, storage.ErrUserAlreadyExists)
	}
	assert.Equal(t, 1, created, "exactly one user per email")
}

func testUserNotFound(t *testing.T, s storage.Storage) {
	ctx := context.Background()

	_, err := s.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)

	_, err = s.GetUserByID(ctx, uuid.New().String())
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
}

func testSaveAndGetToken(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	user := NewUser(t, ctx, s)

	token := newToken(user.ID, time.Now().Add(7*24*time.Hour))
	require.NoError(t, s.SaveRefreshToken(ctx, token))

	got, err := s.GetRefreshToken(ctx, token.Token)
	require.NoError(t, err)
	assert.Equal(t, token.Token, got.Token)
	assert.Equal(t, user.ID, got.UserID)
	assert.WithinDuration(t, token.ExpiresAt, got.ExpiresAt, time.Millisecond)

	_, err = s.GetRefreshToken(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrTokenNotFound)
}

func testDuplicateToken(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	user := NewUser(t, ctx, s)

	token := newToken(user.ID, time.Now().Add(time.Hour))
	require.NoError(t, s.SaveRefreshToken(ctx, token))

	err := s.SaveRefreshToken(ctx, token)
	assert.ErrorIs(t, err, storage.ErrTokenAlreadyExists)
}

func testGetUserTokens(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	user := NewUser(t, ctx, s)
	other := NewUser(t, ctx, s)

	older := newToken(user.ID, time.Now().Add(time.Hour))
	older.CreatedAt = time.Now().Add(-time.Minute)
	newer := newToken(user.ID, time.Now().Add(time.Hour))
	require.NoError(t, s.SaveRefreshToken(ctx, older))
	require.NoError(t, s.SaveRefreshToken(ctx, newer))
	require.NoError(t, s.SaveRefreshToken(ctx, newToken(other.ID, time.Now().Add(time.Hour))))

	tokens, err := s.GetUserTokens(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, newer.Token, tokens[0].Token)
	assert.Equal(t, older.Token, tokens[1].Token)

	empty, err := s.GetUserTokens(ctx, uuid.New().String())
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func testRotateRefreshToken(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	user := NewUser(t, ctx, s)

	old := newToken(user.ID, time.Now().Add(time.Hour))
	require.NoError(t, s.SaveRefreshToken(ctx, old))

	next := newToken(user.ID, time.Now().Add(2*time.Hour))
	require.NoError(t, s.RotateRefreshToken(ctx, old.Token, next))

	_, err := s.GetRefreshToken(ctx, old.Token)
	assert.ErrorIs(t, err, storage.ErrTokenNotFound)

	got, err := s.GetRefreshToken(ctx, next.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.UserID)
}

func testRotateMissingToken(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	user := NewUser(t, ctx, s)

	next := newToken(user.ID, time.Now().Add(time.Hour))
	err := s.RotateRefreshToken(ctx, "already-gone", next)
	assert.ErrorIs(t, err, storage.ErrTokenNotFound)

	// Новый токен не должен появиться
	_, err = s.GetRefreshToken(ctx, next.Token)
	assert.ErrorIs(t, err, storage.ErrTokenNotFound)
}

func testConcurrentRotate(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	user := NewUser(t, ctx, s)

	old := newToken(user.ID, time.Now().Add(time.Hour))
	require.NoError(t, s.SaveRefreshToken(ctx, old))

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.RotateRefreshToken(ctx, old.Token, newToken(user.ID, time.Now().Add(time.Hour)))
		}()
	}
	wg.Wait()
	close(errs)

	won := 0
	for err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, storage.ErrTokenNotFound):
		default:
			t.Errorf("unexpected rotate error: %v", err)
		}
	}
	assert.Equal(t, 1, won, "only one rotation may observe the token")

	tokens, err := s.GetUserTokens(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, tokens, 1)
}

func testDeleteRefreshToken(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	user := NewUser(t, ctx, s)

	token := newToken(user.ID, time.Now().Add(time.Hour))
	require.NoError(t, s.SaveRefreshToken(ctx, token))

	require.NoError(t, s.DeleteRefreshToken(ctx, token.Token))

	_, err := s.GetRefreshToken(ctx, token.Token)
	assert.ErrorIs(t, err, storage.ErrTokenNotFound)

	err = s.DeleteRefreshToken(ctx, token.Token)
	assert.ErrorIs(t, err, storage.ErrTokenNotFound)
}

func testDeleteExpiredTokens(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	user := NewUser(t, ctx, s)
	now := time.Now()

	expired1 := newToken(user.ID, now.Add(-time.Hour))
	expired2 := newToken(user.ID, now.Add(-time.Minute))
	valid := newToken(user.ID, now.Add(time.Hour))
	for _, tok := range []*models.RefreshToken{expired1, expired2, valid} {
		require.NoError(t, s.SaveRefreshToken(ctx, tok))
	}

	deleted, err := s.DeleteExpiredTokens(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	_, err = s.GetRefreshToken(ctx, expired1.Token)
	assert.ErrorIs(t, err, storage.ErrTokenNotFound)
	_, err = s.GetRefreshToken(ctx, valid.Token)
	assert.NoError(t, err)

	deleted, err = s.DeleteExpiredTokens(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)
}
