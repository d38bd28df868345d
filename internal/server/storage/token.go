package storage

import (
	"context"
	"time"

	"github.com/iudanet/linaform/internal/models"
)

// TokenStorage defines interface for refresh token persistence
type TokenStorage interface {
	// SaveRefreshToken stores a new refresh token
	// Returns ErrTokenAlreadyExists if token value is taken
	SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error

	// GetRefreshToken retrieves refresh token by token value
	// Returns ErrTokenNotFound if token doesn't exist
	GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error)

	// GetUserTokens retrieves all refresh tokens for a user, newest first
	// Returns empty slice if no tokens found
	GetUserTokens(ctx context.Context, userID string) ([]*models.RefreshToken, error)

	// RotateRefreshToken deletes oldToken and stores next in one transaction
	// Returns ErrTokenNotFound (and stores nothing) if oldToken is already gone,
	// so of two concurrent rotations of one token only one succeeds
	RotateRefreshToken(ctx context.Context, oldToken string, next *models.RefreshToken) error

	// DeleteRefreshToken deletes refresh token by token value
	// Returns ErrTokenNotFound if token doesn't exist
	DeleteRefreshToken(ctx context.Context, token string) error

	// DeleteExpiredTokens removes all tokens with expires_at before now
	// Returns number of deleted tokens
	DeleteExpiredTokens(ctx context.Context, now time.Time) (int, error)
}
