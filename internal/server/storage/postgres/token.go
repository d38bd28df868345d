package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/linaform/internal/dbx"
	"github.com/iudanet/linaform/internal/models"
	"github.com/iudanet/linaform/internal/server/storage"
)

// SaveRefreshToken stores a new refresh token
func (s *Storage) SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	return insertToken(ctx, s.db, token)
}

func insertToken(ctx context.Context, db dbx.DBTX, token *models.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (token, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := db.ExecContext(ctx, query, token.Token, token.UserID, token.ExpiresAt, token.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "refresh_tokens_pkey") {
			return storage.ErrTokenAlreadyExists
		}
		return fmt.Errorf("failed to save refresh token: %w", err)
	}

	return nil
}

// GetRefreshToken retrieves refresh token by token value
func (s *Storage) GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	query := `
		SELECT token, user_id, expires_at, created_at
		FROM refresh_tokens
		WHERE token = $1
	`

	refreshToken := &models.RefreshToken{}
	err := s.db.QueryRowContext(ctx, query, token).Scan(
		&refreshToken.Token,
		&refreshToken.UserID,
		&refreshToken.ExpiresAt,
		&refreshToken.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}

	return refreshToken, nil
}

// GetUserTokens retrieves all refresh tokens for a user
func (s *Storage) GetUserTokens(ctx context.Context, userID string) ([]*models.RefreshToken, error) {
	tokens := []*models.RefreshToken{}
	if !isUUID(userID) {
		return tokens, nil
	}

	query := `
		SELECT token, user_id, expires_at, created_at
		FROM refresh_tokens
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user tokens: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		token := &models.RefreshToken{}
		if err := rows.Scan(&token.Token, &token.UserID, &token.ExpiresAt, &token.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan token: %w", err)
		}
		tokens = append(tokens, token)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return tokens, nil
}

// RotateRefreshToken replaces oldToken with next atomically
// Конкурирующий DELETE ждет блокировку строки и после коммита победителя
// видит ноль затронутых строк
func (s *Storage) RotateRefreshToken(ctx context.Context, oldToken string, next *models.RefreshToken) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE token = $1`, oldToken)
		if err != nil {
			return fmt.Errorf("failed to delete refresh token: %w", err)
		}
		if err := dbx.AffectedOne(result, storage.ErrTokenNotFound); err != nil {
			return err
		}
		return insertToken(ctx, tx, next)
	})
}

// DeleteRefreshToken deletes refresh token by token value
func (s *Storage) DeleteRefreshToken(ctx context.Context, token string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("failed to delete refresh token: %w", err)
	}

	return dbx.AffectedOne(result, storage.ErrTokenNotFound)
}

// DeleteExpiredTokens removes all expired tokens
func (s *Storage) DeleteExpiredTokens(ctx context.Context, now time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(rows), nil
}
