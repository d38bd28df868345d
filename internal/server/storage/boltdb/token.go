package boltdb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/iudanet/linaform/internal/models"
	"github.com/iudanet/linaform/internal/server/storage"
)

// SaveRefreshToken stores a new refresh token
func (s *Storage) SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return putToken(tx, token)
	})
}

func putToken(tx *bbolt.Tx, token *models.RefreshToken) error {
	if tx.Bucket(bucketUsers).Get([]byte(token.UserID)) == nil {
		return fmt.Errorf("failed to save refresh token: %w", storage.ErrUserNotFound)
	}

	tokens := tx.Bucket(bucketTokens)
	if tokens.Get([]byte(token.Token)) != nil {
		return storage.ErrTokenAlreadyExists
	}

	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal refresh token: %w", err)
	}

	if err := tokens.Put([]byte(token.Token), data); err != nil {
		return fmt.Errorf("failed to save refresh token: %w", err)
	}
	if err := tx.Bucket(bucketUserTokens).Put(userTokenKey(token.UserID, token.Token), nil); err != nil {
		return fmt.Errorf("failed to save user token index: %w", err)
	}

	return nil
}

func getToken(tx *bbolt.Tx, token string) (*models.RefreshToken, error) {
	data := tx.Bucket(bucketTokens).Get([]byte(token))
	if data == nil {
		return nil, storage.ErrTokenNotFound
	}

	refreshToken := &models.RefreshToken{}
	if err := json.Unmarshal(data, refreshToken); err != nil {
		return nil, fmt.Errorf("failed to unmarshal refresh token: %w", err)
	}

	return refreshToken, nil
}

func deleteToken(tx *bbolt.Tx, token string) error {
	existing, err := getToken(tx, token)
	if err != nil {
		return err
	}

	if err := tx.Bucket(bucketTokens).Delete([]byte(token)); err != nil {
		return fmt.Errorf("failed to delete refresh token: %w", err)
	}
	if err := tx.Bucket(bucketUserTokens).Delete(userTokenKey(existing.UserID, token)); err != nil {
		return fmt.Errorf("failed to delete user token index: %w", err)
	}

	return nil
}

// GetRefreshToken retrieves refresh token by token value
func (s *Storage) GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	var refreshToken *models.RefreshToken

	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		refreshToken, err = getToken(tx, token)
		return err
	})
	if err != nil {
		return nil, err
	}

	return refreshToken, nil
}

// GetUserTokens retrieves all refresh tokens for a user, newest first
func (s *Storage) GetUserTokens(ctx context.Context, userID string) ([]*models.RefreshToken, error) {
	tokens := []*models.RefreshToken{}
	prefix := userTokenPrefix(userID)

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketUserTokens).Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			token, err := getToken(tx, string(k[len(prefix):]))
			if err != nil {
				return err
			}
			tokens = append(tokens, token)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(tokens, func(i, j int) bool {
		return tokens[i].CreatedAt.After(tokens[j].CreatedAt)
	})

	return tokens, nil
}

// RotateRefreshToken replaces oldToken with next atomically
func (s *Storage) RotateRefreshToken(ctx context.Context, oldToken string, next *models.RefreshToken) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := deleteToken(tx, oldToken); err != nil {
			return err
		}
		return putToken(tx, next)
	})
}

// DeleteRefreshToken deletes refresh token by token value
func (s *Storage) DeleteRefreshToken(ctx context.Context, token string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return deleteToken(tx, token)
	})
}

// DeleteExpiredTokens removes all tokens that expired before now
func (s *Storage) DeleteExpiredTokens(ctx context.Context, now time.Time) (int, error) {
	deleted := 0

	err := s.db.Update(func(tx *bbolt.Tx) error {
		// Сначала собираем ключи: удалять во время обхода курсором нельзя
		var expired []string
		err := tx.Bucket(bucketTokens).ForEach(func(k, v []byte) error {
			token := &models.RefreshToken{}
			if err := json.Unmarshal(v, token); err != nil {
				return fmt.Errorf("failed to unmarshal refresh token: %w", err)
			}
			if token.ExpiresAt.Before(now) {
				expired = append(expired, string(k))
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, token := range expired {
			if err := deleteToken(tx, token); err != nil {
				return err
			}
		}
		deleted = len(expired)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", err)
	}

	return deleted, nil
}
