package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/linaform/internal/models"
	"github.com/iudanet/linaform/internal/server/storage"
)

// CreateUser creates a new user in the storage
func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		byEmail := tx.Bucket(bucketUserByEmail)
		if byEmail.Get([]byte(user.Email)) != nil {
			return storage.ErrUserAlreadyExists
		}

		users := tx.Bucket(bucketUsers)
		if users.Get([]byte(user.ID)) != nil {
			return fmt.Errorf("user id %s already taken", user.ID)
		}

		if err := users.Put([]byte(user.ID), data); err != nil {
			return fmt.Errorf("failed to save user: %w", err)
		}
		if err := byEmail.Put([]byte(user.Email), []byte(user.ID)); err != nil {
			return fmt.Errorf("failed to save email index: %w", err)
		}

		return nil
	})
}

// GetUserByEmail retrieves user by email
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user *models.User

	err := s.db.View(func(tx *bbolt.Tx) error {
		id := tx.Bucket(bucketUserByEmail).Get([]byte(email))
		if id == nil {
			return storage.ErrUserNotFound
		}

		var err error
		user, err = getUser(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

// GetUserByID retrieves user by ID
func (s *Storage) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	var user *models.User

	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		user, err = getUser(tx, []byte(userID))
		return err
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

func getUser(tx *bbolt.Tx, id []byte) (*models.User, error) {
	data := tx.Bucket(bucketUsers).Get(id)
	if data == nil {
		return nil, storage.ErrUserNotFound
	}

	// Данные bbolt действительны только внутри транзакции, Unmarshal их копирует
	user := &models.User{}
	if err := json.Unmarshal(data, user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}

	return user, nil
}
