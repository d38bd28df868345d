package storage

import (
	"context"

	"github.com/iudanet/linaform/internal/models"
)

// UserStorage defines interface for user persistence
type UserStorage interface {
	// CreateUser creates a new user in the storage
	// Returns ErrUserAlreadyExists if email is taken. The unique index is the
	// authority, so concurrent inserts with one email produce exactly one row.
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByEmail retrieves user by normalized email
	// Returns ErrUserNotFound if user doesn't exist
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// GetUserByID retrieves user by ID
	// Returns ErrUserNotFound if user doesn't exist
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
}
