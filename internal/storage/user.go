package storage

import (
	"context"

	"github.com/iudanet/dailyuse/internal/models"
)

// UserStorage defines interface for user data persistence
type UserStorage interface {
	// AddUser creates a new user in the storage
	// Returns ErrUserAlreadyExists if username is taken
	AddUser(ctx context.Context, user *models.User) error

	// FindUserByUsername retrieves user by username
	// Returns ErrUserNotFound if user doesn't exist
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)

	// GetAllUsers returns every user ordered by creation time
	GetAllUsers(ctx context.Context) ([]*models.User, error)

	// UpdateUser applies only the fields set in patch
	// Empty patch is a no-op and returns nil
	// Returns ErrUserNotFound if user doesn't exist
	UpdateUser(ctx context.Context, username string, patch models.UserPatch) error

	// RemoveUser deletes user and, via foreign key, its sessions
	// Returns ErrUserNotFound if user doesn't exist
	RemoveUser(ctx context.Context, username string) error

	// UserExists reports whether username is registered
	UserExists(ctx context.Context, username string) (bool, error)
}
