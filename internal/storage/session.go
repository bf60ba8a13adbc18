package storage

import (
	"context"

	"github.com/iudanet/dailyuse/internal/models"
)

// SessionStorage defines interface for login session persistence.
// Natural key of a session is (username, account type).
type SessionStorage interface {
	// AddLoginSession inserts a new session
	// Returns ErrSessionAlreadyExists if a row for the natural key exists
	AddLoginSession(ctx context.Context, session *models.LoginSession) error

	// AddActiveSession inserts a new session marked active in one transaction.
	// Every other session is deactivated; with session.AutoLogin set,
	// auto-login is cleared on every other session.
	// Returns ErrSessionAlreadyExists if a row for the natural key exists
	AddActiveSession(ctx context.Context, session *models.LoginSession) error

	// SaveSession inserts or updates the session for its natural key in one transaction.
	// If session.IsActive is set, every other session is deactivated.
	// If session.AutoLogin is set, auto-login is cleared on every other session.
	SaveSession(ctx context.Context, session *models.LoginSession) error

	// GetSession retrieves session by natural key
	// Returns ErrSessionNotFound if it doesn't exist
	GetSession(ctx context.Context, username string, accountType models.AccountType) (*models.LoginSession, error)

	// UpdateSession applies the fields set in patch and stamps updated_at
	// Setting IsActive or AutoLogin to true clears the flag on other sessions
	// Returns ErrSessionNotFound if it doesn't exist
	UpdateSession(ctx context.Context, username string, accountType models.AccountType, patch models.SessionPatch) error

	// DeleteSession deletes session by natural key
	// Returns ErrSessionNotFound if it doesn't exist
	DeleteSession(ctx context.Context, username string, accountType models.AccountType) error

	// GetAllLoginSessions returns sessions ordered by last login, newest first
	GetAllLoginSessions(ctx context.Context) ([]*models.LoginSession, error)

	// GetRememberedSessions returns sessions with remember me, newest first
	GetRememberedSessions(ctx context.Context) ([]*models.LoginSession, error)

	// GetAutoLoginSession returns the most recent auto-login session
	// Returns ErrSessionNotFound if none is set
	GetAutoLoginSession(ctx context.Context) (*models.LoginSession, error)

	// GetActiveSession returns an active session
	// Returns ErrSessionNotFound if nobody is signed in
	GetActiveSession(ctx context.Context) (*models.LoginSession, error)

	// ClearAllSessions deletes every session
	// Returns number of deleted sessions
	ClearAllSessions(ctx context.Context) (int, error)
}

// AccountStore объединяет хранилище пользователей и сессий
type AccountStore interface {
	UserStorage
	SessionStorage
}
