package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iudanet/dailyuse/internal/models"
	"github.com/iudanet/dailyuse/internal/storage"
)

const sessionColumns = `id, username, account_type, password, token, remember_me,
	last_login_time, auto_login, is_active, created_at, updated_at`

// execer покрывает *sql.DB и *sql.Tx
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// AddLoginSession inserts a new login session
func (s *Storage) AddLoginSession(ctx context.Context, session *models.LoginSession) error {
	return insertSession(ctx, s.db, session)
}

// AddActiveSession inserts the session as active and clears the exclusive
// flags on other sessions in the same transaction
func (s *Storage) AddActiveSession(ctx context.Context, session *models.LoginSession) error {
	session.IsActive = true

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := insertSession(ctx, tx, session); err != nil {
			return err
		}
		return clearExclusiveFlags(ctx, tx, session.Username, session.AccountType, true, session.AutoLogin)
	})
}

func insertSession(ctx context.Context, db execer, session *models.LoginSession) error {
	query := `
		INSERT INTO login_sessions (username, account_type, password, token, remember_me,
			last_login_time, auto_login, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now()
	createdAt := orNow(session.CreatedAt, now)
	lastLogin := orNow(session.LastLoginTime, now)

	result, err := db.ExecContext(ctx, query,
		session.Username,
		string(session.AccountType),
		session.Password,
		session.Token,
		session.RememberMe,
		lastLogin.UnixMilli(),
		session.AutoLogin,
		session.IsActive,
		createdAt.UnixMilli(),
		now.UnixMilli(),
	)

	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrSessionAlreadyExists
		}
		return fmt.Errorf("failed to insert login session: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		session.ID = id
	}

	return nil
}

// SaveSession inserts or updates the session in a single transaction.
// Nil Password/Token keep the stored values; RememberMe=false always clears the password.
func (s *Storage) SaveSession(ctx context.Context, session *models.LoginSession) error {
	query := `
		INSERT INTO login_sessions (username, account_type, password, token, remember_me,
			last_login_time, auto_login, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (username, account_type) DO UPDATE SET
			password        = CASE WHEN excluded.remember_me = 0 THEN NULL
			                       ELSE COALESCE(excluded.password, login_sessions.password) END,
			token           = COALESCE(excluded.token, login_sessions.token),
			remember_me     = excluded.remember_me,
			last_login_time = excluded.last_login_time,
			auto_login      = excluded.auto_login,
			is_active       = excluded.is_active,
			updated_at      = excluded.updated_at
	`

	now := time.Now()
	lastLogin := orNow(session.LastLoginTime, now)

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := clearExclusiveFlags(ctx, tx, session.Username, session.AccountType,
			session.IsActive, session.AutoLogin); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, query,
			session.Username,
			string(session.AccountType),
			session.Password,
			session.Token,
			session.RememberMe,
			lastLogin.UnixMilli(),
			session.AutoLogin,
			session.IsActive,
			now.UnixMilli(),
			now.UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert login session: %w", err)
		}

		return nil
	})
}

// GetSession retrieves session by (username, account type)
func (s *Storage) GetSession(ctx context.Context, username string, accountType models.AccountType) (*models.LoginSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM login_sessions WHERE username = ? AND account_type = ?`

	session, err := scanSession(s.db.QueryRowContext(ctx, query, username, string(accountType)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get login session: %w", err)
	}

	return session, nil
}

// UpdateSession applies patch and always stamps updated_at
func (s *Storage) UpdateSession(ctx context.Context, username string, accountType models.AccountType, patch models.SessionPatch) error {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UnixMilli()}

	add := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}

	if patch.Password != nil {
		add("password", nullString(*patch.Password))
	}
	if patch.Token != nil {
		add("token", nullString(*patch.Token))
	}
	if patch.RememberMe != nil {
		add("remember_me", *patch.RememberMe)
	}
	if patch.LastLoginTime != nil {
		add("last_login_time", patch.LastLoginTime.UnixMilli())
	}
	if patch.AutoLogin != nil {
		add("auto_login", *patch.AutoLogin)
	}
	if patch.IsActive != nil {
		add("is_active", *patch.IsActive)
	}

	query := `UPDATE login_sessions SET ` + strings.Join(sets, ", ") + ` WHERE username = ? AND account_type = ?`
	args = append(args, username, string(accountType))

	activate := patch.IsActive != nil && *patch.IsActive
	autoLogin := patch.AutoLogin != nil && *patch.AutoLogin

	return s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to update login session: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}

		if rows == 0 {
			return storage.ErrSessionNotFound
		}

		return clearExclusiveFlags(ctx, tx, username, accountType, activate, autoLogin)
	})
}

// DeleteSession deletes session by (username, account type)
func (s *Storage) DeleteSession(ctx context.Context, username string, accountType models.AccountType) error {
	query := `DELETE FROM login_sessions WHERE username = ? AND account_type = ?`

	result, err := s.db.ExecContext(ctx, query, username, string(accountType))
	if err != nil {
		return fmt.Errorf("failed to delete login session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return storage.ErrSessionNotFound
	}

	return nil
}

// GetAllLoginSessions returns sessions newest first
func (s *Storage) GetAllLoginSessions(ctx context.Context) ([]*models.LoginSession, error) {
	return s.querySessions(ctx, `SELECT `+sessionColumns+` FROM login_sessions
		ORDER BY last_login_time DESC, id DESC`)
}

// GetRememberedSessions returns sessions with remember me, newest first
func (s *Storage) GetRememberedSessions(ctx context.Context) ([]*models.LoginSession, error) {
	return s.querySessions(ctx, `SELECT `+sessionColumns+` FROM login_sessions
		WHERE remember_me = 1
		ORDER BY last_login_time DESC, id DESC`)
}

// GetAutoLoginSession returns the most recent auto-login session
func (s *Storage) GetAutoLoginSession(ctx context.Context) (*models.LoginSession, error) {
	return s.querySingleSession(ctx, `SELECT `+sessionColumns+` FROM login_sessions
		WHERE auto_login = 1
		ORDER BY last_login_time DESC, id DESC
		LIMIT 1`)
}

// GetActiveSession returns an active session
func (s *Storage) GetActiveSession(ctx context.Context) (*models.LoginSession, error) {
	return s.querySingleSession(ctx, `SELECT `+sessionColumns+` FROM login_sessions
		WHERE is_active = 1
		LIMIT 1`)
}

// ClearAllSessions deletes every session
func (s *Storage) ClearAllSessions(ctx context.Context) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM login_sessions`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear login sessions: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(rows), nil
}

func (s *Storage) querySessions(ctx context.Context, query string, args ...any) ([]*models.LoginSession, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query login sessions: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	sessions := make([]*models.LoginSession, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan login session: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return sessions, nil
}

func (s *Storage) querySingleSession(ctx context.Context, query string, args ...any) (*models.LoginSession, error) {
	session, err := scanSession(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get login session: %w", err)
	}
	return session, nil
}

// clearExclusiveFlags снимает is_active / auto_login со всех сессий, кроме указанной
func clearExclusiveFlags(ctx context.Context, db execer, username string, accountType models.AccountType, active, autoLogin bool) error {
	now := time.Now().UnixMilli()

	if active {
		if _, err := db.ExecContext(ctx, `
			UPDATE login_sessions SET is_active = 0, updated_at = ?
			WHERE is_active = 1 AND NOT (username = ? AND account_type = ?)`,
			now, username, string(accountType),
		); err != nil {
			return fmt.Errorf("failed to deactivate other sessions: %w", err)
		}
	}

	if autoLogin {
		if _, err := db.ExecContext(ctx, `
			UPDATE login_sessions SET auto_login = 0, updated_at = ?
			WHERE auto_login = 1 AND NOT (username = ? AND account_type = ?)`,
			now, username, string(accountType),
		); err != nil {
			return fmt.Errorf("failed to clear auto-login on other sessions: %w", err)
		}
	}

	return nil
}

func scanSession(row rowScanner) (*models.LoginSession, error) {
	var (
		session                         models.LoginSession
		password, token                 sql.NullString
		accountType                     string
		lastLogin, createdAt, updatedAt int64
	)

	if err := row.Scan(
		&session.ID,
		&session.Username,
		&accountType,
		&password,
		&token,
		&session.RememberMe,
		&lastLogin,
		&session.AutoLogin,
		&session.IsActive,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	session.AccountType = models.AccountType(accountType)
	session.Password = stringPtr(password)
	session.Token = stringPtr(token)
	session.LastLoginTime = time.UnixMilli(lastLogin)
	session.CreatedAt = time.UnixMilli(createdAt)
	session.UpdatedAt = time.UnixMilli(updatedAt)

	return &session, nil
}

func orNow(t, now time.Time) time.Time {
	if t.IsZero() {
		return now
	}
	return t
}
