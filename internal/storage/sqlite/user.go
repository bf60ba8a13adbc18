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

const userColumns = `username, password, avatar, email, phone, account_type, online_id, created_at`

// AddUser creates a new user in the storage
func (s *Storage) AddUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	accountType := user.AccountType
	if accountType == "" {
		accountType = models.AccountTypeLocal
	}

	createdAt := user.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, query,
		user.Username,
		user.Password,
		user.Avatar,
		user.Email,
		user.Phone,
		string(accountType),
		user.OnlineID,
		createdAt.UnixMilli(),
	)

	if err != nil {
		// Проверяем на duplicate username
		if isUniqueViolation(err) {
			return storage.ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

// FindUserByUsername retrieves user by username
func (s *Storage) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = ?`

	user, err := scanUser(s.db.QueryRowContext(ctx, query, username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// GetAllUsers returns all users ordered by creation time
func (s *Storage) GetAllUsers(ctx context.Context) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at ASC, username ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	users := make([]*models.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return users, nil
}

// UpdateUser updates only the fields present in patch
func (s *Storage) UpdateUser(ctx context.Context, username string, patch models.UserPatch) error {
	if patch.IsEmpty() {
		return nil
	}

	var (
		sets []string
		args []any
	)

	add := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}

	if patch.Password != nil {
		add("password", *patch.Password)
	}
	if patch.Avatar != nil {
		add("avatar", nullString(*patch.Avatar))
	}
	if patch.Email != nil {
		add("email", nullString(*patch.Email))
	}
	if patch.Phone != nil {
		add("phone", nullString(*patch.Phone))
	}
	if patch.AccountType != nil {
		add("account_type", string(*patch.AccountType))
	}
	if patch.OnlineID != nil {
		add("online_id", nullString(*patch.OnlineID))
	}

	query := `UPDATE users SET ` + strings.Join(sets, ", ") + ` WHERE username = ?`
	args = append(args, username)

	return s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}

		if rows == 0 {
			return storage.ErrUserNotFound
		}

		if patch.AccountType != nil {
			return rekeySessions(ctx, tx, username, *patch.AccountType)
		}
		return nil
	})
}

// rekeySessions переносит сессии пользователя на новый тип аккаунта.
// Сохраненный пароль остается, выданные ранее токены сбрасываются.
// Если строка с новым типом уже есть, остальные строки удаляются.
func rekeySessions(ctx context.Context, tx *sql.Tx, username string, accountType models.AccountType) error {
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM login_sessions
		WHERE username = ? AND account_type <> ?
		  AND EXISTS (SELECT 1 FROM login_sessions WHERE username = ? AND account_type = ?)`,
		username, string(accountType), username, string(accountType),
	); err != nil {
		return fmt.Errorf("failed to drop stale sessions: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE login_sessions SET account_type = ?, token = NULL, updated_at = ?
		WHERE username = ? AND account_type <> ?`,
		string(accountType), time.Now().UnixMilli(), username, string(accountType),
	); err != nil {
		return fmt.Errorf("failed to move sessions to new account type: %w", err)
	}

	return nil
}

// RemoveUser deletes user by username; sessions are removed by ON DELETE CASCADE
func (s *Storage) RemoveUser(ctx context.Context, username string) error {
	query := `DELETE FROM users WHERE username = ?`

	result, err := s.db.ExecContext(ctx, query, username)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}

// UserExists reports whether username is registered
func (s *Storage) UserExists(ctx context.Context, username string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE username = ?)`

	var exists bool
	if err := s.db.QueryRowContext(ctx, query, username).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}

	return exists, nil
}

// rowScanner покрывает *sql.Row и *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		user                           models.User
		avatar, email, phone, onlineID sql.NullString
		accountType                    string
		createdAt                      int64
	)

	if err := row.Scan(
		&user.Username,
		&user.Password,
		&avatar,
		&email,
		&phone,
		&accountType,
		&onlineID,
		&createdAt,
	); err != nil {
		return nil, err
	}

	user.Avatar = stringPtr(avatar)
	user.Email = stringPtr(email)
	user.Phone = stringPtr(phone)
	user.OnlineID = stringPtr(onlineID)
	user.AccountType = models.AccountType(accountType)
	user.CreatedAt = time.UnixMilli(createdAt)

	return &user, nil
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

// nullString превращает пустую строку в NULL
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "PRIMARY KEY constraint failed")
}
