package validation

import (
	"fmt"
	"regexp"

	"github.com/iudanet/dailyuse/internal/models"
)

// UsernamePattern определяет допустимый формат username
// Только латинские буквы (a-z, A-Z), цифры (0-9), нижнее подчеркивание (_)
// Длина: 3-32 символа
var UsernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,32}$`)

const (
	// MinUsernameLen минимальная длина username
	MinUsernameLen = 3
	// MaxUsernameLen максимальная длина username
	MaxUsernameLen = 32
	// MaxPasswordLen bcrypt не принимает пароли длиннее 72 байт
	MaxPasswordLen = 72
)

// Error is a validation failure whose message is safe to show to the user.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(field, format string, args ...any) *Error {
	return &Error{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ValidateUsername проверяет username при регистрации
// Формат: только латинские буквы (a-z, A-Z), цифры (0-9), нижнее подчеркивание (_)
// Длина: 3-32 символа
func ValidateUsername(username string) error {
	if username == "" {
		return newError("username", "username cannot be empty")
	}

	if len(username) < MinUsernameLen {
		return newError("username", "username must be at least %d characters long", MinUsernameLen)
	}

	if len(username) > MaxUsernameLen {
		return newError("username", "username must not exceed %d characters", MaxUsernameLen)
	}

	if !UsernamePattern.MatchString(username) {
		return newError("username", "username can only contain letters (a-z, A-Z), numbers (0-9), and underscores (_)")
	}

	return nil
}

// ValidatePassword проверяет пароль перед хешированием
func ValidatePassword(password string) error {
	if password == "" {
		return newError("password", "password cannot be empty")
	}

	if len(password) > MaxPasswordLen {
		return newError("password", "password must not exceed %d bytes", MaxPasswordLen)
	}

	return nil
}

// ValidatePasswordConfirmation checks that both password entries match.
func ValidatePasswordConfirmation(password, confirm string) error {
	if password != confirm {
		return newError("confirmPassword", "passwords do not match")
	}
	return nil
}

// RequireUsername проверяет только непустоту: для входа и операций с сессиями
func RequireUsername(username string) error {
	if username == "" {
		return newError("username", "username cannot be empty")
	}
	return nil
}

// ValidateAccountType accepts "local" and "online"
func ValidateAccountType(t models.AccountType) error {
	if !t.Valid() {
		return newError("accountType", "account type must be %q or %q", models.AccountTypeLocal, models.AccountTypeOnline)
	}
	return nil
}
