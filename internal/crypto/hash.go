package crypto

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost рабочий фактор для интерактивного входа
const DefaultBcryptCost = 10

// ErrPasswordMismatch indicates that the password does not match the stored hash
var ErrPasswordMismatch = errors.New("password does not match")

// Hasher хеширует пароли пользователей необратимо
type Hasher struct {
	cost int
}

// NewHasher creates a bcrypt hasher. Cost outside bcrypt bounds falls back to DefaultBcryptCost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &Hasher{cost: cost}
}

// Hash возвращает bcrypt хеш пароля
func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(hash), nil
}

// Compare проверяет пароль против сохраненного хеша.
// Возвращает ErrPasswordMismatch при несовпадении.
func (h *Hasher) Compare(hash, password string) error {
	if hash == "" {
		return fmt.Errorf("hashed password cannot be empty")
	}

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return fmt.Errorf("failed to compare password: %w", err)
	}

	return nil
}
