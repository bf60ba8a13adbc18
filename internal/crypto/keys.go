package crypto

import (
	"fmt"

	"golang.org/x/crypto/scrypt"
)

// Параметры scrypt для ключа "remember me"
const (
	// ScryptN - CPU/memory cost
	ScryptN = 16384
	// ScryptR - размер блока
	ScryptR = 8
	// ScryptP - параллелизм
	ScryptP = 1
	// KeyLen - длина ключа AES-256 в байтах
	KeyLen = 32
)

// Встроенные значения по умолчанию. Ключ, полученный из них, одинаков на
// всех установках: это защита от случайного просмотра файла БД, а не от
// атакующего, у которого есть бинарник. Конфиг может их переопределить.
const (
	DefaultRememberSecret = "dailyuse-remember-me-secret"
	DefaultRememberSalt   = "dailyuse-salt"
)

// DeriveKey выводит симметричный ключ из секрета приложения и соли
func DeriveKey(secret, salt string) ([]byte, error) {
	if secret == "" {
		return nil, fmt.Errorf("secret cannot be empty")
	}
	if salt == "" {
		return nil, fmt.Errorf("salt cannot be empty")
	}

	key, err := scrypt.Key([]byte(secret), []byte(salt), ScryptN, ScryptR, ScryptP, KeyLen)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}

	return key, nil
}
