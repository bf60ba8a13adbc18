package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	// IVSize - размер IV для AES-CBC (равен размеру блока)
	IVSize = aes.BlockSize
	// separator разделяет hex(iv) и hex(ciphertext)
	separator = ":"
)

var (
	// ErrMalformedCiphertext indicates the stored value is not "hex(iv):hex(ciphertext)"
	ErrMalformedCiphertext = errors.New("malformed ciphertext")

	// ErrDecrypt indicates that decryption failed (wrong key or tampered data)
	ErrDecrypt = errors.New("decryption failed")
)

// Encrypt шифрует данные AES-256-CBC с PKCS#7 padding.
// Каждый вызов использует новый случайный IV, поэтому один и тот же
// plaintext дает разные результаты.
// Формат результата: hex(iv) + ":" + hex(ciphertext)
func Encrypt(plaintext, key []byte) (string, error) {
	if len(plaintext) == 0 {
		return "", fmt.Errorf("plaintext cannot be empty")
	}
	if len(key) != KeyLen {
		return "", fmt.Errorf("encryption key must be %d bytes, got %d", KeyLen, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	// Генерируем случайный IV
	iv := make([]byte, IVSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("failed to generate iv: %w", err)
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return hex.EncodeToString(iv) + separator + hex.EncodeToString(ciphertext), nil
}

// Decrypt дешифрует значение, полученное из Encrypt.
// Любые некорректные данные возвращают ErrMalformedCiphertext или ErrDecrypt.
func Decrypt(encrypted string, key []byte) ([]byte, error) {
	if len(key) != KeyLen {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", KeyLen, len(key))
	}

	parts := strings.Split(encrypted, separator)
	if len(parts) != 2 {
		return nil, fmt.Errorf("%w: expected 2 parts, got %d", ErrMalformedCiphertext, len(parts))
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != IVSize {
		return nil, fmt.Errorf("%w: invalid iv", ErrMalformedCiphertext)
	}

	ciphertext, err := hex.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: invalid ciphertext encoding", ErrMalformedCiphertext)
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext is not a multiple of the block size", ErrMalformedCiphertext)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	unpadded, err := pkcs7Unpad(plaintext, aes.BlockSize)
	if err != nil {
		return nil, err
	}

	return unpadded, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	return append(bytes.Clone(data), bytes.Repeat([]byte{byte(padLen)}, padLen)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, ErrDecrypt
	}

	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, ErrDecrypt
	}

	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, ErrDecrypt
		}
	}

	return data[:len(data)-padLen], nil
}

// Cipher шифрует сохраненные пароли "remember me" ключом,
// который выводится один раз при создании.
type Cipher struct {
	key []byte
}

// NewCipher derives the key from secret and salt
func NewCipher(secret, salt string) (*Cipher, error) {
	key, err := DeriveKey(secret, salt)
	if err != nil {
		return nil, err
	}
	return &Cipher{key: key}, nil
}

// NewCipherWithKey uses an already derived 32-byte key
func NewCipherWithKey(key []byte) (*Cipher, error) {
	if len(key) != KeyLen {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", KeyLen, len(key))
	}
	return &Cipher{key: bytes.Clone(key)}, nil
}

// EncryptString шифрует пароль для хранения
func (c *Cipher) EncryptString(plaintext string) (string, error) {
	return Encrypt([]byte(plaintext), c.key)
}

// DecryptString восстанавливает пароль из хранимого значения
func (c *Cipher) DecryptString(encrypted string) (string, error) {
	plaintext, err := Decrypt(encrypted, c.key)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
