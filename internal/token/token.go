package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/iudanet/dailyuse/internal/models"
)

const issuer = "dailyuse"

// ErrInvalidToken indicates that the token is malformed, expired or signed with another key
var ErrInvalidToken = errors.New("invalid session token")

// Claims представляет JWT claims токена сессии
type Claims struct {
	Username    string             `json:"username"`
	AccountType models.AccountType `json:"account_type"`
	jwt.RegisteredClaims
}

// Config содержит конфигурацию для токенов сессии
type Config struct {
	Secret []byte
	TTL    time.Duration
}

// Issuer выпускает и проверяет токены сессий
type Issuer struct {
	now func() time.Time
	cfg Config
}

// NewIssuer creates a token issuer. Empty secret is rejected.
func NewIssuer(cfg Config) (*Issuer, error) {
	if len(cfg.Secret) == 0 {
		return nil, fmt.Errorf("token secret cannot be empty")
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("token ttl must be positive")
	}
	return &Issuer{cfg: cfg, now: time.Now}, nil
}

// Issue создает новый JWT для (username, accountType)
func (i *Issuer) Issue(username string, accountType models.AccountType) (string, error) {
	now := i.now()

	claims := Claims{
		Username:    username,
		AccountType: accountType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(now.Add(i.cfg.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(i.cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// Validate валидирует и парсит токен сессии
func (i *Issuer) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		// Проверяем что используется правильный алгоритм подписи
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.cfg.Secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(i.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
